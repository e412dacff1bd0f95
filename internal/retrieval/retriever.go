package retrieval

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const snippetMaxLen = 240

// Hit is one matching page: file name, 1-based page number and a bounded
// snippet around the match.
type Hit struct {
	File    string `json:"file"`
	Page    int    `json:"page"`
	Snippet string `json:"snippet"`
}

// Limits bound the scan. PDF parsing is slow; these ceilings keep a request
// from blocking on a large document folder. The budget is soft: the page
// being parsed when it expires still completes.
type Limits struct {
	MaxFiles        int
	MaxPagesPerFile int
	MaxHits         int
	MaxRuntime      time.Duration
}

// PageExtractor produces the page texts of one document, capped at maxPages.
// The default extractor reads PDFs; tests inject fakes.
type PageExtractor func(path string, maxPages int) ([]string, error)

// Retriever performs a best-effort keyword scan over a folder of PDFs.
type Retriever struct {
	extract PageExtractor
}

// New builds a retriever. A nil extractor selects the PDF implementation.
func New(extract PageExtractor) *Retriever {
	if extract == nil {
		extract = pdfPages
	}
	return &Retriever{extract: extract}
}

// Search walks the folder for PDF pages containing the query (or one of its
// tokens) as a lower-cased substring. It returns early once MaxHits pages
// match, MaxFiles documents were read, or the runtime budget elapsed.
// A missing folder yields an empty result, not an error.
func (r *Retriever) Search(folder, query string, limits Limits) []Hit {
	folder = strings.TrimSpace(folder)
	query = strings.ToLower(strings.TrimSpace(query))
	if folder == "" || query == "" {
		return nil
	}
	if info, err := os.Stat(folder); err != nil || !info.IsDir() {
		slog.Info("docs folder not available, skipping retrieval", "folder", folder)
		return nil
	}
	normalizeLimits(&limits)
	needles := queryNeedles(query)
	deadline := time.Now().Add(limits.MaxRuntime)

	var hits []Hit
	filesSeen := 0
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("skipping unreadable entry during doc scan", "path", path, "err", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if strings.ToLower(filepath.Ext(d.Name())) != ".pdf" {
			return nil
		}
		if len(hits) >= limits.MaxHits || filesSeen >= limits.MaxFiles || time.Now().After(deadline) {
			return fs.SkipAll
		}
		filesSeen++
		pages, err := r.extract(path, limits.MaxPagesPerFile)
		if err != nil {
			slog.Warn("could not extract document text", "file", d.Name(), "err", err)
			return nil
		}
		for i, page := range pages {
			if len(hits) >= limits.MaxHits {
				break
			}
			if time.Now().After(deadline) {
				break
			}
			lowered := strings.ToLower(page)
			idx := matchIndex(lowered, needles)
			if idx < 0 {
				continue
			}
			hits = append(hits, Hit{
				File:    d.Name(),
				Page:    i + 1,
				Snippet: snippetAround(page, idx),
			})
		}
		return nil
	})
	if err != nil {
		slog.Warn("doc scan aborted", "folder", folder, "err", err)
	}
	return hits
}

func normalizeLimits(limits *Limits) {
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = 40
	}
	if limits.MaxPagesPerFile <= 0 {
		limits.MaxPagesPerFile = 50
	}
	if limits.MaxHits <= 0 {
		limits.MaxHits = 6
	}
	if limits.MaxRuntime <= 0 {
		limits.MaxRuntime = 1500 * time.Millisecond
	}
}

// queryNeedles returns the whole query plus its longer tokens. Short tokens
// match too much to be useful.
func queryNeedles(query string) []string {
	needles := []string{query}
	for _, token := range strings.Fields(query) {
		token = strings.Trim(token, ".,;:!?\"'()")
		if len(token) >= 4 && token != query {
			needles = append(needles, token)
		}
	}
	return needles
}

func matchIndex(loweredPage string, needles []string) int {
	for _, needle := range needles {
		if idx := strings.Index(loweredPage, needle); idx >= 0 {
			return idx
		}
	}
	return -1
}

// snippetAround slices a bounded window of page text containing the match
// and collapses whitespace.
func snippetAround(page string, idx int) string {
	start := idx - snippetMaxLen/3
	if start < 0 {
		start = 0
	}
	end := start + snippetMaxLen
	if end > len(page) {
		end = len(page)
	}
	snippet := strings.ToValidUTF8(page[start:end], "")
	return strings.Join(strings.Fields(snippet), " ")
}
