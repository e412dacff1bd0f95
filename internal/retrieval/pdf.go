package retrieval

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// pdfPages extracts plain text per page from a PDF, up to maxPages.
// Problematic pages read as empty instead of failing the document.
func pdfPages(path string, maxPages int) ([]string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()
	total := reader.NumPage()
	if maxPages > 0 && total > maxPages {
		total = maxPages
	}
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
