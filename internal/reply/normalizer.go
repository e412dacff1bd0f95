package reply

import (
	"encoding/json"
	"strings"
)

// Structured is the normalized UI payload returned to the chat widget.
type Structured struct {
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	AnswerMD    string     `json:"answer_md"`
	Citations   []Citation `json:"citations"`
	Suggestions []string   `json:"suggestions"`
}

// Citation points at a document page backing part of the answer.
type Citation struct {
	File string `json:"file"`
	Page int    `json:"page"`
}

// wire tolerates the answer key synonyms models actually produce.
type wire struct {
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	AnswerMD    string     `json:"answer_md"`
	Answer      string     `json:"answer"`
	Text        string     `json:"text"`
	Citations   []Citation `json:"citations"`
	Suggestions []string   `json:"suggestions"`
}

// Parse repairs the provider's raw text into a Structured reply. Tiers, in
// order: direct JSON, fence-stripped JSON, first balanced {...} object,
// then plain text with everything else empty. A candidate object only
// counts as structured when it carries a non-empty answer. Truncation to
// maxAnswerLen happens last, after all repair.
func Parse(raw string, maxAnswerLen int) Structured {
	trimmed := strings.TrimSpace(raw)

	out, ok := tryParse(trimmed)
	if !ok {
		out, ok = tryParse(stripFence(trimmed))
	}
	if !ok {
		if obj, found := extractObject(trimmed); found {
			out, ok = tryParse(obj)
		}
	}
	if !ok {
		out = Structured{AnswerMD: strings.TrimSpace(stripFence(trimmed))}
	}
	out.AnswerMD = truncate(out.AnswerMD, maxAnswerLen)
	return out
}

func tryParse(candidate string) (Structured, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || candidate[0] != '{' {
		return Structured{}, false
	}
	var w wire
	if err := json.Unmarshal([]byte(candidate), &w); err != nil {
		return Structured{}, false
	}
	answer := firstNonEmpty(w.AnswerMD, w.Answer, w.Text)
	if strings.TrimSpace(answer) == "" {
		return Structured{}, false
	}
	return Structured{
		Title:       w.Title,
		Summary:     w.Summary,
		AnswerMD:    answer,
		Citations:   w.Citations,
		Suggestions: w.Suggestions,
	}, true
}

// stripFence removes one leading/trailing markdown code fence, with an
// optional language tag on the opening line.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := text[3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// Drop the language tag line ("json", "markdown", or empty).
		body = body[nl+1:]
	} else {
		body = strings.TrimSpace(body)
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

// extractObject scans for the first balanced top-level {...} object.
// It tracks string-quote and escape state so braces inside quoted values
// do not break the balance count.
func extractObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(text string, maxLen int) string {
	if maxLen <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen])
}
