package prompt

import (
	"fmt"
	"strings"

	"aichat/internal/retrieval"
)

// DefaultPersona is used when no system prompt is configured.
const DefaultPersona = "You are a helpful website assistant. Answer clearly and concisely."

// DontKnowSentence is the fixed decline the model must produce in strict
// docs-only mode when the excerpts are insufficient.
const DontKnowSentence = "I don't know based on the provided documents."

// BuildSystemText renders the system instruction sent to the provider.
// Section order is fixed so the prompt stays stable across requests:
// persona, grounding directive, length contract, output contract, excerpts.
// delegatedRetrieval means the provider grounds via an attached file search
// store and no excerpts section is rendered; the directive must point at the
// store, not at excerpts that are not there.
func BuildSystemText(basePrompt string, hits []retrieval.Hit, strictDocsOnly, delegatedRetrieval bool, answerMaxLen int) string {
	var sb strings.Builder

	persona := strings.TrimSpace(basePrompt)
	if persona == "" {
		persona = DefaultPersona
	}
	sb.WriteString(persona)
	sb.WriteString("\n\n")

	switch {
	case strictDocsOnly && delegatedRetrieval:
		sb.WriteString("Answer only from the documents available through the attached file search store. ")
		sb.WriteString("If the documents do not contain the answer, reply exactly: ")
		sb.WriteString(DontKnowSentence)
	case strictDocsOnly:
		sb.WriteString("Answer only from the document excerpts below. ")
		sb.WriteString("If the excerpts do not contain the answer, reply exactly: ")
		sb.WriteString(DontKnowSentence)
	case delegatedRetrieval:
		sb.WriteString("Use the documents available through the attached file search store when they are relevant; ")
		sb.WriteString("otherwise answer from general knowledge.")
	default:
		sb.WriteString("Prefer the document excerpts below when they are relevant; ")
		sb.WriteString("otherwise answer from general knowledge.")
	}
	sb.WriteString("\n\n")

	if answerMaxLen > 0 {
		fmt.Fprintf(&sb, "Keep the answer under %d characters. ", answerMaxLen)
	}
	sb.WriteString("Use at most 6 short bullet points and always include a one-sentence summary.\n\n")

	sb.WriteString("Respond with a single JSON object and nothing else, shaped as: ")
	sb.WriteString(`{"title": string, "summary": string, "answer_md": string (markdown), `)
	sb.WriteString(`"citations": [{"file": string, "page": integer}], "suggestions": [string]}`)

	if len(hits) > 0 {
		sb.WriteString("\n\nDocument excerpts:\n")
		for _, hit := range hits {
			fmt.Fprintf(&sb, "[%s p.%d] %s\n", hit.File, hit.Page, hit.Snippet)
		}
	}
	return sb.String()
}
