package scope

import (
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// Placeholder substituted for redacted spans.
const redactedPlaceholder = "[redacted]"

// DefaultEvalBudget bounds a single allow-pattern evaluation. Go's regexp
// runs in linear time, but the pattern is operator-supplied so a hard wall
// is kept anyway.
const DefaultEvalBudget = 50 * time.Millisecond

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{5,}\d`)
	tokenPattern = regexp.MustCompile(`\b[A-Za-z0-9]{8,12}\b`)
	digitPattern = regexp.MustCompile(`\d`)
)

// IsAllowed checks the message against the optional allow-list pattern.
//
// No pattern means everything is in scope. This is a security control, so
// any failure — an invalid pattern or an evaluation that exceeds the budget —
// denies the message rather than waving it through.
func IsAllowed(text, pattern string, budget time.Duration) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return true
	}
	if budget <= 0 {
		budget = DefaultEvalBudget
	}
	re, err := regexp.Compile("(?im)" + pattern)
	if err != nil {
		slog.Warn("invalid allow pattern, rejecting message", "err", err)
		return false
	}
	done := make(chan bool, 1)
	go func() {
		done <- re.MatchString(text)
	}()
	select {
	case matched := <-done:
		return matched
	case <-time.After(budget):
		slog.Warn("allow pattern evaluation exceeded budget, rejecting message")
		return false
	}
}

// Redact masks obvious PII before the text leaves the server: email
// addresses, phone-like digit runs, and 8-12 character alphanumeric
// identifiers. Best-effort masking, not a compliance guarantee.
func Redact(text string, enabled bool) string {
	if !enabled {
		return text
	}
	text = emailPattern.ReplaceAllString(text, redactedPlaceholder)
	text = phonePattern.ReplaceAllString(text, redactedPlaceholder)
	text = tokenPattern.ReplaceAllStringFunc(text, func(match string) string {
		// Plain words survive; only mixed letter/digit identifiers are masked.
		if digitPattern.MatchString(match) {
			return redactedPlaceholder
		}
		return match
	})
	return text
}
