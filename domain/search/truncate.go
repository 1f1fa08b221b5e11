package search

import "fmt"

// Preview caps text to maxChars runes, appending an ellipsis marker when
// anything was cut. Non-positive budgets return the text unchanged.
func Preview(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars]) + "..."
}

// ZoomBudget maps a 0-100 zoom value to a content budget for code
// drilldown. limit 0 means unlimited; signatureOnly asks for just the
// declaration line.
func ZoomBudget(zoom int) (limit int, signatureOnly bool) {
	switch {
	case zoom <= 0:
		return 200, false
	case zoom <= 10:
		return 200, true
	case zoom <= 30:
		return 500, false
	case zoom <= 50:
		return 1500, false
	case zoom <= 70:
		return 3000, false
	case zoom <= 90:
		return 5000, false
	default:
		return 0, false
	}
}

// TruncateAtLineBoundary caps text to limit runes without splitting a
// line: the cut lands on the last newline inside the budget when one
// exists. The appended marker reports how many runes were dropped.
// limit 0 means unlimited.
func TruncateAtLineBoundary(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	cut := limit
	for i := limit - 1; i > 0; i-- {
		if runes[i] == '\n' {
			cut = i
			break
		}
	}

	remaining := len(runes) - cut
	return string(runes[:cut]) + fmt.Sprintf("... [%d more chars — use zoom:100 for full content]", remaining)
}
