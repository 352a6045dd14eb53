// Package extract pulls a complete HTML document out of free-form model output.
package extract

import "regexp"

// documentPattern matches from the doctype marker to the first closing html
// tag. Case-sensitive; (?s) lets . cross newlines and *? keeps it non-greedy.
var documentPattern = regexp.MustCompile(`(?s)<!DOCTYPE html>.*?</html>`)

// HTML returns the first <!DOCTYPE html>...</html> span in text, inclusive of
// both markers. Text without such a span is returned unchanged.
func HTML(text string) string {
	if loc := documentPattern.FindStringIndex(text); loc != nil {
		return text[loc[0]:loc[1]]
	}
	return text
}
