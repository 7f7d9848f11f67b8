package sandbox

import "fmt"

// Truncate cuts text to max characters and appends a marker with the number
// of characters dropped. A max of zero or less disables truncation.
func Truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + fmt.Sprintf("\n\n... [truncated %d chars]", len(runes)-max)
}
