package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize collapses runs of whitespace into one space and drops
// control characters.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	lastWasSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !lastWasSpace {
				b.WriteByte(' ')
				lastWasSpace = true
			}
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
			lastWasSpace = false
		}
	}
	return b.String()
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

func NormalizeCity(city string) string {
	return TrimAndNormalize(city)
}

func NormalizeDayLabel(label string) string {
	return TrimAndNormalize(label)
}

// NormalizeMessage keeps the line structure of a popup message while
// trimming every line and dropping other control characters.
func NormalizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	lines := strings.Split(msg, "\n")
	for i, line := range lines {
		lines[i] = TrimAndNormalize(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
