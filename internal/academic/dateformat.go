package academic

import (
	"fmt"
	"strings"
	"time"
)

const isoDateLayout = "2006-01-02"

// Pattern letters accepted in dateFormat, longest first.
var patternTokens = []struct {
	pattern string
	layout  string
}{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"M", "1"},
	{"dd", "02"},
	{"d", "2"},
}

// layoutFor translates a pattern such as "dd MMMM yyyy" into a Go time layout.
// Only year, month and day letters are accepted; digits are refused because
// Go would read them as layout elements.
func layoutFor(pattern string) (string, error) {
	if strings.TrimSpace(pattern) == "" {
		return "", fmt.Errorf("empty date format")
	}

	var b strings.Builder
	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch {
		case c == 'y' || c == 'M' || c == 'd':
			matched := false
			for _, tok := range patternTokens {
				if strings.HasPrefix(pattern[i:], tok.pattern) {
					b.WriteString(tok.layout)
					i += len(tok.pattern)
					matched = true
					break
				}
			}
			if !matched {
				return "", fmt.Errorf("unsupported pattern letter %q in %q", c, pattern)
			}
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			return "", fmt.Errorf("unsupported pattern letter %q in %q", c, pattern)
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// parseDate reads value with the given pattern, or as yyyy-MM-dd when
// pattern is empty. The result is midnight UTC.
func parseDate(value, pattern string) (time.Time, error) {
	layout := isoDateLayout
	if pattern != "" {
		l, err := layoutFor(pattern)
		if err != nil {
			return time.Time{}, err
		}
		layout = l
	}

	t, err := time.Parse(layout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return dateOf(t), nil
}

// dateOf drops the time of day.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func formatDate(t time.Time) string {
	return t.Format(isoDateLayout)
}
