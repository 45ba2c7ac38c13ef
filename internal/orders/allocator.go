package orders

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var codePattern = regexp.MustCompile(`^([A-Za-z0-9]+)-(\d{4})-(\d{3,})$`)

// ParseCode splits PREFIX-YYYY-NNN into its parts.
func ParseCode(code string) (prefix string, year, seq int, ok bool) {
	m := codePattern.FindStringSubmatch(code)
	if m == nil {
		return "", 0, 0, false
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, 0, false
	}
	seq, err = strconv.Atoi(m[3])
	if err != nil || seq < 1 {
		return "", 0, 0, false
	}
	return m[1], year, seq, true
}

// FormatCode renders a code. The sequence is padded to at least three digits
// and never truncated.
func FormatCode(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%04d-%03d", prefix, year, seq)
}

// NextCode returns the code that follows latest in now's calendar year.
// A missing or malformed latest code, a code with another prefix, or one
// from an earlier year all start the year at 1.
func NextCode(prefix, latest string, now time.Time) string {
	year := now.Year()
	p, y, seq, ok := ParseCode(latest)
	if !ok || p != prefix || y != year {
		return FormatCode(prefix, year, 1)
	}
	return FormatCode(prefix, year, seq+1)
}
