package parse

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Number parses locale-formatted user input into a decimal. Accepts comma or
// dot as the decimal separator and ignores grouping whitespace including
// non-breaking spaces. Empty or unparseable input returns ok=false.
func Number(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '\u00a0', '\u202f':
			continue
		case ',':
			b.WriteRune('.')
		default:
			b.WriteRune(r)
		}
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Date parses a calendar date from ISO YYYY-MM-DD, D.M.YYYY, D/M/YYYY
// (2- or 4-digit year, 2-digit assumed 20xx) or YYYY.M.D. Impossible dates
// (day 31 in a 30-day month) are rejected, not clamped. Result is UTC midnight.
func Date(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	var parts []string
	switch {
	case strings.Contains(s, "-"):
		parts = strings.Split(s, "-")
	case strings.Contains(s, "."):
		parts = strings.Split(s, ".")
	case strings.Contains(s, "/"):
		parts = strings.Split(s, "/")
	default:
		return time.Time{}, false
	}
	if len(parts) != 3 {
		return time.Time{}, false
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return time.Time{}, false
		}
		nums[i] = n
	}

	var year, month, day int
	if len(strings.TrimSpace(parts[0])) == 4 {
		// YYYY-MM-DD or YYYY.M.D
		year, month, day = nums[0], nums[1], nums[2]
	} else {
		// D.M.YYYY / D/M/YY
		day, month, year = nums[0], nums[1], nums[2]
		if year < 100 {
			year += 2000
		}
	}

	return makeDate(year, month, day)
}

func makeDate(year, month, day int) (time.Time, bool) {
	if year < 1900 || year > 2200 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range days (Feb 30 -> Mar 2); reject those.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
