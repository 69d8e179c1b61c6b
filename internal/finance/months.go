package finance

import (
	"errors"
	"fmt"
	"time"
)

// MonthKey formats a date's calendar month as YYYY-MM.
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// ParseMonthKey parses YYYY-MM into the month's first day (UTC).
func ParseMonthKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01", key, time.UTC)
	if err != nil {
		return time.Time{}, errors.New("MONTH_INVALID")
	}
	if t.Year() < 1900 || t.Year() > 2100 {
		return time.Time{}, errors.New("MONTH_OUT_OF_RANGE")
	}
	return t, nil
}

// MonthStart returns the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last day of t's month.
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, -1)
}

// MonthPrev returns the key of the month before key.
func MonthPrev(key string) string {
	t, err := ParseMonthKey(key)
	if err != nil {
		return key
	}
	return MonthKey(t.AddDate(0, -1, 0))
}

// MonthNext returns the key of the month after key.
func MonthNext(key string) string {
	t, err := ParseMonthKey(key)
	if err != nil {
		return key
	}
	return MonthKey(t.AddDate(0, 1, 0))
}
