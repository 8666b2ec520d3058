package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	relativeRe = regexp.MustCompile(`^in\s+(\d+)\s*(minutes?|mins?|m|hours?|hrs?|h|days?|d)$`)
	clockRe    = regexp.MustCompile(`^(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
)

var absoluteLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseWhen turns a reminder time into an absolute timestamp. It accepts
// RFC 3339, local "YYYY-MM-DD HH:MM", a bare date (09:00), "in N
// minutes/hours/days", and "today|tomorrow [at] [H[:MM]][am|pm]"
// (tomorrow defaults to 09:00).
func parseWhen(raw string, now time.Time) (time.Time, error) {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	loc := now.Location()

	if t, err := time.Parse(time.RFC3339, strings.ToUpper(text)); err == nil {
		return t, nil
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, nil
		}
	}
	if d, err := time.ParseInLocation("2006-01-02", text, loc); err == nil {
		return d.Add(9 * time.Hour), nil
	}

	if m := relativeRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2][0] {
		case 'm':
			return now.Add(time.Duration(n) * time.Minute), nil
		case 'h':
			return now.Add(time.Duration(n) * time.Hour), nil
		default:
			return now.AddDate(0, 0, n), nil
		}
	}

	for _, day := range []struct {
		word   string
		offset int
	}{{"tomorrow", 1}, {"today", 0}} {
		if !strings.HasPrefix(text, day.word) {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(text, day.word))
		hour, minute := 9, 0
		if rest != "" {
			var err error
			hour, minute, err = parseClock(rest)
			if err != nil {
				return time.Time{}, err
			}
		} else if day.offset == 0 {
			return time.Time{}, fmt.Errorf("time of day required for %q", raw)
		}
		y, mo, d := now.AddDate(0, 0, day.offset).Date()
		return time.Date(y, mo, d, hour, minute, 0, 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("cannot understand time %q", raw)
}

func parseClock(text string) (int, int, error) {
	m := clockRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, fmt.Errorf("cannot understand time of day %q", text)
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch m[3] {
	case "am":
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 12 {
			hour += 12
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("time of day out of range %q", text)
	}
	return hour, minute, nil
}

// isAbsoluteWhen is true for inputs that already carry a calendar date.
func isAbsoluteWhen(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), "20")
}
