package service

import (
	"testing"
	"time"
)

func TestParseWhen(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-12T08:15:00Z", time.Date(2026, 3, 12, 8, 15, 0, 0, time.UTC)},
		{"2026-03-12 18:00", time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC)},
		{"2026-03-12", time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)},
		{"in 2 hours", now.Add(2 * time.Hour)},
		{"in 45 minutes", now.Add(45 * time.Minute)},
		{"In 3 days", now.AddDate(0, 0, 3)},
		{"tomorrow", time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)},
		{"tomorrow 7pm", time.Date(2026, 3, 11, 19, 0, 0, 0, time.UTC)},
		{"tomorrow at 10:45", time.Date(2026, 3, 11, 10, 45, 0, 0, time.UTC)},
		{"today 12am", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := parseWhen(tc.in, now)
		if err != nil {
			t.Fatalf("parseWhen(%q): %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("parseWhen(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"", "someday", "tomorrow 25:00", "today"} {
		if _, err := parseWhen(bad, now); err == nil {
			t.Fatalf("parseWhen(%q): expected error", bad)
		}
	}
}
