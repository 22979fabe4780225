package application

import (
	"testing"
	"time"
)

func TestSchedulerShouldRun(t *testing.T) {
	s := &Scheduler{dailyAt: "09:05"}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"matching minute", time.Date(2026, 3, 2, 9, 5, 30, 0, time.UTC), true},
		{"minute before", time.Date(2026, 3, 2, 9, 4, 59, 0, time.UTC), false},
		{"minute after", time.Date(2026, 3, 2, 9, 6, 0, 0, time.UTC), false},
		{"same minute other hour", time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.shouldRun(tc.now); got != tc.want {
				t.Fatalf("shouldRun(%s) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestSchedulerBadScheduleNeverRuns(t *testing.T) {
	s := &Scheduler{dailyAt: "whenever"}
	if s.shouldRun(time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)) {
		t.Fatal("unparseable schedule must never fire")
	}
}

func TestParseDailyAt(t *testing.T) {
	hour, minute, err := parseDailyAt("14:30")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if hour != 14 || minute != 30 {
		t.Fatalf("parsed %d:%d, want 14:30", hour, minute)
	}
	if _, _, err := parseDailyAt("25:00"); err == nil {
		t.Fatal("expected error for invalid hour")
	}
}
