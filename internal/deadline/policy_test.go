package deadline

import (
	"context"
	"errors"
	"testing"
	"time"
)

var taipei = time.FixedZone("UTC+8", 8*3600)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, taipei)
}

func TestIsPast(t *testing.T) {
	cases := []struct {
		name      string
		now       time.Time
		cutoff    string
		candidate string
		want      bool
	}{
		{"before cutoff", at(8, 59), "09:00", "2026-03-02", false},
		{"at cutoff", at(9, 0), "09:00", "2026-03-02", true},
		{"after cutoff", at(10, 30), "09:00", "2026-03-02", true},
		{"tomorrow stays open", at(23, 59), "09:00", "2026-03-03", false},
		{"yesterday is not today", at(0, 1), "09:00", "2026-03-01", false},
		{"custom cutoff before", at(10, 29), "10:30", "2026-03-02", false},
		{"custom cutoff at", at(10, 30), "10:30", "2026-03-02", true},
		{"bad cutoff falls back past", at(9, 30), "noon", "2026-03-02", true},
		{"bad cutoff falls back open", at(8, 30), "noon", "2026-03-02", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsPast(tc.now, taipei, tc.cutoff, tc.candidate); got != tc.want {
				t.Fatalf("IsPast(%s, %q, %q) = %v, want %v", tc.now, tc.cutoff, tc.candidate, got, tc.want)
			}
		})
	}
}

func TestIsPastTimezoneConversion(t *testing.T) {
	// 2026-03-02 02:00 UTC is 10:00 in the operating zone: past the cutoff
	// for the local day even though UTC is still early morning.
	now := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)
	if !IsPast(now, taipei, "09:00", "2026-03-02") {
		t.Fatal("expected local-time conversion to close the window")
	}
	// 2026-03-01 23:00 UTC is already 2026-03-02 07:00 locally.
	now = time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	if IsPast(now, taipei, "09:00", "2026-03-02") {
		t.Fatal("expected window still open before local cutoff")
	}
}

type failingSource struct{}

func (failingSource) Cutoff(ctx context.Context) (string, error) {
	return "", errors.New("settings store down")
}

func TestPolicyFallsBackToDefaultCutoff(t *testing.T) {
	cases := []struct {
		name   string
		source CutoffSource
	}{
		{"source error", failingSource{}},
		{"empty value", StaticCutoff("")},
		{"unparseable value", StaticCutoff("soon")},
		{"nil source", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			policy := NewPolicy(taipei, tc.source)
			past, cutoff := policy.IsPastDeadline(context.Background(), at(9, 0), "2026-03-02")
			if cutoff != DefaultCutoff {
				t.Fatalf("cutoff = %q, want default %q", cutoff, DefaultCutoff)
			}
			if !past {
				t.Fatal("expected past deadline at the default cutoff")
			}
		})
	}
}

func TestPolicyUsesConfiguredCutoff(t *testing.T) {
	policy := NewPolicy(taipei, StaticCutoff("11:00"))
	past, cutoff := policy.IsPastDeadline(context.Background(), at(10, 0), "2026-03-02")
	if cutoff != "11:00" {
		t.Fatalf("cutoff = %q, want 11:00", cutoff)
	}
	if past {
		t.Fatal("expected window open before the configured cutoff")
	}
}

func TestToday(t *testing.T) {
	policy := NewPolicy(taipei, nil)
	// 2026-03-01 20:00 UTC is already 2026-03-02 in the operating zone.
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	if got := policy.Today(now); got != "2026-03-02" {
		t.Fatalf("Today = %q, want 2026-03-02", got)
	}
}
