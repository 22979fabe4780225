package deadline

import (
	"context"
	"time"
)

// DefaultCutoff applies when the settings store has no value or is
// unreachable.
const DefaultCutoff = "09:00"

// DateLayout is the canonical day key used across the service.
const DateLayout = "2006-01-02"

// CutoffSource returns the current HH:MM cutoff. It is consulted fresh on
// every check so an admin change takes effect mid-day.
type CutoffSource interface {
	Cutoff(ctx context.Context) (string, error)
}

// StaticCutoff is a CutoffSource with a fixed value, used in tests and as a
// fallback when no settings store is wired.
type StaticCutoff string

// Cutoff implements CutoffSource.
func (s StaticCutoff) Cutoff(ctx context.Context) (string, error) { return string(s), nil }

// Policy decides whether ordering and cancellation for a date are still
// open. All comparisons happen in one fixed operating timezone; using the
// host zone would silently shift the deadline between deployments.
type Policy struct {
	loc    *time.Location
	source CutoffSource
}

// NewPolicy constructs a policy for the operating timezone.
func NewPolicy(loc *time.Location, source CutoffSource) *Policy {
	if loc == nil {
		loc = time.UTC
	}
	if source == nil {
		source = StaticCutoff(DefaultCutoff)
	}
	return &Policy{loc: loc, source: source}
}

// Location returns the operating timezone.
func (p *Policy) Location() *time.Location { return p.loc }

// Today returns the current day key in the operating timezone.
func (p *Policy) Today(now time.Time) string {
	return now.In(p.loc).Format(DateLayout)
}

// IsPastDeadline reports whether the window for candidateDate has closed at
// the given instant, along with the cutoff that applied. Only orders for the
// current operating-timezone day can be past deadline; future dates are
// always open.
func (p *Policy) IsPastDeadline(ctx context.Context, now time.Time, candidateDate string) (bool, string) {
	cutoff := p.resolveCutoff(ctx)
	return IsPast(now, p.loc, cutoff, candidateDate), cutoff
}

func (p *Policy) resolveCutoff(ctx context.Context) string {
	value, err := p.source.Cutoff(ctx)
	if err != nil || value == "" {
		return DefaultCutoff
	}
	if _, err := time.Parse("15:04", value); err != nil {
		return DefaultCutoff
	}
	return value
}

// IsPast is the pure deadline rule: true only when candidateDate is the
// reference date in loc and the local time-of-day is at or after cutoff.
func IsPast(now time.Time, loc *time.Location, cutoff, candidateDate string) bool {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	if local.Format(DateLayout) != candidateDate {
		return false
	}
	parsed, err := time.Parse("15:04", cutoff)
	if err != nil {
		parsed, _ = time.Parse("15:04", DefaultCutoff)
	}
	hour, minute := parsed.Hour(), parsed.Minute()
	if local.Hour() != hour {
		return local.Hour() > hour
	}
	return local.Minute() >= minute
}
