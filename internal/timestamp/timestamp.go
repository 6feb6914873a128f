// Package timestamp produces plausible send times for simulated
// communications.
package timestamp

import (
	"math/rand"
	"strings"
	"time"
)

// Category shapes reply latency.
type Category int

const (
	CategoryNormal Category = iota
	// CategoryFraud covers cover-up flavored scenarios with fast replies and
	// occasional deliberate delays.
	CategoryFraud
	// CategoryPrivilege covers legal consultations answered within a day.
	CategoryPrivilege
)

func (c Category) String() string {
	switch c {
	case CategoryFraud:
		return "fraud"
	case CategoryPrivilege:
		return "privilege"
	}
	return "normal"
}

var (
	fraudKeywords   = []string{"fraud", "hiding", "coverup", "destruction", "shred", "manipulat"}
	privKeywords    = []string{"privilege", "confidential"}
	urgencyKeywords = []string{"urgent", "asap", "immediately", "critical", "emergency", "catastrophic"}
)

// Categorize derives the timing category from a scenario description.
func Categorize(description string) Category {
	d := strings.ToLower(description)
	if containsAny(d, fraudKeywords) {
		return CategoryFraud
	}
	if containsAny(d, privKeywords) {
		return CategoryPrivilege
	}
	return CategoryNormal
}

// DetectUrgency reports whether message text reads as urgent.
func DetectUrgency(subject, body string) bool {
	return containsAny(strings.ToLower(subject)+strings.ToLower(body), urgencyKeywords)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// WeekendPolicy controls the weekend-avoidance branch.
type WeekendPolicy int

const (
	// WeekendRandom respects weekends 90% of the time.
	WeekendRandom WeekendPolicy = iota
	// WeekendAlwaysRespect forces the weekend-avoidance branch.
	WeekendAlwaysRespect
	// WeekendNeverRespect skips weekend handling entirely.
	WeekendNeverRespect
)

// Simulator generates timestamps. It is not safe for concurrent use; give
// each worker its own.
type Simulator struct {
	rng     *rand.Rand
	now     func() time.Time
	weekend WeekendPolicy
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithClock replaces time.Now as the anchor for first timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithWeekendPolicy overrides the weekend branch decision.
func WithWeekendPolicy(p WeekendPolicy) Option {
	return func(s *Simulator) { s.weekend = p }
}

// New creates a Simulator drawing from rng.
func New(rng *rand.Rand, opts ...Option) *Simulator {
	s := &Simulator{rng: rng, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns the timestamp following prev. A nil prev anchors the result
// 10 to 100 days before now. hoursHint is the nominal gap for normal
// replies; with no hint and a normal category the base time is kept.
func (s *Simulator) Next(prev *time.Time, hoursHint *int, cat Category, urgent bool) time.Time {
	var t time.Time
	if prev == nil {
		t = s.now().AddDate(0, 0, -s.between(10, 100))
	} else {
		t = *prev
	}

	t = t.Add(s.delta(prev != nil, hoursHint, cat, urgent))
	t = s.snapToWorkingHours(t, cat == CategoryFraud || urgent)
	return s.handleWeekend(t)
}

func (s *Simulator) delta(hasPrev bool, hoursHint *int, cat Category, urgent bool) time.Duration {
	if !hasPrev {
		return 0
	}
	switch {
	case cat == CategoryFraud || urgent:
		if cat == CategoryFraud && s.rng.Float64() < 0.3 {
			return hours(s.between(24, 72)) + minutes(s.between(0, 59))
		}
		return minutes(s.between(30, 240))
	case cat == CategoryPrivilege:
		return hours(s.between(2, 24)) + minutes(s.between(0, 59))
	case hoursHint != nil:
		return hours(*hoursHint) + minutes(s.between(1, 59))
	}
	return 0
}

// snapToWorkingHours keeps the date and rewrites the time of day: 80% in
// 08:00-18:00, 10% in 06:00-08:00 and 10% in the evening.
func (s *Simulator) snapToWorkingHours(t time.Time, lateEvening bool) time.Time {
	var hour int
	switch {
	case s.rng.Float64() < 0.8:
		hour = s.between(8, 17)
	case s.rng.Float64() < 0.5:
		hour = s.between(6, 7)
	default:
		last := 20
		if lateEvening {
			last = 22
		}
		hour = s.between(18, last)
	}
	return atClock(t, hour, s.between(0, 59), t.Second())
}

func (s *Simulator) handleWeekend(t time.Time) time.Time {
	switch s.weekend {
	case WeekendNeverRespect:
		return t
	case WeekendRandom:
		if s.rng.Float64() >= 0.9 {
			return t
		}
	}

	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, 1)
	}
	if t.Weekday() == time.Friday && t.Hour() >= 17 && s.rng.Float64() < 0.7 {
		t = t.AddDate(0, 0, 3)
		t = atClock(t, s.between(8, 9), s.between(0, 59), t.Second())
	}
	return t
}

// between returns a uniform integer in [lo, hi].
func (s *Simulator) between(lo, hi int) int {
	return lo + s.rng.Intn(hi-lo+1)
}

func atClock(t time.Time, hour, minute, sec int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, sec, t.Nanosecond(), t.Location())
}

func hours(n int) time.Duration   { return time.Duration(n) * time.Hour }
func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }
