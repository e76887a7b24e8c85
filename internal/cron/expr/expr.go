// Package expr parses the 5-field cron expressions used by distributed
// cron jobs (spec.md §4.6) and classifies them as FixedInterval or
// DynamicInterval by sampling their next ten firings.
//
// No cron-expression library appears anywhere in the retrieved corpus
// (go.mod/go.sum across the pack), so this is a small hand-rolled
// evaluator rather than an invented ecosystem dependency; see DESIGN.md.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed 5-field cron expression: minute hour
// day-of-month month day-of-week, each either "*" or a comma-separated
// list of integers in range.
type Schedule struct {
	minutes  fieldSet
	hours    fieldSet
	doms     fieldSet
	months   fieldSet
	dows     fieldSet
	wildDom  bool
	wildDow  bool
}

type fieldSet map[int]struct{}

// Parse parses a 5-field cron expression ("min hour dom mon dow").
func Parse(s string) (*Schedule, error) {
	fields := strings.Fields(s)
	if len(fields) != 5 {
		return nil, fmt.Errorf("expr: expected 5 fields, found %d in %q", len(fields), s)
	}
	minutes, _, err := parseField(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("expr: minute field: %w", err)
	}
	hours, _, err := parseField(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("expr: hour field: %w", err)
	}
	doms, wildDom, err := parseField(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("expr: day-of-month field: %w", err)
	}
	months, _, err := parseField(fields[3], 1, 12)
	if err != nil {
		return nil, fmt.Errorf("expr: month field: %w", err)
	}
	dows, wildDow, err := parseField(fields[4], 0, 6)
	if err != nil {
		return nil, fmt.Errorf("expr: day-of-week field: %w", err)
	}
	return &Schedule{
		minutes: minutes, hours: hours, doms: doms, months: months, dows: dows,
		wildDom: wildDom, wildDow: wildDow,
	}, nil
}

func parseField(f string, lo, hi int) (fieldSet, bool, error) {
	set := make(fieldSet)
	if f == "*" {
		for i := lo; i <= hi; i++ {
			set[i] = struct{}{}
		}
		return set, true, nil
	}
	for _, part := range strings.Split(f, ",") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, false, fmt.Errorf("invalid value %q", part)
		}
		if n < lo || n > hi {
			return nil, false, fmt.Errorf("value %d out of range [%d,%d]", n, lo, hi)
		}
		set[n] = struct{}{}
	}
	return set, false, nil
}

func (s *Schedule) matches(t time.Time) bool {
	if _, ok := s.minutes[t.Minute()]; !ok {
		return false
	}
	if _, ok := s.hours[t.Hour()]; !ok {
		return false
	}
	if _, ok := s.months[int(t.Month())]; !ok {
		return false
	}
	_, domOK := s.doms[t.Day()]
	_, dowOK := s.dows[int(t.Weekday())]
	switch {
	case s.wildDom && s.wildDow:
		return true
	case s.wildDom:
		return dowOK
	case s.wildDow:
		return domOK
	default:
		// Standard cron OR semantics when both fields are restricted.
		return domOK || dowOK
	}
}

// Next returns the first firing strictly after after, truncated to minute
// granularity (the finest this dialect supports).
func (s *Schedule) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)
	// Bounded search: at most ~5 years of minutes before giving up, which
	// only happens for a field combination that can never be satisfied
	// (e.g. Feb 30).
	limit := t.AddDate(5, 0, 0)
	for t.Before(limit) {
		if s.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

// Kind classifies how regularly a job's firings recur.
type Kind string

const (
	// FixedInterval jobs fire at a constant period; the distributed-cron
	// stream can use the period directly as the stream's max_age.
	FixedInterval Kind = "fixed_interval"
	// DynamicInterval jobs fire at irregular intervals (e.g. day-of-month
	// or day-of-week expressions); each firing must recompute the next
	// sentinel TTL individually.
	DynamicInterval Kind = "dynamic_interval"
)

// toleranceSeconds is the window within which consecutive intervals are
// considered "equal" for FixedInterval classification (spec.md §4.6).
const toleranceSeconds = 2

// sampleSize is how many firings are computed to classify an expression.
const sampleSize = 10

// Classify computes the next sampleSize firings of s starting from now and
// reports whether every consecutive interval is equal within a 2s
// tolerance (FixedInterval) or not (DynamicInterval). For a FixedInterval
// schedule, interval is the common period; for DynamicInterval it is the
// time until the very next firing.
func Classify(s *Schedule, now time.Time) (kind Kind, interval time.Duration) {
	firings := make([]time.Time, 0, sampleSize)
	t := now
	for i := 0; i < sampleSize; i++ {
		t = s.Next(t)
		if t.IsZero() {
			break
		}
		firings = append(firings, t)
	}
	if len(firings) < 2 {
		if len(firings) == 1 {
			return DynamicInterval, firings[0].Sub(now)
		}
		return DynamicInterval, 0
	}

	first := firings[1].Sub(firings[0])
	fixed := true
	for i := 2; i < len(firings); i++ {
		d := firings[i].Sub(firings[i-1])
		diff := d - first
		if diff < 0 {
			diff = -diff
		}
		if diff > toleranceSeconds*time.Second {
			fixed = false
			break
		}
	}
	if fixed {
		return FixedInterval, first
	}
	return DynamicInterval, firings[0].Sub(now)
}
