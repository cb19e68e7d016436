// Package segment defines activity segments and session metrics
package segment

import (
	"time"
)

// Reason explains why a segment is not locked in. It is empty while the
// segment is locked in.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonUnproductiveDomain Reason = "unproductive_domain"
	ReasonIdle               Reason = "idle_beyond_2m"
	ReasonFailedCheck        Reason = "failed_check"
	ReasonOther              Reason = "other"
)

// Segment is a half-open interval [Start, End) during which the domain,
// classification, and lock state were all constant. The open segment of an
// active session has a zero End until it is closed.
type Segment struct {
	Start      time.Time `json:"start_time"`
	End        time.Time `json:"end_time"`
	Domain     string    `json:"domain,omitempty"`
	Productive bool      `json:"productive"`
	LockedIn   bool      `json:"locked_in"`
	Reason     Reason    `json:"reason,omitempty"`
}

// Open reports whether the segment has not been closed yet.
func (s *Segment) Open() bool {
	return s.End.IsZero()
}

// Duration returns the length of a closed segment.
func (s *Segment) Duration() time.Duration {
	if s.Open() {
		return 0
	}

	return s.End.Sub(s.Start)
}

// Condition is the tuple of observations the recorder derives a segment's
// lock state and reason from.
type Condition struct {
	Domain      string
	Productive  bool
	IdleFor     time.Duration
	CheckFailed bool

	// Threshold overrides IdleThreshold when positive.
	Threshold time.Duration
}

// IdleThreshold is the default inactivity duration beyond which a session
// can no longer be considered locked in.
const IdleThreshold = 2 * time.Minute

func (c Condition) idleThreshold() time.Duration {
	if c.Threshold > 0 {
		return c.Threshold
	}

	return IdleThreshold
}

// LockedIn evaluates the lock predicate: productive domain, idle time below
// the threshold, and no failed integrity check outstanding.
func (c Condition) LockedIn() bool {
	return c.Productive && c.IdleFor < c.idleThreshold() && !c.CheckFailed
}

// reasonRule pairs a reason with the condition that selects it.
type reasonRule struct {
	reason Reason
	holds  func(Condition) bool
}

// reasonPrecedence is evaluated in order; the first rule that holds wins.
// Domain classification is checked before idleness so that idling on a
// distracting site is attributed to the site. An empty domain was never
// classified, so it can't be blamed on classification.
var reasonPrecedence = []reasonRule{
	{ReasonUnproductiveDomain, func(c Condition) bool { return c.Domain != "" && !c.Productive }},
	{ReasonIdle, func(c Condition) bool { return c.IdleFor >= c.idleThreshold() }},
	{ReasonFailedCheck, func(c Condition) bool { return c.CheckFailed }},
	{ReasonOther, func(Condition) bool { return true }},
}

// DriftReason selects the reason for a non-locked-in segment. It returns
// ReasonNone when the condition is locked in.
func DriftReason(c Condition) Reason {
	if c.LockedIn() {
		return ReasonNone
	}

	for _, rule := range reasonPrecedence {
		if rule.holds(c) {
			return rule.reason
		}
	}

	return ReasonOther
}

// New opens a segment reflecting the given condition.
func New(start time.Time, c Condition) Segment {
	return Segment{
		Start:      start,
		Domain:     c.Domain,
		Productive: c.Productive,
		LockedIn:   c.LockedIn(),
		Reason:     DriftReason(c),
	}
}

// Metrics is the immutable projection of a finished session handed to the
// analytics engine and the upload path.
type Metrics struct {
	ID              string        `json:"id"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	TotalSeconds    float64       `json:"total_seconds"`
	LockedInSeconds float64       `json:"locked_in_seconds"`
	NonLockSeconds  float64       `json:"non_lock_seconds"`
	IdleSeconds     float64       `json:"idle_seconds"`
	TabSwitches     int           `json:"tab_switches"`
	LockBreaks      int           `json:"lock_breaks"`
	FocusRate       float64       `json:"focus_rate"`
	Segments        []Segment     `json:"segments"`
	Uploaded        bool          `json:"uploaded"`
}

// Finalize derives a Metrics snapshot from a closed segment list. Counters
// are recomputed from the segments rather than trusted from running totals,
// so the segment log remains the single source of truth.
func Finalize(
	id string,
	start, end time.Time,
	segments []Segment,
	tabSwitches, lockBreaks int,
) Metrics {
	m := Metrics{
		ID:          id,
		StartTime:   start,
		EndTime:     end,
		TabSwitches: tabSwitches,
		LockBreaks:  lockBreaks,
		Segments:    segments,
	}

	m.TotalSeconds = end.Sub(start).Seconds()

	for i := range segments {
		seg := segments[i]

		d := seg.Duration().Seconds()

		if seg.LockedIn {
			m.LockedInSeconds += d
		} else {
			m.NonLockSeconds += d
		}

		if seg.Reason == ReasonIdle {
			m.IdleSeconds += d
		}
	}

	if m.TotalSeconds > 0 {
		m.FocusRate = m.LockedInSeconds / m.TotalSeconds
	}

	return m
}
