package tracker

import (
	"time"

	"github.com/anchorhq/anchor/internal/segment"
)

// State is the coarse position of the session state machine.
type State string

const (
	NoSession State = "no_session"
	Anchored  State = "anchored"
	Drifted   State = "drifted"
)

// RuntimeState is the single mutable record the agent holds while alive. It
// is mutated only by the Tracker and persisted on every session-state change
// so an in-flight session survives a crash or suspend.
type RuntimeState struct {
	SessionID    string    `json:"session_id"`
	StartTime    time.Time `json:"start_time"`
	LastActivity time.Time `json:"last_activity"`
	PersistedAt  time.Time `json:"persisted_at"`

	Domain     string `json:"domain"`
	Productive bool   `json:"productive"`

	CheckFailed    bool      `json:"check_failed"`
	PendingCheckID string    `json:"pending_check_id,omitempty"`
	NextCheckAt    time.Time `json:"next_check_at,omitempty"`

	Open     *segment.Segment  `json:"open_segment,omitempty"`
	Segments []segment.Segment `json:"segments"`

	// Running counters, updated as segments close. The finalized metrics
	// are recomputed from the segment log instead of trusting these.
	LockedInSeconds float64 `json:"locked_in_seconds"`
	NonLockSeconds  float64 `json:"non_lock_seconds"`
	IdleSeconds     float64 `json:"idle_seconds"`
	TabSwitches     int     `json:"tab_switches"`
	LockBreaks      int     `json:"lock_breaks"`
}

// Active reports whether a session is in flight.
func (r *RuntimeState) Active() bool {
	return r.SessionID != ""
}

// State derives the machine state from the record; it is never stored.
func (r *RuntimeState) State() State {
	if !r.Active() {
		return NoSession
	}

	if r.Open != nil && r.Open.LockedIn {
		return Anchored
	}

	return Drifted
}

// reset returns the runtime record to its idle, no-session defaults.
func (r *RuntimeState) reset() {
	*r = RuntimeState{}
}

// Snapshot is the read-only projection of RuntimeState exposed to the
// hosting UI layer.
type Snapshot struct {
	State           State         `json:"state"`
	SessionID       string        `json:"session_id,omitempty"`
	StartTime       time.Time     `json:"start_time"`
	Elapsed         time.Duration `json:"elapsed"`
	Domain          string        `json:"domain,omitempty"`
	Productive      bool          `json:"productive"`
	IdleFor         time.Duration `json:"idle_for"`
	LockedInSeconds float64       `json:"locked_in_seconds"`
	FocusRate       float64       `json:"focus_rate"`
	TabSwitches     int           `json:"tab_switches"`
	LockBreaks      int           `json:"lock_breaks"`
	CheckPending    bool          `json:"check_pending"`
	Streak          int           `json:"streak"`
}
