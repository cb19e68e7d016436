package store

import (
	"time"

	"github.com/anchorhq/anchor/internal/segment"
)

// DB is the database storage interface.
type DB interface {
	// SaveRuntime persists a snapshot of the agent's runtime state for
	// crash/suspend recovery
	SaveRuntime(state []byte) error
	// GetRuntime returns the last persisted runtime state, or nil if no
	// session was in flight
	GetRuntime() ([]byte, error)
	// DeleteRuntime removes the active-session record
	DeleteRuntime() error
	// SaveSession stores a finished session. The session is created if it
	// doesn't exist already, or overwritten if it does.
	SaveSession(m *segment.Metrics) error
	// GetSessions returns finished sessions within the time bounds
	GetSessions(startTime, endTime time.Time) ([]segment.Metrics, error)
	// LastUnsynced returns the most recent finished session that has not
	// been uploaded yet, or nil
	LastUnsynced() (*segment.Metrics, error)
	// SavePending stores or overwrites a pending upload batch
	SavePending(p *segment.PendingUpload) error
	// GetPending returns all pending upload batches
	GetPending() ([]segment.PendingUpload, error)
	// DeletePending removes the pending batch for a session
	DeletePending(sessionID string) error
	// AddDayTotal accumulates locked-in seconds for a calendar day
	AddDayTotal(day string, seconds float64) error
	// GetDayTotals returns locked-in seconds keyed by yyyy-mm-dd
	GetDayTotals() (map[string]float64, error)
	// Close ends the database connection
	Close() error
}
