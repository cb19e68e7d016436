package tracker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"
)

// EventKind tags the messages arriving from the browser extension bridge.
type EventKind string

const (
	EventTabChange     EventKind = "tab_change"
	EventActivity      EventKind = "activity"
	EventCheckResponse EventKind = "check_response"
)

// Event is one environment observation delivered by the bridge. Timestamps
// default to arrival time when absent.
type Event struct {
	Kind     EventKind `json:"kind"`
	Time     time.Time `json:"time,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	CheckID  string    `json:"check_id,omitempty"`
	Response string    `json:"response,omitempty"`
}

// UnknownEventError reports an event kind outside the closed set.
type UnknownEventError struct {
	Kind EventKind
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event kind %q", e.Kind)
}

// HandleEvent feeds one environment event into the state machine.
func (t *Tracker) HandleEvent(ev Event) error {
	ts := ev.Time
	if ts.IsZero() {
		ts = t.now()
	}

	switch ev.Kind {
	case EventTabChange:
		t.ObserveTabChange(ev.Domain, ts)
	case EventActivity:
		t.ObserveActivity(ts)
	case EventCheckResponse:
		t.ObserveCheckOutcome(ev.CheckID, ev.Response == "focused")
	default:
		return &UnknownEventError{Kind: ev.Kind}
	}

	return nil
}

// ReadEvents decodes JSON-lines events from the bridge and feeds them into
// the tracker until EOF or context cancellation. Malformed lines are logged
// and skipped; the bridge must never be able to crash tracking.
func (t *Tracker) ReadEvents(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev Event

		if err := json.Unmarshal(line, &ev); err != nil {
			slog.Warn("malformed bridge event", "error", err)
			continue
		}

		if err := t.HandleEvent(ev); err != nil {
			slog.Warn("bridge event rejected", "error", err)
		}
	}

	return scanner.Err()
}

// Simulate generates synthetic browsing events until the context is
// canceled. It exists for demos and for exercising the agent without a
// browser extension attached.
func (t *Tracker) Simulate(ctx context.Context, interval time.Duration) {
	domains := []string{
		"github.com",
		"pkg.go.dev",
		"stackoverflow.com",
		"youtube.com",
		"reddit.com",
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if rand.IntN(3) == 0 {
				t.ObserveTabChange(domains[rand.IntN(len(domains))], t.now())
			} else {
				t.ObserveActivity(t.now())
			}
		}
	}
}
