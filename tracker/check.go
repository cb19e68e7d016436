package tracker

import (
	"log/slog"
	"math/rand/v2"
	"time"
)

// Check is a fired attentiveness probe awaiting a response.
type Check struct {
	ID       string
	Deadline time.Time
}

// randomCheckDelay picks a uniformly random delay within the configured
// bounds.
func randomCheckDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}

	return min + rand.N(max-min)
}

// scheduleCheck arms the one-shot check timer. Callers hold the state lock.
func (t *Tracker) scheduleCheck() {
	t.cancelCheckTimers()

	delay := t.checkDelay()

	t.state.NextCheckAt = t.now().Add(delay)
	t.checkTimer = time.AfterFunc(delay, t.fireCheck)
}

// ensureCheckScheduled arms a check if none is armed or outstanding. Used
// when the machine re-enters Anchored, since Drifted sessions do not spawn
// checks.
func (t *Tracker) ensureCheckScheduled() {
	if t.checkTimer != nil || t.state.PendingCheckID != "" {
		return
	}

	t.scheduleCheck()
}

// cancelCheckTimers stops both the countdown to the next check and the
// response-window timeout of an outstanding one.
func (t *Tracker) cancelCheckTimers() {
	if t.checkTimer != nil {
		t.checkTimer.Stop()
		t.checkTimer = nil
	}

	if t.checkTimeout != nil {
		t.checkTimeout.Stop()
		t.checkTimeout = nil
	}

	t.state.NextCheckAt = time.Time{}
	t.state.PendingCheckID = ""
}

// fireCheck presents the probe and starts the response window. Firing while
// Drifted presents nothing and leaves the timer unarmed; the next check is
// scheduled when the session re-anchors.
func (t *Tracker) fireCheck() {
	t.mu.Lock()

	t.checkTimer = nil
	t.state.NextCheckAt = time.Time{}

	if !t.state.Active() || t.state.PendingCheckID != "" {
		t.mu.Unlock()
		return
	}

	if t.currentState() != Anchored {
		t.mu.Unlock()
		return
	}

	now := t.now()

	id := "check-" + now.Format(time.RFC3339Nano)
	window := t.cfg.Tracking.CheckWindow

	t.state.PendingCheckID = id

	t.checkTimeout = time.AfterFunc(window, func() {
		// silence is failure
		t.ObserveCheckOutcome(id, false)
	})

	notify := t.onCheck
	check := Check{ID: id, Deadline: now.Add(window)}

	t.persist()

	t.mu.Unlock()

	slog.Debug("integrity check fired", "check", id)

	if notify != nil {
		notify(check)
	}
}

// ConfirmRefocus clears a standing check failure after the user explicitly
// confirms they are back on task. This is the recovery path out of a
// failed-check demotion, since a drifted session is never presented another
// automatic check.
func (t *Tracker) ConfirmRefocus() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.Active() || !t.state.CheckFailed {
		return
	}

	t.state.CheckFailed = false

	slog.Info("focus reconfirmed by user")

	t.reevaluate(t.now())
	t.persist()
}

// ObserveCheckOutcome records the result of an outstanding check. A failure
// demotes the machine until the next passed check; a pass clears the failed
// flag. Either way the segment boundary is stamped at this instant so the
// failed_check reason is never applied retroactively.
func (t *Tracker) ObserveCheckOutcome(id string, passed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.Active() || t.state.PendingCheckID != id {
		// stale response for a check that already resolved
		return
	}

	t.state.PendingCheckID = ""

	if t.checkTimeout != nil {
		t.checkTimeout.Stop()
		t.checkTimeout = nil
	}

	t.state.CheckFailed = !passed

	slog.Info("integrity check resolved", "check", id, "passed", passed)

	t.reevaluate(t.now())

	if t.currentState() == Anchored {
		t.scheduleCheck()
	}

	t.persist()
}
