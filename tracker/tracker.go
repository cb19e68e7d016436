// Package tracker operates the focus-session state machine and drives
// segment recording, idle detection, integrity checks, and upload flushes
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/anchorhq/anchor/analytics"
	"github.com/anchorhq/anchor/classify"
	"github.com/anchorhq/anchor/internal/config"
	"github.com/anchorhq/anchor/internal/segment"
	"github.com/anchorhq/anchor/internal/timeutil"
	"github.com/anchorhq/anchor/store"
	"github.com/anchorhq/anchor/uplink"
)

var (
	ErrSessionActive = errors.New(
		"a session is already active: finish it before starting another",
	)

	ErrNoSession = errors.New("no active session")
)

const classifyTimeout = 3 * time.Second

// Tracker owns the RuntimeState and is its only mutator. Handlers are
// serialized by the mutex; the idle poll, the check countdown, and the
// upload flush all funnel through it.
type Tracker struct {
	mu sync.Mutex

	cfg        *config.Config
	db         store.DB
	classifier *classify.Classifier
	client     *uplink.Client
	queue      *uplink.Queue

	state RuntimeState

	checkTimer   *time.Timer
	checkTimeout *time.Timer
	onCheck      func(Check)

	// overridable in tests
	now        func() time.Time
	checkDelay func() time.Duration

	ticks int
}

// New creates a tracker in the no-session state.
func New(
	cfg *config.Config,
	db store.DB,
	classifier *classify.Classifier,
	client *uplink.Client,
) *Tracker {
	t := &Tracker{
		cfg:        cfg,
		db:         db,
		classifier: classifier,
		client:     client,
		queue:      uplink.NewQueue(db, client),
		now:        time.Now,
	}

	t.checkDelay = func() time.Duration {
		return randomCheckDelay(
			cfg.Tracking.CheckDelayMin,
			cfg.Tracking.CheckDelayMax,
		)
	}

	return t
}

// SetCheckNotifier registers the callback invoked when an integrity check
// fires. The callback must not block; it runs on the timer goroutine.
func (t *Tracker) SetCheckNotifier(fn func(Check)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.onCheck = fn
}

func (t *Tracker) currentState() State {
	return t.state.State()
}

// condition assembles the transition predicate inputs at the given instant.
func (t *Tracker) condition(ts time.Time) segment.Condition {
	return segment.Condition{
		Domain:      t.state.Domain,
		Productive:  t.state.Productive,
		IdleFor:     ts.Sub(t.state.LastActivity),
		CheckFailed: t.state.CheckFailed,
		Threshold:   t.cfg.Tracking.IdleThreshold,
	}
}

// Start begins a new session. The session id comes from the lifecycle
// service when reachable and is minted locally otherwise, so tracking never
// blocks on connectivity.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Active() {
		return ErrSessionActive
	}

	now := t.now()

	id, err := t.client.StartSession(ctx)
	if err != nil {
		id = uplink.MintLocalID(now)

		slog.Info(
			"session service unreachable, tracking locally",
			"session", id,
			"error", err,
		)
	}

	t.state.reset()
	t.state.SessionID = id
	t.state.StartTime = now
	t.state.LastActivity = now

	t.openSegment(now, t.condition(now))

	t.scheduleCheck()

	t.persist()

	slog.Info("session started", "session", id)

	return nil
}

// Finish closes the open segment, cancels the pending check timers, and
// recomputes final counters from the full segment list rather than the
// running counters. The finished session is archived locally before any
// upload is attempted.
func (t *Tracker) Finish(ctx context.Context) (*segment.Metrics, error) {
	t.mu.Lock()

	if !t.state.Active() {
		t.mu.Unlock()
		return nil, ErrNoSession
	}

	now := t.now()

	// Timers must die before the state is cleared, or a stale callback can
	// resurrect counters on a reset RuntimeState.
	t.cancelCheckTimers()

	t.closeOpen(now)

	metrics := segment.Finalize(
		t.state.SessionID,
		t.state.StartTime,
		now,
		t.state.Segments,
		t.state.TabSwitches,
		t.state.LockBreaks,
	)

	t.recordDayTotals(metrics.Segments)

	if err := t.db.SaveSession(&metrics); err != nil {
		slog.Error("archiving finished session failed", "error", err)
	}

	if err := t.db.DeleteRuntime(); err != nil {
		slog.Error("clearing active session record failed", "error", err)
	}

	_ = os.Remove(config.StatusFilePath())

	t.state.reset()

	t.mu.Unlock()

	// Best-effort delivery; a failure leaves the session archived as
	// finished-but-unsynced for a later sweep or manual sync.
	if err := t.queue.SyncFinished(ctx, &metrics); err != nil {
		slog.Info("finished session not yet synced", "session", metrics.ID)
	}

	slog.Info(
		"session finished",
		"session", metrics.ID,
		"locked_in_seconds", metrics.LockedInSeconds,
	)

	return &metrics, nil
}

// recordDayTotals accumulates locked-in time into the daily streak bucket,
// attributed to the day each segment started.
func (t *Tracker) recordDayTotals(segments []segment.Segment) {
	perDay := make(map[string]float64)

	for i := range segments {
		if segments[i].LockedIn {
			perDay[timeutil.DayKey(segments[i].Start)] += segments[i].Duration().
				Seconds()
		}
	}

	for day, seconds := range perDay {
		if err := t.db.AddDayTotal(day, seconds); err != nil {
			slog.Error("updating day totals failed", "day", day, "error", err)
		}
	}
}

// ObserveTabChange records a switch to a (possibly) different domain.
func (t *Tracker) ObserveTabChange(domain string, ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.Active() {
		return
	}

	// interacting with the browser is user activity
	t.state.LastActivity = ts

	d := classify.Normalize(domain)
	if d == t.state.Domain {
		t.reevaluate(ts)
		return
	}

	t.state.TabSwitches++

	cctx, cancel := context.WithTimeout(context.Background(), classifyTimeout)
	verdict := t.classifier.Classify(cctx, d)
	cancel()

	t.state.Domain = d
	t.state.Productive = verdict == classify.Productive

	t.reevaluate(ts)
	t.persist()
}

// ObserveActivity resets the idle clock immediately instead of waiting for
// the next poll, so idle time is not over-counted by up to one interval.
func (t *Tracker) ObserveActivity(ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.Active() {
		return
	}

	t.state.LastActivity = ts

	t.reevaluate(ts)
}

// ObserveIdleTick recomputes idle time from the last activity timestamp and
// reattributes the open segment if the idle boundary was crossed.
func (t *Tracker) ObserveIdleTick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.Active() {
		return
	}

	t.reevaluate(t.now())

	// refresh the snapshot roughly once a minute to facilitate recovery on
	// sudden shutdowns (e.g. process killed, system crashes etc)
	t.ticks++
	if t.ticks%6 == 0 {
		t.persist()
	}
}

// reevaluate applies the transition predicate to the current instant. The
// open segment is closed and reopened whenever the lock state, the drift
// reason, or the domain changed, so every segment keeps a single consistent
// attribution.
func (t *Tracker) reevaluate(ts time.Time) {
	cond := t.condition(ts)

	locked := cond.LockedIn()
	reason := segment.DriftReason(cond)

	open := t.state.Open
	if open == nil {
		// self-heal: an active session must always have an open segment
		slog.Error("no open segment on an active session")
		t.openSegment(ts, cond)
		t.persist()

		return
	}

	if open.LockedIn == locked && open.Reason == reason &&
		open.Domain == cond.Domain {
		return
	}

	wasLocked := open.LockedIn

	t.closeOpen(ts)
	t.openSegment(ts, cond)

	if wasLocked && !locked {
		t.state.LockBreaks++
	}

	if !wasLocked && locked {
		t.ensureCheckScheduled()
	}

	t.persist()
}

// closeOpen stamps the open segment's end and accumulates the running
// counters. The finalized metrics recompute these from the segment log; the
// counters only feed the live snapshot.
func (t *Tracker) closeOpen(ts time.Time) {
	if t.state.Open == nil {
		return
	}

	seg := *t.state.Open

	seg.End = ts
	if seg.End.Before(seg.Start) {
		seg.End = seg.Start
	}

	d := seg.Duration().Seconds()

	if seg.LockedIn {
		t.state.LockedInSeconds += d
	} else {
		t.state.NonLockSeconds += d
	}

	if seg.Reason == segment.ReasonIdle {
		t.state.IdleSeconds += d
	}

	t.state.Segments = append(t.state.Segments, seg)
	t.state.Open = nil
}

// openSegment opens a segment for the given condition. A still-open previous
// segment is an invariant violation; it is force-closed rather than crashed
// on, because a crash here destroys in-progress user data.
func (t *Tracker) openSegment(ts time.Time, cond segment.Condition) {
	if t.state.Open != nil {
		slog.Error(
			"segment already open, force-closing",
			"state", spew.Sdump(t.state.Open),
		)

		t.closeOpen(ts)
	}

	seg := segment.New(ts, cond)
	t.state.Open = &seg
}

// persist snapshots RuntimeState to the durable store. Failures are logged
// and absorbed; the in-memory state stays authoritative until the next
// successful write.
func (t *Tracker) persist() {
	t.state.PersistedAt = t.now()

	data, err := json.Marshal(&t.state)
	if err != nil {
		slog.Error("encoding runtime state failed", "error", err)
		return
	}

	if err := t.db.SaveRuntime(data); err != nil {
		slog.Error("persisting runtime state failed", "error", err)
	}

	// mirror for the status command, which cannot open the locked database
	if err := os.WriteFile(config.StatusFilePath(), data, 0o600); err != nil {
		slog.Debug("writing status file failed", "error", err)
	}
}

// FlushClosed batches every segment with a stamped end and attempts
// delivery. The currently-open segment is always excluded.
func (t *Tracker) FlushClosed(ctx context.Context) {
	t.mu.Lock()

	if !t.state.Active() {
		t.mu.Unlock()
		return
	}

	sessionID := t.state.SessionID
	batch := make([]segment.Segment, len(t.state.Segments))
	copy(batch, t.state.Segments)

	t.mu.Unlock()

	// network delivery happens outside the state lock
	t.queue.Flush(ctx, sessionID, batch)
}

// RetryPending sweeps the durable pending list, independent of whether a
// session is active.
func (t *Tracker) RetryPending(ctx context.Context) {
	t.queue.Retry(ctx)
}

// Snapshot returns the read-only projection exposed to the UI layer.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	snap := Snapshot{
		State: t.currentState(),
	}

	totals, err := t.db.GetDayTotals()
	if err == nil {
		snap.Streak = analytics.Streak(totals, now)
	}

	if !t.state.Active() {
		return snap
	}

	snap.SessionID = t.state.SessionID
	snap.StartTime = t.state.StartTime
	snap.Elapsed = now.Sub(t.state.StartTime)
	snap.Domain = t.state.Domain
	snap.Productive = t.state.Productive
	snap.IdleFor = now.Sub(t.state.LastActivity)
	snap.TabSwitches = t.state.TabSwitches
	snap.LockBreaks = t.state.LockBreaks
	snap.CheckPending = t.state.PendingCheckID != ""

	snap.LockedInSeconds = t.state.LockedInSeconds
	if t.state.Open != nil && t.state.Open.LockedIn {
		snap.LockedInSeconds += now.Sub(t.state.Open.Start).Seconds()
	}

	if elapsed := snap.Elapsed.Seconds(); elapsed > 0 {
		snap.FocusRate = snap.LockedInSeconds / elapsed
	}

	return snap
}

// Resume restores an in-flight session found in the durable store. The gap
// between the last persisted snapshot and now is attributed as idle time.
func (t *Tracker) Resume() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Active() {
		return false, ErrSessionActive
	}

	data, err := t.db.GetRuntime()
	if err != nil {
		return false, err
	}

	if len(data) == 0 {
		return false, nil
	}

	var rs RuntimeState

	if err := json.Unmarshal(data, &rs); err != nil {
		return false, err
	}

	if !rs.Active() {
		return false, nil
	}

	t.state = rs

	// an outstanding check died with the process; do not fail it
	t.state.PendingCheckID = ""
	t.state.NextCheckAt = time.Time{}

	now := t.now()

	if t.state.Open != nil {
		gapStart := t.state.PersistedAt
		if gapStart.IsZero() || gapStart.Before(t.state.Open.Start) {
			gapStart = t.state.Open.Start
		}

		t.closeOpen(gapStart)

		t.openSegment(gapStart, segment.Condition{
			Domain:      t.state.Domain,
			Productive:  t.state.Productive,
			IdleFor:     now.Sub(t.state.LastActivity),
			CheckFailed: t.state.CheckFailed,
			Threshold:   t.cfg.Tracking.IdleThreshold,
		})
	}

	t.reevaluate(now)
	t.persist()

	slog.Info("session resumed", "session", t.state.SessionID)

	return true, nil
}

// LastUnsynced returns the most recent finished session that has not been
// uploaded, for deferred upload or discard.
func (t *Tracker) LastUnsynced() (*segment.Metrics, error) {
	return t.db.LastUnsynced()
}

// SyncNow flushes the pending list and the last finished-but-unsynced
// session on demand.
func (t *Tracker) SyncNow(ctx context.Context) error {
	t.queue.Retry(ctx)

	m, err := t.db.LastUnsynced()
	if err != nil {
		return err
	}

	if m == nil {
		return nil
	}

	return t.queue.SyncFinished(ctx, m)
}

// Run drives the periodic timers until the context is canceled: the idle
// poll, the upload flush, and the pending-list retry sweep.
func (t *Tracker) Run(ctx context.Context) {
	idle := time.NewTicker(t.cfg.Tracking.IdlePollInterval)
	flush := time.NewTicker(t.cfg.Sync.FlushInterval)
	retry := time.NewTicker(t.cfg.Sync.RetryInterval)

	defer func() {
		idle.Stop()
		flush.Stop()
		retry.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
			t.ObserveIdleTick()
		case <-flush.C:
			t.FlushClosed(ctx)
		case <-retry.C:
			t.RetryPending(ctx)
		}
	}
}
