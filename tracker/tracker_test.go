package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/anchorhq/anchor/classify"
	"github.com/anchorhq/anchor/internal/config"
	"github.com/anchorhq/anchor/internal/segment"
	"github.com/anchorhq/anchor/store"
	"github.com/anchorhq/anchor/uplink"
)

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func testConfig() *config.Config {
	return &config.Config{
		Tracking: config.TrackingConfig{
			IdleThreshold:    2 * time.Minute,
			IdlePollInterval: 10 * time.Second,
			CheckDelayMin:    15 * time.Minute,
			CheckDelayMax:    30 * time.Minute,
			CheckWindow:      25 * time.Second,
		},
		Sync: config.SyncConfig{
			FlushInterval: 5 * time.Minute,
			RetryInterval: 5 * time.Minute,
		},
		Domains: config.DomainConfig{
			Productive:   []string{"github.com", "pkg.go.dev"},
			Unproductive: []string{"youtube.com", "reddit.com"},
		},
	}
}

func newTestTracker(t *testing.T) (*Tracker, *fakeClock) {
	t.Helper()

	db, err := store.NewClient(filepath.Join(t.TempDir(), "anchor_test.db"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	cfg := testConfig()

	tr := New(cfg, db, classify.New(cfg), uplink.NewClient(cfg))

	clock := &fakeClock{
		current: time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC),
	}

	tr.now = clock.now

	return tr, clock
}

func startAnchored(t *testing.T, tr *Tracker, clock *fakeClock) {
	t.Helper()

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	tr.ObserveTabChange("github.com", clock.now())

	if got := tr.currentState(); got != Anchored {
		t.Fatalf("expected Anchored after productive tab change, got %q", got)
	}
}

func TestStartPreconditions(t *testing.T) {
	tr, _ := newTestTracker(t)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := tr.Start(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Errorf("expected ErrSessionActive, got %v", err)
	}

	// with no reachable service the id is minted locally
	snap := tr.Snapshot()
	if snap.SessionID == "" {
		t.Error("expected a locally minted session id")
	}
}

func TestFinishWithoutSession(t *testing.T) {
	tr, _ := newTestTracker(t)

	if _, err := tr.Finish(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestIdleDemotion(t *testing.T) {
	tr, clock := newTestTracker(t)

	startAnchored(t, tr, clock)

	// no activity for just over the threshold
	clock.advance(121 * time.Second)

	tr.ObserveIdleTick()

	if got := tr.currentState(); got != Drifted {
		t.Fatalf("expected Drifted after idle threshold, got %q", got)
	}

	closed := tr.state.Segments[len(tr.state.Segments)-1]
	if !closed.LockedIn || closed.Reason != segment.ReasonNone {
		t.Errorf(
			"expected the anchored segment to close without a reason, got %+v",
			closed,
		)
	}

	if tr.state.Open.Reason != segment.ReasonIdle {
		t.Errorf(
			"expected open segment reason %q, got %q",
			segment.ReasonIdle,
			tr.state.Open.Reason,
		)
	}

	// an activity signal resets the idle clock immediately
	clock.advance(30 * time.Second)
	tr.ObserveActivity(clock.now())

	if got := tr.currentState(); got != Anchored {
		t.Errorf("expected Anchored after activity signal, got %q", got)
	}
}

func TestFailedCheckDemotion(t *testing.T) {
	tr, clock := newTestTracker(t)

	startAnchored(t, tr, clock)

	var fired []Check

	tr.SetCheckNotifier(func(c Check) {
		fired = append(fired, c)
	})

	clock.advance(10 * time.Minute)

	tr.fireCheck()

	if len(fired) != 1 {
		t.Fatalf("expected 1 fired check, got %d", len(fired))
	}

	// silence: the response window elapses
	clock.advance(25 * time.Second)
	tr.ObserveCheckOutcome(fired[0].ID, false)

	if got := tr.currentState(); got != Drifted {
		t.Fatalf("expected Drifted after failed check, got %q", got)
	}

	if tr.state.Open.Reason != segment.ReasonFailedCheck {
		t.Errorf(
			"expected open segment reason %q, got %q",
			segment.ReasonFailedCheck,
			tr.state.Open.Reason,
		)
	}

	// no new check is scheduled while Drifted
	if tr.checkTimer != nil || !tr.state.NextCheckAt.IsZero() {
		t.Error("expected no scheduled check while Drifted")
	}

	// a passed check re-anchors and arms the next one
	clock.advance(time.Minute)
	tr.fireCheck() // no-op while Drifted

	if tr.state.PendingCheckID != "" {
		t.Error("a Drifted session must not present checks")
	}

	tr.ObserveActivity(clock.now())

	if got := tr.currentState(); got != Drifted {
		t.Fatalf("expected Drifted while check failure stands, got %q", got)
	}

	// the failure stands until the user explicitly reconfirms
	tr.ConfirmRefocus()

	if got := tr.currentState(); got != Anchored {
		t.Errorf("expected Anchored after refocus confirmation, got %q", got)
	}

	if tr.checkTimer == nil {
		t.Error("expected the next check to be armed after re-anchoring")
	}
}

func TestStaleCheckOutcomeIgnored(t *testing.T) {
	tr, clock := newTestTracker(t)

	startAnchored(t, tr, clock)

	tr.ObserveCheckOutcome("check-bogus", false)

	if got := tr.currentState(); got != Anchored {
		t.Errorf("stale check outcome must not demote, got %q", got)
	}
}

func TestTabSwitchCounting(t *testing.T) {
	tr, clock := newTestTracker(t)

	startAnchored(t, tr, clock)

	clock.advance(time.Minute)
	tr.ObserveTabChange("github.com", clock.now()) // same domain

	clock.advance(time.Minute)
	tr.ObserveTabChange("youtube.com", clock.now())

	clock.advance(time.Minute)
	tr.ObserveTabChange("github.com", clock.now())

	// the initial tab change from the empty domain also counts
	if tr.state.TabSwitches != 3 {
		t.Errorf("expected 3 tab switches, got %d", tr.state.TabSwitches)
	}

	if tr.state.LockBreaks != 1 {
		t.Errorf("expected 1 lock break, got %d", tr.state.LockBreaks)
	}
}

func TestFinishReconcilesCounters(t *testing.T) {
	tr, clock := newTestTracker(t)

	startAnchored(t, tr, clock)

	clock.advance(20 * time.Minute)
	tr.ObserveTabChange("youtube.com", clock.now())

	clock.advance(5 * time.Minute)
	tr.ObserveTabChange("github.com", clock.now())

	clock.advance(10 * time.Minute)

	m, err := tr.Finish(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// segment contiguity: each end meets the next start, and the last end
	// equals the session end
	segments := m.Segments

	for i := 0; i < len(segments)-1; i++ {
		if !segments[i].End.Equal(segments[i+1].Start) {
			t.Errorf(
				"segment %d end %v does not meet next start %v",
				i,
				segments[i].End,
				segments[i+1].Start,
			)
		}
	}

	if last := segments[len(segments)-1]; !last.End.Equal(m.EndTime) {
		t.Errorf(
			"final segment end %v != session end %v",
			last.End,
			m.EndTime,
		)
	}

	if segments[0].Start != m.StartTime {
		t.Errorf(
			"first segment start %v != session start %v",
			segments[0].Start,
			m.StartTime,
		)
	}

	// counter reconciliation against an independent pass over the log
	var locked float64

	for _, seg := range m.Segments {
		if seg.LockedIn {
			locked += seg.Duration().Seconds()
		}
	}

	if m.LockedInSeconds != locked {
		t.Errorf(
			"finalized locked-in %f != segment sum %f",
			m.LockedInSeconds,
			locked,
		)
	}

	if m.TotalSeconds != (35 * time.Minute).Seconds() {
		t.Errorf("expected 2100 total seconds, got %f", m.TotalSeconds)
	}

	// the machine is re-entrant: a new session can start immediately
	if got := tr.currentState(); got != NoSession {
		t.Fatalf("expected NoSession after finish, got %q", got)
	}

	if err := tr.Start(context.Background()); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestFinishCancelsCheckTimers(t *testing.T) {
	tr, clock := newTestTracker(t)

	startAnchored(t, tr, clock)

	if tr.checkTimer == nil {
		t.Fatal("expected a scheduled check after start")
	}

	clock.advance(time.Minute)

	if _, err := tr.Finish(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if tr.checkTimer != nil || tr.checkTimeout != nil {
		t.Error("expected check timers to be canceled by finish")
	}

	// a stale outcome after finish must not touch the reset state
	tr.ObserveCheckOutcome("check-stale", false)

	if tr.state.Active() {
		t.Error("stale check outcome resurrected a finished session")
	}
}

func TestResumeAttributesGapAsIdle(t *testing.T) {
	tr, clock := newTestTracker(t)

	startAnchored(t, tr, clock)

	clock.advance(10 * time.Minute)
	tr.ObserveIdleTick()

	// the process dies here; a fresh tracker shares the same store
	db := tr.db

	cfg := testConfig()

	restored := New(cfg, db, classify.New(cfg), uplink.NewClient(cfg))
	restored.now = clock.now

	clock.advance(30 * time.Minute)

	resumed, err := restored.Resume()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !resumed {
		t.Fatal("expected an in-flight session to resume")
	}

	if got := restored.currentState(); got != Drifted {
		t.Errorf("expected Drifted after a long gap, got %q", got)
	}

	if restored.state.Open.Reason != segment.ReasonIdle {
		t.Errorf(
			"expected the gap to be attributed as idle, got %q",
			restored.state.Open.Reason,
		)
	}

	// activity re-anchors the resumed session
	restored.ObserveActivity(clock.now())

	if got := restored.currentState(); got != Anchored {
		t.Errorf("expected Anchored after activity, got %q", got)
	}
}

func TestResumeWithNothingPersisted(t *testing.T) {
	tr, _ := newTestTracker(t)

	resumed, err := tr.Resume()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if resumed {
		t.Error("expected nothing to resume")
	}
}

func TestDispatch(t *testing.T) {
	tr, clock := newTestTracker(t)

	ctx := context.Background()

	if _, err := tr.Dispatch(ctx, StartCmd{}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	tr.ObserveTabChange("github.com", clock.now())

	clock.advance(5 * time.Minute)

	res, err := tr.Dispatch(ctx, SnapshotCmd{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	snap, ok := res.(Snapshot)
	if !ok {
		t.Fatalf("expected a Snapshot, got %T", res)
	}

	if snap.State != Anchored || snap.Elapsed != 5*time.Minute {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	if _, err := tr.Dispatch(ctx, FinishCmd{}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// the finished session is retrievable while unsynced
	res, err = tr.Dispatch(ctx, LastUnsyncedCmd{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if m, ok := res.(*segment.Metrics); !ok || m == nil {
		t.Fatalf("expected unsynced metrics, got %T", res)
	}
}

type rogueCmd struct{}

func (rogueCmd) isCommand() {}

func TestDispatchUnknownCommand(t *testing.T) {
	tr, _ := newTestTracker(t)

	_, err := tr.Dispatch(context.Background(), rogueCmd{})

	var unknown *UnknownCommandError
	if !errors.As(err, &unknown) {
		t.Errorf("expected UnknownCommandError, got %v", err)
	}
}

func TestHandleEventUnknownKind(t *testing.T) {
	tr, _ := newTestTracker(t)

	err := tr.HandleEvent(Event{Kind: "telemetry"})

	var unknown *UnknownEventError
	if !errors.As(err, &unknown) {
		t.Errorf("expected UnknownEventError, got %v", err)
	}
}

func TestSnapshotLiveFocusRate(t *testing.T) {
	tr, clock := newTestTracker(t)

	startAnchored(t, tr, clock)

	clock.advance(10 * time.Minute)

	snap := tr.Snapshot()

	if snap.LockedInSeconds != (10 * time.Minute).Seconds() {
		t.Errorf(
			"expected 600 live locked-in seconds, got %f",
			snap.LockedInSeconds,
		)
	}

	if snap.FocusRate != 1 {
		t.Errorf("expected focus rate 1, got %f", snap.FocusRate)
	}
}
