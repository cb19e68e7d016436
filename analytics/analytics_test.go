package analytics

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/anchorhq/anchor/internal/segment"
)

var sessionStart = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

// span describes one contiguous segment for building synthetic sessions.
type span struct {
	minutes  int
	lockedIn bool
	domain   string
	reason   segment.Reason
}

func buildSession(t *testing.T, spans []span, tabSwitches int) *segment.Metrics {
	t.Helper()

	var (
		segments []segment.Segment
		cursor   = sessionStart
	)

	for _, sp := range spans {
		end := cursor.Add(time.Duration(sp.minutes) * time.Minute)

		segments = append(segments, segment.Segment{
			Start:      cursor,
			End:        end,
			Domain:     sp.domain,
			Productive: sp.lockedIn,
			LockedIn:   sp.lockedIn,
			Reason:     sp.reason,
		})

		cursor = end
	}

	m := segment.Finalize(
		"sess-test",
		sessionStart,
		cursor,
		segments,
		tabSwitches,
		0,
	)

	return &m
}

func TestAnchorScoreRange(t *testing.T) {
	cases := []struct {
		name          string
		focusRate     float64
		totalSeconds  float64
		deepWorkRatio float64
		expected      int
	}{
		{"all zero", 0, 0, 0, 0},
		{"perfect two hours", 1, 7200, 1, 100},
		{"length saturates", 1, 100000, 1, 100},
		{"half everything", 0.5, 3600, 0.5, 50},
		{"focus only", 1, 0, 0, 40},
		{"short perfect session", 1, 1800, 1, 78},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AnchorScore(tc.focusRate, tc.totalSeconds, tc.deepWorkRatio)
			if got != tc.expected {
				t.Errorf("expected score %d, got %d", tc.expected, got)
			}

			if got < 0 || got > 100 {
				t.Errorf("score %d outside [0,100]", got)
			}
		})
	}
}

func TestDeepWork(t *testing.T) {
	m := buildSession(t, []span{
		{minutes: 20, lockedIn: true, domain: "github.com"},
		{minutes: 5, domain: "twitter.com", reason: segment.ReasonUnproductiveDomain},
		{minutes: 10, lockedIn: true, domain: "github.com"},
		{minutes: 5, reason: segment.ReasonIdle},
		{minutes: 30, lockedIn: true, domain: "pkg.go.dev"},
	}, 6)

	dw := ComputeDeepWork(m)

	// 20m and 30m runs qualify; the 10m run does not
	if dw.Blocks != 2 {
		t.Errorf("expected 2 deep blocks, got %d", dw.Blocks)
	}

	expectedRatio := (50.0 * 60) / (60.0 * 60)
	if dw.Ratio != expectedRatio {
		t.Errorf("expected ratio %f, got %f", expectedRatio, dw.Ratio)
	}

	if dw.LongestBlock != 30*time.Minute {
		t.Errorf("expected longest block 30m, got %v", dw.LongestBlock)
	}

	if dw.ContextSwitching != 6 {
		t.Errorf("expected switching index 6, got %f", dw.ContextSwitching)
	}
}

func TestDeepWorkRatioBounds(t *testing.T) {
	cases := []struct {
		name  string
		spans []span
	}{
		{
			name:  "no locked-in time",
			spans: []span{{minutes: 30, reason: segment.ReasonUnproductiveDomain}},
		},
		{
			name:  "empty session",
			spans: nil,
		},
		{
			name:  "entirely one deep block",
			spans: []span{{minutes: 120, lockedIn: true}},
		},
		{
			name: "fragmented",
			spans: []span{
				{minutes: 2, lockedIn: true},
				{minutes: 1, reason: segment.ReasonOther},
				{minutes: 2, lockedIn: true},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dw := ComputeDeepWork(buildSession(t, tc.spans, 0))

			if dw.Ratio < 0 || dw.Ratio > 1 {
				t.Errorf("ratio %f outside [0,1]", dw.Ratio)
			}
		})
	}
}

func TestContextSwitchingNoiseFloor(t *testing.T) {
	// below six minutes of anchored time the index is pinned to zero
	m := buildSession(t, []span{
		{minutes: 5, lockedIn: true, domain: "github.com"},
	}, 12)

	dw := ComputeDeepWork(m)

	if dw.ContextSwitching != 0 {
		t.Errorf(
			"expected zero switching index below noise floor, got %f",
			dw.ContextSwitching,
		)
	}

	// the longest block still reports even under the deep block threshold
	if dw.LongestBlock != 5*time.Minute {
		t.Errorf("expected longest block 5m, got %v", dw.LongestBlock)
	}
}

func TestDistraction(t *testing.T) {
	m := buildSession(t, []span{
		{minutes: 10, lockedIn: true, domain: "github.com"},
		{minutes: 4, domain: "twitter.com", reason: segment.ReasonUnproductiveDomain},
		{minutes: 20, lockedIn: true, domain: "github.com"},
		{minutes: 2, reason: segment.ReasonIdle},
		{minutes: 10, lockedIn: true, domain: "github.com"},
	}, 0)

	d := ComputeDistraction(m, distractionChains(m.Segments))

	if d.Chains != 2 {
		t.Fatalf("expected 2 chains, got %d", d.Chains)
	}

	if d.TimeToFirst == nil || *d.TimeToFirst != 10*time.Minute {
		t.Errorf("expected first distraction at 10m, got %v", d.TimeToFirst)
	}

	if d.TotalTime != 6*time.Minute {
		t.Errorf("expected 6m total distraction, got %v", d.TotalTime)
	}

	if d.AverageChain != 3*time.Minute {
		t.Errorf("expected 3m average chain, got %v", d.AverageChain)
	}
}

func TestDistractionNeverDrifted(t *testing.T) {
	m := buildSession(t, []span{
		{minutes: 45, lockedIn: true, domain: "github.com"},
	}, 0)

	d := ComputeDistraction(m, distractionChains(m.Segments))

	if d.TimeToFirst != nil {
		t.Errorf("expected nil time to first distraction, got %v", *d.TimeToFirst)
	}

	if d.Chains != 0 || d.TotalTime != 0 {
		t.Errorf("expected empty distraction metrics, got %+v", d)
	}
}

func TestFocusLeaks(t *testing.T) {
	m := buildSession(t, []span{
		{minutes: 10, lockedIn: true, domain: "github.com"},
		// chain 1: failed check upgraded by a later concrete domain
		{minutes: 2, reason: segment.ReasonFailedCheck},
		{minutes: 8, domain: "twitter.com", reason: segment.ReasonUnproductiveDomain},
		{minutes: 10, lockedIn: true, domain: "github.com"},
		// chain 2: pure idle
		{minutes: 5, reason: segment.ReasonIdle},
		{minutes: 10, lockedIn: true, domain: "github.com"},
		// chain 3: no attribution possible
		{minutes: 1, reason: segment.ReasonOther},
		{minutes: 10, lockedIn: true, domain: "github.com"},
		// chain 4: twitter again, accumulates onto chain 1
		{minutes: 3, domain: "twitter.com", reason: segment.ReasonUnproductiveDomain},
	}, 0)

	leaks := FocusLeaks(distractionChains(m.Segments))

	expected := []Leak{
		{Culprit: "twitter.com", Lost: 13 * time.Minute},
		{Culprit: IdleCulprit, Lost: 5 * time.Minute},
		{Culprit: UnknownCulprit, Lost: 1 * time.Minute},
	}

	if diff := cmp.Diff(expected, leaks); diff != "" {
		t.Errorf("leaks mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeFullReport(t *testing.T) {
	m := buildSession(t, []span{
		{minutes: 30, lockedIn: true, domain: "github.com"},
		{minutes: 10, domain: "youtube.com", reason: segment.ReasonUnproductiveDomain},
		{minutes: 20, lockedIn: true, domain: "github.com"},
	}, 4)

	r := Compute(m)

	if r.AnchorScore < 0 || r.AnchorScore > 100 {
		t.Errorf("anchor score %d outside [0,100]", r.AnchorScore)
	}

	if r.DeepWork.Blocks != 2 {
		t.Errorf("expected 2 deep blocks, got %d", r.DeepWork.Blocks)
	}

	if len(r.Leaks) != 1 || r.Leaks[0].Culprit != "youtube.com" {
		t.Errorf("unexpected leaks: %+v", r.Leaks)
	}
}
