// Package analytics computes derived focus-quality metrics from a finished
// session's segment log. All transformations are pure and safe to recompute
// at any time.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/maruel/natural"

	"github.com/anchorhq/anchor/internal/segment"
)

const (
	// deepBlockMin is the minimum contiguous locked-in time for a run of
	// segments to count as a deep block.
	deepBlockMin = 15 * time.Minute

	// scoreLengthSaturation is the session length at which the length
	// contribution to the anchor score maxes out.
	scoreLengthSaturation = 2 * time.Hour

	// switchingNoiseFloor guards the context-switching index against
	// division blow-up on very short sessions.
	switchingNoiseFloor = 6 * time.Minute
)

// IdleCulprit and UnknownCulprit label focus leaks that cannot be pinned on
// a specific domain.
const (
	IdleCulprit    = "Idle"
	UnknownCulprit = "Unknown"
)

// DeepWork describes the contiguous-focus quality of a session.
type DeepWork struct {
	Ratio            float64       `json:"ratio"`
	Blocks           int           `json:"blocks"`
	LongestBlock     time.Duration `json:"longest_block"`
	ContextSwitching float64       `json:"context_switching_index"`
}

// Distraction summarizes the session's drifted runs.
type Distraction struct {
	TimeToFirst  *time.Duration `json:"time_to_first,omitempty"`
	AverageChain time.Duration  `json:"average_chain"`
	TotalTime    time.Duration  `json:"total_time"`
	Chains       int            `json:"chains"`
}

// Leak attributes distraction time to a culprit domain, idleness, or an
// unknown cause.
type Leak struct {
	Culprit string        `json:"culprit"`
	Lost    time.Duration `json:"lost"`
}

// Report is the full set of derived metrics for one session.
type Report struct {
	AnchorScore int         `json:"anchor_score"`
	DeepWork    DeepWork    `json:"deep_work"`
	Distraction Distraction `json:"distraction"`
	Leaks       []Leak      `json:"leaks"`
}

// Compute derives a full report from a finalized session.
func Compute(m *segment.Metrics) Report {
	deep := ComputeDeepWork(m)
	chains := distractionChains(m.Segments)

	return Report{
		AnchorScore: AnchorScore(m.FocusRate, m.TotalSeconds, deep.Ratio),
		DeepWork:    deep,
		Distraction: ComputeDistraction(m, chains),
		Leaks:       FocusLeaks(chains),
	}
}

// AnchorScore blends raw focus proportion, session length saturating at two
// hours, and contiguous-focus quality into a 0-100 composite.
func AnchorScore(focusRate, totalSeconds, deepWorkRatio float64) int {
	length := math.Min(totalSeconds/scoreLengthSaturation.Seconds(), 1)

	score := focusRate*40 + length*30 + deepWorkRatio*30

	return int(math.Round(score))
}

// run is a maximal sequence of adjacent segments sharing a lock state.
// Adjacency is by segment order, not by timestamp gap.
type run struct {
	segments []segment.Segment
	duration time.Duration
}

func runsOf(segments []segment.Segment, lockedIn bool) []run {
	var (
		runs    []run
		current *run
	)

	for i := range segments {
		seg := segments[i]

		if seg.LockedIn != lockedIn {
			current = nil
			continue
		}

		if current == nil {
			runs = append(runs, run{})
			current = &runs[len(runs)-1]
		}

		current.segments = append(current.segments, seg)
		current.duration += seg.Duration()
	}

	return runs
}

func distractionChains(segments []segment.Segment) []run {
	return runsOf(segments, false)
}

// ComputeDeepWork derives the deep-work metrics for a session.
func ComputeDeepWork(m *segment.Metrics) DeepWork {
	var dw DeepWork

	var deepTotal time.Duration

	for _, r := range runsOf(m.Segments, true) {
		if r.duration > dw.LongestBlock {
			dw.LongestBlock = r.duration
		}

		if r.duration >= deepBlockMin {
			dw.Blocks++
			deepTotal += r.duration
		}
	}

	if m.LockedInSeconds > 0 {
		dw.Ratio = math.Min(deepTotal.Seconds()/m.LockedInSeconds, 1)
	}

	if m.LockedInSeconds >= switchingNoiseFloor.Seconds() {
		lockedHours := m.LockedInSeconds / 3600
		dw.ContextSwitching = float64(m.TabSwitches) / lockedHours
	}

	return dw
}

// ComputeDistraction derives the distraction-chain metrics for a session.
func ComputeDistraction(m *segment.Metrics, chains []run) Distraction {
	d := Distraction{
		Chains: len(chains),
	}

	if len(chains) == 0 {
		return d
	}

	first := chains[0].segments[0].Start.Sub(m.StartTime)
	d.TimeToFirst = &first

	for _, c := range chains {
		d.TotalTime += c.duration
	}

	d.AverageChain = d.TotalTime / time.Duration(len(chains))

	return d
}

// FocusLeaks attributes each distraction chain's lost time to a culprit and
// aggregates the results, sorted descending by time lost.
func FocusLeaks(chains []run) []Leak {
	lost := make(map[string]time.Duration)

	for _, c := range chains {
		lost[chainCulprit(c)] += c.duration
	}

	return sortLeaks(lost)
}

// MergeLeaks combines leak lists from multiple sessions into a single
// aggregate, sorted descending by time lost.
func MergeLeaks(lists ...[]Leak) []Leak {
	lost := make(map[string]time.Duration)

	for _, leaks := range lists {
		for _, leak := range leaks {
			lost[leak.Culprit] += leak.Lost
		}
	}

	return sortLeaks(lost)
}

func sortLeaks(lost map[string]time.Duration) []Leak {
	leaks := make([]Leak, 0, len(lost))

	for culprit, d := range lost {
		leaks = append(leaks, Leak{Culprit: culprit, Lost: d})
	}

	sort.SliceStable(leaks, func(i, j int) bool {
		if leaks[i].Lost != leaks[j].Lost {
			return leaks[i].Lost > leaks[j].Lost
		}

		return natural.Less(leaks[i].Culprit, leaks[j].Culprit)
	})

	return leaks
}

// chainCulprit picks the culprit for one chain: the first segment blaming a
// concrete unproductive domain wins, then idleness, then Unknown. A later
// concrete domain upgrades an otherwise unknown attribution.
func chainCulprit(c run) string {
	culprit := UnknownCulprit

	for _, seg := range c.segments {
		if seg.Reason == segment.ReasonUnproductiveDomain && seg.Domain != "" {
			return seg.Domain
		}

		if seg.Reason == segment.ReasonIdle && culprit == UnknownCulprit {
			culprit = IdleCulprit
		}
	}

	return culprit
}
