package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/anchorhq/anchor/analytics"
	"github.com/anchorhq/anchor/internal/config"
	"github.com/anchorhq/anchor/internal/segment"
	"github.com/anchorhq/anchor/internal/timeutil"
	"github.com/anchorhq/anchor/internal/ui"
	"github.com/anchorhq/anchor/store"
)

const barChartChar = "▇"

var (
	opts *config.FilterConfig
	db   store.DB
)

// Init sets the database handle and reporting window for Show and List.
func Init(dbClient store.DB, cfg *config.FilterConfig) {
	db = dbClient
	opts = cfg
}

// matchesDomains reports whether the session visited any of the given
// domains.
func matchesDomains(m *segment.Metrics, domains []string) bool {
	if len(domains) == 0 {
		return true
	}

	for _, seg := range m.Segments {
		for _, d := range domains {
			if seg.Domain == d {
				return true
			}
		}
	}

	return false
}

// filterSessions drops sessions with an invalid end date and applies the
// domain filter.
func filterSessions(sessions []segment.Metrics) []segment.Metrics {
	filtered := sessions[:0]

	for i := range sessions {
		m := sessions[i]

		if m.EndTime.IsZero() || m.EndTime.Before(m.StartTime) {
			continue
		}

		if !matchesDomains(&m, opts.Domains) {
			continue
		}

		filtered = append(filtered, m)
	}

	return filtered
}

// windowSummary totals the window's sessions and reports averages alongside
// the current daily streak.
func windowSummary(
	sessions []segment.Metrics,
	totals map[string]float64,
) string {
	var (
		tracked, locked float64
		scoreSum        int
	)

	for i := range sessions {
		m := sessions[i]

		tracked += m.TotalSeconds
		locked += m.LockedInSeconds
		scoreSum += analytics.Compute(&m).AnchorScore
	}

	var focusPct int
	if tracked > 0 {
		focusPct = timeutil.Round(locked / tracked * 100)
	}

	header := fmt.Sprintf("%s\n", ui.Blue("Summary"))

	var builder strings.Builder

	builder.WriteString(header)
	builder.WriteString(
		fmt.Sprintln("Sessions:", ui.Green(len(sessions))),
	)
	builder.WriteString(
		fmt.Sprintln("Time tracked:", ui.Green(formatSeconds(tracked))),
	)
	builder.WriteString(
		fmt.Sprintln(
			"Locked in:",
			ui.Green(formatSeconds(locked)),
			fmt.Sprintf("(%d%%)", focusPct),
		),
	)
	builder.WriteString(
		fmt.Sprintln(
			"Average anchor score:",
			scoreColor(scoreSum/len(sessions)),
		),
	)
	builder.WriteString(
		fmt.Sprintln(
			"Daily streak:",
			ui.Cyan(analytics.Streak(totals, time.Now())),
		),
	)

	return builder.String()
}

// dailyBarChart charts locked-in minutes per day within the reporting
// window.
func dailyBarChart(totals map[string]float64) string {
	days := make([]string, 0, len(totals))

	for day := range totals {
		t, err := time.Parse(time.DateOnly, day)
		if err != nil {
			continue
		}

		if !opts.StartTime.IsZero() &&
			t.Before(timeutil.RoundToStart(opts.StartTime)) {
			continue
		}

		if t.After(opts.EndTime) {
			continue
		}

		days = append(days, day)
	}

	if len(days) == 0 {
		return ""
	}

	sort.Strings(days)

	header := ui.Blue("\nDaily locked-in time (minutes)")

	var bars pterm.Bars

	for _, day := range days {
		t, _ := time.Parse(time.DateOnly, day)

		bars = append(bars, pterm.Bar{
			Value: timeutil.Round(totals[day] / 60),
			Label: fmt.Sprintf(
				"%s %02d, %d",
				t.Month().String(),
				t.Day(),
				t.Year(),
			),
		})
	}

	chart, err := pterm.DefaultBarChart.WithHorizontalBarCharacter(barChartChar).
		WithHorizontal().
		WithShowValue().
		WithBars(bars).
		Srender()
	if err != nil {
		pterm.Error.Println(err)
		return ""
	}

	return header + chart
}

func aggregateLeaks(sessions []segment.Metrics) []analytics.Leak {
	lists := make([][]analytics.Leak, 0, len(sessions))

	for i := range sessions {
		lists = append(lists, analytics.Compute(&sessions[i]).Leaks)
	}

	return analytics.MergeLeaks(lists...)
}

// Show displays the aggregate focus report for the set reporting window.
func Show() error {
	sessions, err := db.GetSessions(opts.StartTime, opts.EndTime)
	if err != nil {
		return err
	}

	sessions = filterSessions(sessions)

	if len(sessions) == 0 {
		pterm.Info.Println(noSessionsMsg)
		return nil
	}

	// For all-time, set start time to the date of the first session
	if opts.StartTime.IsZero() {
		opts.StartTime = timeutil.RoundToStart(sessions[0].StartTime)
	}

	totals, err := db.GetDayTotals()
	if err != nil {
		return err
	}

	reportingStart := opts.StartTime.Format("January 02, 2006")
	reportingEnd := opts.EndTime.Format("January 02, 2006")
	timePeriod := "Reporting period: " + reportingStart + " - " + reportingEnd

	header := pterm.DefaultHeader.WithBackgroundStyle(pterm.NewStyle(pterm.BgYellow)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Sprintfln("%s", timePeriod)

	output := fmt.Sprint(
		header,
		windowSummary(sessions, totals),
		leaksSection(aggregateLeaks(sessions)),
		dailyBarChart(totals),
	)

	fmt.Fprintln(config.Stdout, strings.TrimSpace(output))

	return nil
}
