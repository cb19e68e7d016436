// Package report renders session summaries and focus analytics to the
// terminal
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/anchorhq/anchor/analytics"
	"github.com/anchorhq/anchor/internal/segment"
	"github.com/anchorhq/anchor/internal/timeutil"
	"github.com/anchorhq/anchor/internal/ui"
)

const noSessionsMsg = "No sessions found for the specified time range"

// formatSeconds renders a duration in whole hours and minutes.
func formatSeconds(secs float64) string {
	d := time.Duration(secs) * time.Second

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}

	return fmt.Sprintf("%dh %dm", hours, minutes)
}

func scoreColor(score int) string {
	text := fmt.Sprintf("%d/100", score)

	switch {
	case score >= 80:
		return ui.Green(text)
	case score >= 50:
		return ui.Yellow(text)
	default:
		return ui.Red(text)
	}
}

func sessionSummary(m *segment.Metrics, rep analytics.Report) string {
	header := fmt.Sprintf("%s\n", ui.Blue("Summary"))

	var builder strings.Builder

	builder.WriteString(header)
	builder.WriteString(
		fmt.Sprintln("Anchor score:", scoreColor(rep.AnchorScore)),
	)
	builder.WriteString(
		fmt.Sprintln("Time tracked:", ui.Green(formatSeconds(m.TotalSeconds))),
	)
	builder.WriteString(
		fmt.Sprintln(
			"Locked in:",
			ui.Green(formatSeconds(m.LockedInSeconds)),
			fmt.Sprintf("(%d%%)", timeutil.Round(m.FocusRate*100)),
		),
	)
	builder.WriteString(
		fmt.Sprintln("Tab switches:", ui.Cyan(m.TabSwitches)),
	)
	builder.WriteString(
		fmt.Sprintln("Lock breaks:", ui.Cyan(m.LockBreaks)),
	)

	return builder.String()
}

func deepWorkSection(rep analytics.Report) string {
	header := fmt.Sprintf("\n%s\n", ui.Blue("Deep work"))

	var builder strings.Builder

	builder.WriteString(header)
	builder.WriteString(
		fmt.Sprintln("Deep blocks:", ui.Green(rep.DeepWork.Blocks)),
	)
	builder.WriteString(
		fmt.Sprintln(
			"Longest block:",
			ui.Green(formatSeconds(rep.DeepWork.LongestBlock.Seconds())),
		),
	)
	builder.WriteString(
		fmt.Sprintf(
			"Deep work ratio: %s\n",
			ui.Green(fmt.Sprintf("%.0f%%", rep.DeepWork.Ratio*100)),
		),
	)

	if rep.DeepWork.ContextSwitching > 0 {
		builder.WriteString(
			fmt.Sprintf(
				"Context switching: %s\n",
				ui.Cyan(
					fmt.Sprintf(
						"%.1f switches/hr",
						rep.DeepWork.ContextSwitching,
					),
				),
			),
		)
	}

	return builder.String()
}

func distractionSection(rep analytics.Report) string {
	if rep.Distraction.Chains == 0 {
		return fmt.Sprintf(
			"\n%s\n%s\n",
			ui.Blue("Distractions"),
			ui.Green("None recorded"),
		)
	}

	header := fmt.Sprintf("\n%s\n", ui.Blue("Distractions"))

	var builder strings.Builder

	builder.WriteString(header)
	builder.WriteString(
		fmt.Sprintln("Distraction chains:", ui.Red(rep.Distraction.Chains)),
	)
	builder.WriteString(
		fmt.Sprintln(
			"Time lost:",
			ui.Red(formatSeconds(rep.Distraction.TotalTime.Seconds())),
		),
	)
	builder.WriteString(
		fmt.Sprintln(
			"Average chain:",
			ui.Red(formatSeconds(rep.Distraction.AverageChain.Seconds())),
		),
	)

	if rep.Distraction.TimeToFirst != nil {
		builder.WriteString(
			fmt.Sprintln(
				"First drift after:",
				ui.Cyan(formatSeconds(rep.Distraction.TimeToFirst.Seconds())),
			),
		)
	}

	return builder.String()
}

func leaksSection(leaks []analytics.Leak) string {
	if len(leaks) == 0 {
		return ""
	}

	header := fmt.Sprintf("\n%s\n", ui.Blue("Focus leaks"))

	var builder strings.Builder

	builder.WriteString(header)

	for _, leak := range leaks {
		builder.WriteString(
			fmt.Sprintf(
				"%s: %s\n",
				leak.Culprit,
				ui.Red(formatSeconds(leak.Lost.Seconds())),
			),
		)
	}

	return builder.String()
}

// Session renders the post-session report: summary, deep work, distraction
// chains, and focus leaks.
func Session(w io.Writer, m *segment.Metrics) {
	rep := analytics.Compute(m)

	title := fmt.Sprintf(
		"Session report: %s - %s",
		m.StartTime.Format("Jan 02, 2006 03:04 PM"),
		m.EndTime.Format("03:04 PM"),
	)

	header := pterm.DefaultHeader.WithBackgroundStyle(pterm.NewStyle(pterm.BgYellow)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Sprintfln("%s", title)

	output := fmt.Sprint(
		header,
		sessionSummary(m, rep),
		deepWorkSection(rep),
		distractionSection(rep),
		leaksSection(rep.Leaks),
	)

	fmt.Fprintln(w, strings.TrimSpace(output))
}
