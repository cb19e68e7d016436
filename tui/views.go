package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/anchorhq/anchor/tracker"
)

var (
	baseStyle = lipgloss.NewStyle().Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	anchoredStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	driftedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("203"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// formatClock renders a duration as HH:MM:SS.
func formatClock(d time.Duration) string {
	d = d.Round(time.Second)

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func (m *Model) stateView() string {
	switch m.snap.State {
	case tracker.Anchored:
		return anchoredStyle.Render("⚓ Anchored")
	case tracker.Drifted:
		return driftedStyle.Render("~ Drifted")
	default:
		return hintStyle.Render("No session")
	}
}

func (m *Model) statsView() string {
	stats := fmt.Sprintf(
		"switches %d · breaks %d",
		m.snap.TabSwitches,
		m.snap.LockBreaks,
	)

	if m.snap.Streak > 0 {
		stats += fmt.Sprintf(" · streak %dd", m.snap.Streak)
	}

	return hintStyle.Render(stats)
}

func (m *Model) checkView() string {
	if m.checkForm == nil {
		return ""
	}

	remaining := time.Until(m.check.Deadline)
	if remaining < 0 {
		remaining = 0
	}

	return "\n" + m.checkForm.View() +
		hintStyle.Render(
			fmt.Sprintf("respond within %ds", int(remaining.Seconds())),
		)
}

func (m *Model) View() string {
	if m.Finished != nil {
		return ""
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("anchor"))
	s.WriteString("  " + m.stateView())

	if m.snap.Domain != "" {
		s.WriteString("  " + hintStyle.Render(m.snap.Domain))
	}

	s.WriteString("\n\n")
	s.WriteString(formatClock(m.snap.Elapsed))
	s.WriteString(
		hintStyle.Render(
			fmt.Sprintf(
				"  locked in %s",
				formatClock(
					time.Duration(m.snap.LockedInSeconds)*time.Second,
				),
			),
		),
	)
	s.WriteString("\n\n")
	s.WriteString(m.progress.ViewAs(m.snap.FocusRate))
	s.WriteString("\n\n")
	s.WriteString(m.statsView())
	s.WriteString(m.checkView())

	if m.err != nil {
		s.WriteString("\n\n" + errStyle.Render(m.err.Error()))
	}

	s.WriteString("\n\n" + m.help.ShortHelpView([]key.Binding{
		defaultKeymap.finish,
		defaultKeymap.refocus,
		defaultKeymap.sync,
		defaultKeymap.quit,
	}))

	return baseStyle.Render(s.String())
}
