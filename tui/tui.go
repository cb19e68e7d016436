// Package tui renders the live tracking view and presents integrity checks
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/anchorhq/anchor/alert"
	"github.com/anchorhq/anchor/internal/config"
	"github.com/anchorhq/anchor/internal/segment"
	"github.com/anchorhq/anchor/tracker"
)

const (
	padding  = 2
	maxWidth = 60
)

type keymap struct {
	finish  key.Binding
	refocus key.Binding
	sync    key.Binding
	quit    key.Binding
}

var defaultKeymap = keymap{
	finish: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "finish session"),
	),
	refocus: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refocus"),
	),
	sync: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "sync"),
	),
	quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "detach"),
	),
}

type (
	tickMsg time.Time

	checkMsg tracker.Check

	finishedMsg struct {
		metrics *segment.Metrics
		err     error
	}

	syncedMsg struct {
		err error
	}
)

// Model is the bubbletea model for the live tracking view.
type Model struct {
	tracker *tracker.Tracker
	cfg     *config.Config

	progress progress.Model
	help     help.Model

	snap tracker.Snapshot

	check     *tracker.Check
	checkForm *huh.Form
	focused   bool

	checks chan tracker.Check

	// Finished holds the session metrics once the user ends the session
	// from the UI. The hosting command reads it after the program exits.
	Finished *segment.Metrics

	err error
}

// New creates the live view and hooks the tracker's check notifier into it.
func New(tr *tracker.Tracker, cfg *config.Config) *Model {
	m := &Model{
		tracker:  tr,
		cfg:      cfg,
		progress: progress.New(progress.WithDefaultGradient()),
		help:     help.New(),
		checks:   make(chan tracker.Check, 1),
		snap:     tr.Snapshot(),
	}

	tr.SetCheckNotifier(func(c tracker.Check) {
		select {
		case m.checks <- c:
		default:
		}

		go alert.Check(cfg, c.Deadline)
	})

	return m
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) waitForCheck() tea.Cmd {
	return func() tea.Msg {
		return checkMsg(<-m.checks)
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.waitForCheck())
}

// presentCheck builds the confirmation form for a fired integrity check.
func (m *Model) presentCheck(c tracker.Check) tea.Cmd {
	m.check = &c
	m.focused = true

	m.checkForm = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Still locked in?").
				Affirmative("Yes").
				Negative("No").
				Value(&m.focused),
		),
	)

	return m.checkForm.Init()
}

// dismissCheck drops the form; the tracker's own response-window timeout
// records the failure.
func (m *Model) dismissCheck() {
	m.check = nil
	m.checkForm = nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.checkForm != nil {
		form, cmd := m.checkForm.Update(msg)
		if f, ok := form.(*huh.Form); ok {
			m.checkForm = f
		}

		if m.checkForm.State == huh.StateCompleted {
			m.tracker.ObserveCheckOutcome(m.check.ID, m.focused)
			m.dismissCheck()
		}

		return m, cmd
	}

	switch {
	case key.Matches(msg, defaultKeymap.finish):
		tr := m.tracker

		return m, func() tea.Msg {
			metrics, err := tr.Finish(context.Background())
			return finishedMsg{metrics: metrics, err: err}
		}

	case key.Matches(msg, defaultKeymap.refocus):
		m.tracker.ConfirmRefocus()
		m.snap = m.tracker.Snapshot()

		return m, nil

	case key.Matches(msg, defaultKeymap.sync):
		tr := m.tracker

		return m, func() tea.Msg {
			return syncedMsg{err: tr.SyncNow(context.Background())}
		}

	case key.Matches(msg, defaultKeymap.quit):
		// detach without finishing; the persisted session resumes on the
		// next invocation
		return m, tea.Batch(tea.ClearScreen, tea.Quit)
	}

	return m, nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.snap = m.tracker.Snapshot()

		if m.check != nil && time.Time(msg).After(m.check.Deadline) {
			m.dismissCheck()
		}

		return m, tick()

	case checkMsg:
		cmd := m.presentCheck(tracker.Check(msg))

		return m, tea.Batch(cmd, m.waitForCheck())

	case finishedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.Finished = msg.metrics

		return m, tea.Batch(tea.ClearScreen, tea.Quit)

	case syncedMsg:
		m.err = msg.err

		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.progress.Width = msg.Width - padding*2 - 4
		if m.progress.Width > maxWidth {
			m.progress.Width = maxWidth
		}

		return m, nil

		// FrameMsg is sent when the progress bar wants to animate itself
	case progress.FrameMsg:
		var cmd tea.Cmd

		progressModel, cmd := m.progress.Update(msg)
		m.progress, _ = progressModel.(progress.Model)

		return m, cmd
	}

	return m, nil
}
