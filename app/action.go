package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kballard/go-shellquote"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	bolt "go.etcd.io/bbolt"

	"github.com/anchorhq/anchor/alert"
	"github.com/anchorhq/anchor/analytics"
	"github.com/anchorhq/anchor/classify"
	"github.com/anchorhq/anchor/internal/config"
	"github.com/anchorhq/anchor/internal/log"
	"github.com/anchorhq/anchor/internal/ui"
	"github.com/anchorhq/anchor/report"
	"github.com/anchorhq/anchor/store"
	"github.com/anchorhq/anchor/tracker"
	"github.com/anchorhq/anchor/tui"
	"github.com/anchorhq/anchor/uplink"
)

const (
	envNoColor       = "NO_COLOR"
	envAnchorNoColor = "ANCHOR_NO_COLOR"

	simulateInterval = 15 * time.Second
)

var errInvalidVerdict = errors.New(
	"verdict must be 'productive' or 'unproductive'",
)

// firstNonEmptyString returns its first non-empty argument, or "" if all
// arguments are empty.
func firstNonEmptyString(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}

	return ""
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.New(
		config.WithViperConfig(config.ConfigFilePath()),
		config.WithCLIConfig(ctx),
	)
	if err != nil {
		return nil, err
	}

	ui.DarkTheme = cfg.Settings.DarkTheme

	return cfg, nil
}

func newTracker(cfg *config.Config) (*tracker.Tracker, store.DB, error) {
	db, err := store.NewClient(config.DBFilePath())
	if err != nil {
		return nil, nil, err
	}

	tr := tracker.New(cfg, db, classify.New(cfg), uplink.NewClient(cfg))

	return tr, db, nil
}

// runFinishCmd executes the configured finish_cmd hook.
func runFinishCmd(cfg *config.Config) error {
	if cfg.Settings.FinishCmd == "" {
		return nil
	}

	cmdSlice, err := shellquote.Split(cfg.Settings.FinishCmd)
	if err != nil {
		return fmt.Errorf("unable to parse finish_cmd option: %w", err)
	}

	if len(cmdSlice) == 0 {
		return nil
	}

	cmd := exec.Command(cmdSlice[0], cmdSlice[1:]...)

	return cmd.Run()
}

// streamEvents feeds bridge events from the events pipe into the tracker.
// A missing pipe just means no extension is attached.
func streamEvents(ctx context.Context, tr *tracker.Tracker) {
	f, err := os.Open(config.EventsFilePath())
	if err != nil {
		slog.Info("no extension bridge attached", "error", err)
		return
	}

	defer f.Close()

	if err := tr.ReadEvents(ctx, f); err != nil {
		slog.Error("event bridge terminated", "error", err)
	}
}

func runHeadless(
	ctx context.Context,
	tr *tracker.Tracker,
	cfg *config.Config,
) error {
	tr.SetCheckNotifier(func(c tracker.Check) {
		go alert.Check(cfg, c.Deadline)
	})

	pterm.Info.Println("tracking in headless mode; press Ctrl-C to detach")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	pterm.Info.Println("session state saved; resume with another invocation")

	return nil
}

// trackAction starts (or resumes) a session and runs the agent until it is
// finished or detached.
func trackAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	tr, db, err := newTracker(cfg)
	if err != nil {
		return err
	}

	defer db.Close()

	runCtx, cancel := context.WithCancel(ctx.Context)
	defer cancel()

	resumed, err := tr.Resume()
	if err != nil {
		return err
	}

	if !resumed {
		if err := tr.Start(runCtx); err != nil {
			return err
		}
	}

	go tr.Run(runCtx)

	switch {
	case ctx.Bool("simulate"):
		go tr.Simulate(runCtx, simulateInterval)
	case ctx.Bool("headless"):
		go func() {
			_ = tr.ReadEvents(runCtx, config.Stdin)
		}()
	default:
		go streamEvents(runCtx, tr)
	}

	if ctx.Bool("headless") {
		return runHeadless(runCtx, tr, cfg)
	}

	m := tui.New(tr, cfg)

	p := tea.NewProgram(m)

	final, err := p.Run()
	if err != nil {
		return err
	}

	cancel()

	view, ok := final.(*tui.Model)
	if !ok || view.Finished == nil {
		return nil
	}

	report.Session(config.Stdout, view.Finished)

	alert.SessionFinished(
		cfg,
		analytics.Compute(view.Finished).AnchorScore,
	)

	if err := runFinishCmd(cfg); err != nil {
		pterm.Error.Printfln("finish_cmd failed: %v", err)
	}

	return nil
}

// finishAction ends a session left behind by a detached agent.
func finishAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	tr, db, err := newTracker(cfg)
	if err != nil {
		return err
	}

	defer db.Close()

	resumed, err := tr.Resume()
	if err != nil {
		return err
	}

	if !resumed {
		pterm.Info.Println("No active session")
		return nil
	}

	m, err := tr.Finish(ctx.Context)
	if err != nil {
		return err
	}

	report.Session(config.Stdout, m)

	return runFinishCmd(cfg)
}

// statusAction reports the state of a running agent without disturbing its
// hold on the database.
func statusAction(_ *cli.Context) error {
	db, err := bolt.Open(config.DBFilePath(), 0o600, &bolt.Options{
		Timeout: 100 * time.Millisecond,
	})
	// the database opening means no agent is running
	if err == nil {
		_ = db.Close()

		pterm.Info.Println("No tracking agent is running")

		return nil
	}

	if !errors.Is(err, bolt.ErrDatabaseOpen) && !errors.Is(err, bolt.ErrTimeout) {
		return err
	}

	fileBytes, err := os.ReadFile(config.StatusFilePath())
	if err != nil {
		// missing file should not return an error
		return nil
	}

	var rs tracker.RuntimeState

	if err := json.Unmarshal(fileBytes, &rs); err != nil {
		return err
	}

	var text string

	switch rs.State() {
	case tracker.Anchored:
		text = ui.Green("[Anchored]")
	case tracker.Drifted:
		text = ui.Red("[Drifted]")
	default:
		pterm.Info.Println("No active session")
		return nil
	}

	locked := rs.LockedInSeconds
	if rs.Open != nil && rs.Open.LockedIn {
		locked += time.Since(rs.Open.Start).Seconds()
	}

	elapsed := time.Since(rs.StartTime).Round(time.Second)

	pterm.Printfln(
		"%s %s: %s elapsed, %dm locked in",
		text,
		rs.Domain,
		elapsed,
		int(locked)/60,
	)

	return nil
}

// reportAction summarizes focus quality for the specified time period.
func reportAction(ctx *cli.Context) error {
	if _, err := loadConfig(ctx); err != nil {
		return err
	}

	filter, err := config.Filter(ctx)
	if err != nil {
		return err
	}

	db, err := store.NewClient(config.DBFilePath())
	if err != nil {
		return err
	}

	defer db.Close()

	report.Init(db, filter)

	return report.Show()
}

// listAction prints a table of the sessions finished within a time period.
func listAction(ctx *cli.Context) error {
	if _, err := loadConfig(ctx); err != nil {
		return err
	}

	filter, err := config.Filter(ctx)
	if err != nil {
		return err
	}

	db, err := store.NewClient(config.DBFilePath())
	if err != nil {
		return err
	}

	defer db.Close()

	if ctx.Bool("json") {
		sessions, err := db.GetSessions(filter.StartTime, filter.EndTime)
		if err != nil {
			return err
		}

		b, err := json.Marshal(sessions)
		if err != nil {
			return err
		}

		pterm.Println(string(b))

		return nil
	}

	report.Init(db, filter)

	return report.List()
}

// syncAction delivers buffered segments and unsynced sessions on demand.
func syncAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	tr, db, err := newTracker(cfg)
	if err != nil {
		return err
	}

	defer db.Close()

	if err := tr.SyncNow(ctx.Context); err != nil {
		return err
	}

	pterm.Success.Println("all local data delivered")

	return nil
}

// classifyAction looks up a domain's verdict, or persists an override when a
// verdict argument is given.
func classifyAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	args := ctx.Args()
	if args.Len() == 0 {
		return cli.ShowSubcommandHelp(ctx)
	}

	domain := classify.Normalize(args.Get(0))

	if args.Len() > 1 {
		verdict := args.Get(1)
		if verdict != string(classify.Productive) &&
			verdict != string(classify.Unproductive) {
			return errInvalidVerdict
		}

		err := config.SaveOverride(config.ConfigFilePath(), domain, verdict)
		if err != nil {
			return err
		}

		pterm.Success.Printfln(
			"%s will now always be classified as %s",
			domain,
			verdict,
		)

		return nil
	}

	verdict := classify.New(cfg).Classify(ctx.Context, domain)

	pterm.Printfln("%s: %s", domain, string(verdict))

	return nil
}

// editConfigAction opens the anchor config file in the user's default text
// editor.
func editConfigAction(ctx *cli.Context) error {
	// make sure the default config exists before opening it
	if _, err := loadConfig(ctx); err != nil {
		return err
	}

	defaultEditor := "nano"

	if runtime.GOOS == "windows" {
		defaultEditor = "C:\\Windows\\system32\\notepad.exe"
	}

	editor := firstNonEmptyString(
		os.Getenv("VISUAL"),
		os.Getenv("EDITOR"),
		defaultEditor,
	)

	cmd := exec.Command(editor, config.ConfigFilePath())

	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout

	return cmd.Run()
}

func beforeAction(ctx *cli.Context) error {
	log.Init(config.LogFilePath(), ctx.Bool("verbose"))

	pterm.Error.MessageStyle = pterm.NewStyle(pterm.FgRed)
	pterm.Error.Prefix = pterm.Prefix{
		Text:  "ERROR",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}

	// Disable colour output if NO_COLOR is set
	if _, exists := os.LookupEnv(envNoColor); exists {
		disableStyling()
	}

	// Disable colour output if ANCHOR_NO_COLOR is set
	if _, exists := os.LookupEnv(envAnchorNoColor); exists {
		disableStyling()
	}

	if ctx.Bool("no-color") {
		disableStyling()
	}

	return nil
}
