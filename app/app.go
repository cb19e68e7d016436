// Package app assembles the anchor command-line interface
package app

import (
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/anchorhq/anchor/internal/config"
)

// disableStyling disables all styling provided by pterm.
func disableStyling() {
	pterm.DisableColor()
	pterm.DisableStyling()
	pterm.Debug.Prefix.Text = ""
	pterm.Info.Prefix.Text = ""
	pterm.Success.Prefix.Text = ""
	pterm.Warning.Prefix.Text = ""
	pterm.Error.Prefix.Text = ""
	pterm.Fatal.Prefix.Text = ""
}

// Get retrieves the anchor app instance.
func Get() *cli.App {
	anchorApp := &cli.App{
		Name: "anchor",
		Usage: `
		Anchor is a focus-session tracker for the command-line. It follows your
		browsing through an extension bridge, tells deep work apart from
		drifting, and reports where your focus leaks away.`,
		UsageText:            "[COMMAND] [OPTIONS]",
		Version:              config.Version,
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Print the status of the active session",
				Action: statusAction,
			},
			{
				Name: "finish",
				Usage: `
				Finish the most recent session left behind by a detached agent and
				print its report`,
				Action: finishAction,
			},
			{
				Name: "report",
				Usage: `
				Summarize focus quality over a time range. Defaults to a reporting
				period of 7 days`,
				Flags: []cli.Flag{
					periodFlag,
					startFlag,
					endFlag,
					domainFlag,
				},
				Action: reportAction,
			},
			{
				Name:  "list",
				Usage: "List the sessions finished within a time range",
				Flags: []cli.Flag{
					periodFlag,
					startFlag,
					endFlag,
					domainFlag,
					jsonFlag,
				},
				Action: listAction,
			},
			{
				Name:   "sync",
				Usage:  "Deliver any buffered segments and unsynced sessions",
				Action: syncAction,
			},
			{
				Name:      "classify",
				Usage:     "Look up a domain's verdict, or override it",
				UsageText: "anchor classify DOMAIN [productive|unproductive]",
				Action:    classifyAction,
			},
			{
				Name:   "edit-config",
				Usage:  "Edit the configuration file",
				Action: editConfigAction,
			},
		},
		Flags: []cli.Flag{
			apiURLFlag,
			credentialFlag,
			idleThresholdFlag,
			disableNotificationFlag,
			noChimeFlag,
			simulateFlag,
			headlessFlag,
			noColorFlag,
			verboseFlag,
		},
		Action: trackAction,
		Before: beforeAction,
	}

	return anchorApp
}
