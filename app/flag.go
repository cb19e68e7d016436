package app

import "github.com/urfave/cli/v2"

var (
	apiURLFlag = &cli.StringFlag{
		Name:    "api-url",
		Usage:   "Base URL of the session lifecycle service",
		EnvVars: []string{"ANCHOR_API_URL"},
	}

	credentialFlag = &cli.StringFlag{
		Name:    "credential",
		Usage:   "Bearer credential for the session lifecycle service",
		EnvVars: []string{"ANCHOR_CREDENTIAL"},
	}

	idleThresholdFlag = &cli.StringFlag{
		Name:  "idle-threshold",
		Usage: "Inactivity duration before a session drifts (e.g. '2m')",
	}

	disableNotificationFlag = &cli.BoolFlag{
		Name:    "disable-notification",
		Aliases: []string{"d"},
		Usage:   "Disable the system notification that announces an integrity check",
	}

	noChimeFlag = &cli.BoolFlag{
		Name:  "no-chime",
		Usage: "Disable the integrity check chime",
	}

	simulateFlag = &cli.BoolFlag{
		Name:  "simulate",
		Usage: "Generate synthetic browsing events instead of reading the extension bridge",
	}

	headlessFlag = &cli.BoolFlag{
		Name:  "headless",
		Usage: "Run without the live view and read bridge events from standard input",
	}

	noColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable coloured output",
	}

	verboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Log debug messages",
	}

	periodFlag = &cli.StringFlag{
		Name:  "period",
		Usage: "Reporting period: today, yesterday, 7days, 14days, 30days, 90days, all-time",
		Value: "7days",
	}

	startFlag = &cli.StringFlag{
		Name:  "start",
		Usage: "Start date for the reporting window (e.g. '2 weeks ago')",
	}

	endFlag = &cli.StringFlag{
		Name:  "end",
		Usage: "End date for the reporting window",
	}

	domainFlag = &cli.StringFlag{
		Name:  "domain",
		Usage: "Only include sessions that visited the comma-delimited domains",
	}

	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "Output in JSON format",
	}
)
