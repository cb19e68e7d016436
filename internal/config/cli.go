package config

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

// CLIOptions represents command-line configuration options.
type CLIOptions struct {
	APIURL        string
	Credential    string
	IdleThreshold string
	DisableNotify bool
	NoChime       bool
}

// WithCLIConfig returns an Option that loads configuration from CLI flags.
func WithCLIConfig(ctx *cli.Context) Option {
	return func(c *Config) error {
		opts := CLIOptions{
			APIURL:        ctx.String("api-url"),
			Credential:    ctx.String("credential"),
			IdleThreshold: ctx.String("idle-threshold"),
			DisableNotify: ctx.Bool("disable-notification"),
			NoChime:       ctx.Bool("no-chime"),
		}

		return applyCLIOptions(c, opts)
	}
}

// applyCLIOptions applies CLI options to the config.
func applyCLIOptions(c *Config, opts CLIOptions) error {
	if opts.APIURL != "" {
		c.Sync.APIURL = opts.APIURL
	}

	if opts.Credential != "" {
		c.Sync.Credential = opts.Credential
	}

	if opts.IdleThreshold != "" {
		dur, err := time.ParseDuration(opts.IdleThreshold)
		if err != nil {
			return fmt.Errorf("invalid idle threshold: %w", err)
		}

		c.Tracking.IdleThreshold = dur
	}

	if opts.DisableNotify {
		c.Notifications.Enabled = false
	}

	if opts.NoChime {
		c.Notifications.Chime = false
	}

	return nil
}
