package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// viperKeys defines the mapping between config keys and their Viper counterparts.
const (
	keyIdleThreshold    = "tracking.idle_threshold"
	keyIdlePollInterval = "tracking.idle_poll_interval"
	keyCheckDelayMin    = "tracking.check_delay_min"
	keyCheckDelayMax    = "tracking.check_delay_max"
	keyCheckWindow      = "tracking.check_window"
	keyAPIURL           = "sync.api_url"
	keyCredential       = "sync.credential"
	keyFlushInterval    = "sync.flush_interval"
	keyRetryInterval    = "sync.retry_interval"
	keyOverrides        = "domains.overrides"
	keyProductive       = "domains.productive"
	keyUnproductive     = "domains.unproductive"
	keyNotifyEnabled    = "notifications.enabled"
	keyNotifyChime      = "notifications.chime"
	keyNotifySound      = "notifications.sound"
	keyFinishCmd        = "settings.finish_cmd"
	keyDarkTheme        = "settings.dark_theme"
)

// defaultProductive seeds the curated productive list on first run. The
// remote classification service and user overrides take priority over it.
var defaultProductive = []string{
	"github.com",
	"gitlab.com",
	"stackoverflow.com",
	"docs.google.com",
	"developer.mozilla.org",
	"pkg.go.dev",
	"go.dev",
	"wikipedia.org",
	"arxiv.org",
	"leetcode.com",
	"notion.so",
	"linear.app",
}

var defaultUnproductive = []string{
	"youtube.com",
	"twitter.com",
	"x.com",
	"facebook.com",
	"instagram.com",
	"reddit.com",
	"tiktok.com",
	"netflix.com",
	"twitch.tv",
}

// WithViperConfig returns an Option that loads configuration from Viper.
func WithViperConfig(configPath string) Option {
	return func(c *Config) error {
		v := viper.New()

		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		setupViper(v)

		err := v.ReadInConfig()
		if err == nil {
			return v.Unmarshal(c)
		}

		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading config file failed: %w", err)
		}

		if err := v.WriteConfig(); err != nil {
			return fmt.Errorf("writing default config failed: %w", err)
		}

		return v.Unmarshal(c)
	}
}

// setupViper configures Viper with defaults.
func setupViper(v *viper.Viper) {
	v.SetDefault(keyIdleThreshold, "2m")
	v.SetDefault(keyIdlePollInterval, "10s")
	v.SetDefault(keyCheckDelayMin, "15m")
	v.SetDefault(keyCheckDelayMax, "30m")
	v.SetDefault(keyCheckWindow, "25s")
	v.SetDefault(keyAPIURL, "")
	v.SetDefault(keyCredential, "")
	v.SetDefault(keyFlushInterval, "5m")
	v.SetDefault(keyRetryInterval, "5m")
	v.SetDefault(keyOverrides, map[string]string{})
	v.SetDefault(keyProductive, defaultProductive)
	v.SetDefault(keyUnproductive, defaultUnproductive)
	v.SetDefault(keyNotifyEnabled, true)
	v.SetDefault(keyNotifyChime, true)
	v.SetDefault(keyNotifySound, "bell")
	v.SetDefault(keyFinishCmd, "")
	v.SetDefault(keyDarkTheme, true)
}

// SaveOverride persists a per-user domain override to the config file so it
// survives restarts and outranks every other classification source.
func SaveOverride(configPath, domain, verdict string) error {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setupViper(v)

	if err := v.ReadInConfig(); err != nil &&
		!errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading config file failed: %w", err)
	}

	overrides := v.GetStringMapString(keyOverrides)
	if overrides == nil {
		overrides = make(map[string]string)
	}

	overrides[domain] = verdict

	v.Set(keyOverrides, overrides)

	return v.WriteConfig()
}
