package config

import (
	"slices"
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"
	"github.com/urfave/cli/v2"

	"github.com/anchorhq/anchor/internal/timeutil"
)

// FilterConfig bounds a reporting query.
type FilterConfig struct {
	StartTime time.Time
	EndTime   time.Time
	Domains   []string
}

// timeRange returns the start and end time according to the specified
// time period.
func timeRange(period timeutil.Period) (start, end time.Time) {
	now := time.Now()

	start = timeutil.RoundToStart(now)

	end = timeutil.RoundToEnd(now)

	//nolint:exhaustive // other cases covered by default
	switch period {
	case timeutil.PeriodToday:
		return
	case timeutil.PeriodYesterday:
		start = now.AddDate(0, 0, timeutil.Range[period])
		start = timeutil.RoundToStart(start)
		end = timeutil.RoundToEnd(start)

		return
	case timeutil.PeriodAllTime:
		start = time.Time{}
		return
	default:
		start = now.AddDate(0, 0, timeutil.Range[period])
		start = timeutil.RoundToStart(start)
	}

	return
}

// Filter derives the reporting window from command-line arguments. An
// explicit `--period` takes priority over `--start`/`--end` dates, which
// accept natural language ("last tuesday", "2 weeks ago"). The period
// flag's default only applies when no start date is given.
func Filter(ctx *cli.Context) (*FilterConfig, error) {
	cfg := &FilterConfig{}

	if ctx.String("domain") != "" {
		cfg.Domains = strings.Split(ctx.String("domain"), ",")
	}

	period := timeutil.Period(strings.TrimSpace(ctx.String("period")))

	if period != "" && !slices.Contains(timeutil.PeriodCollection, period) {
		return nil, errInvalidPeriod
	}

	if period != "" && (ctx.IsSet("period") || ctx.String("start") == "") {
		cfg.StartTime, cfg.EndTime = timeRange(period)

		return cfg, nil
	}

	start := ctx.String("start")
	if start != "" {
		dt, err := dateparser.Parse(nil, start)
		if err != nil {
			return nil, err
		}

		cfg.StartTime = dt.Time
	}

	cfg.EndTime = time.Now()

	end := ctx.String("end")
	if end != "" {
		dt, err := dateparser.Parse(nil, end)
		if err != nil {
			return nil, err
		}

		cfg.EndTime = dt.Time
	}

	if cfg.StartTime.IsZero() {
		return nil, errInvalidStartDate
	}

	if cfg.EndTime.Before(cfg.StartTime) {
		return nil, errInvalidDateRange
	}

	return cfg, nil
}
