package config

import (
	"errors"
	"flag"
	"slices"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/anchorhq/anchor/internal/timeutil"
)

// filterContext builds a cli context where flags in set were passed
// explicitly and flags in defaults carry their flag default.
func filterContext(
	t *testing.T,
	defaults, set map[string]string,
) *cli.Context {
	t.Helper()

	f := flag.NewFlagSet("report", flag.PanicOnError)

	for k, v := range defaults {
		_ = f.String(k, v, "")
	}

	for k, v := range set {
		if f.Lookup(k) == nil {
			_ = f.String(k, "", "")
		}

		if err := f.Set(k, v); err != nil {
			t.Fatal(err)
		}
	}

	return cli.NewContext(&cli.App{}, f, nil)
}

func TestFilterPeriod(t *testing.T) {
	ctx := filterContext(t, nil, map[string]string{"period": "today"})

	cfg, err := Filter(ctx)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()

	if !cfg.StartTime.Equal(timeutil.RoundToStart(now)) {
		t.Errorf("expected start of today, got %v", cfg.StartTime)
	}

	if !cfg.EndTime.Equal(timeutil.RoundToEnd(now)) {
		t.Errorf("expected end of today, got %v", cfg.EndTime)
	}
}

func TestFilterInvalidPeriod(t *testing.T) {
	ctx := filterContext(t, nil, map[string]string{"period": "fortnight"})

	if _, err := Filter(ctx); !errors.Is(err, errInvalidPeriod) {
		t.Fatalf("expected %v, got %v", errInvalidPeriod, err)
	}
}

func TestFilterStartOverridesDefaultPeriod(t *testing.T) {
	// the period flag carries a default, so an unset period must not
	// shadow an explicit start date
	ctx := filterContext(
		t,
		map[string]string{"period": "7days"},
		map[string]string{"start": "2026-08-01", "end": "2026-08-15"},
	)

	cfg, err := Filter(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if got := cfg.StartTime.Format(time.DateOnly); got != "2026-08-01" {
		t.Errorf("expected start 2026-08-01, got %s", got)
	}

	if got := cfg.EndTime.Format(time.DateOnly); got != "2026-08-15" {
		t.Errorf("expected end 2026-08-15, got %s", got)
	}
}

func TestFilterExplicitPeriodBeatsDates(t *testing.T) {
	ctx := filterContext(t, nil, map[string]string{
		"period": "today",
		"start":  "2026-08-01",
	})

	cfg, err := Filter(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if !cfg.StartTime.Equal(timeutil.RoundToStart(time.Now())) {
		t.Errorf(
			"expected the explicit period to win, got start %v",
			cfg.StartTime,
		)
	}
}

func TestFilterInvertedDateRange(t *testing.T) {
	ctx := filterContext(
		t,
		map[string]string{"period": "7days"},
		map[string]string{"start": "2026-08-15", "end": "2026-08-01"},
	)

	if _, err := Filter(ctx); !errors.Is(err, errInvalidDateRange) {
		t.Fatalf("expected %v, got %v", errInvalidDateRange, err)
	}
}

func TestFilterDomains(t *testing.T) {
	ctx := filterContext(t, nil, map[string]string{
		"period": "today",
		"domain": "github.com,go.dev",
	})

	cfg, err := Filter(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if !slices.Equal(cfg.Domains, []string{"github.com", "go.dev"}) {
		t.Errorf("unexpected domain filter: %v", cfg.Domains)
	}
}
