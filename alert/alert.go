// Package alert surfaces integrity checks to the user through desktop
// notifications and an optional chime
package alert

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/anchorhq/anchor/internal/config"
)

// Check sends a desktop notification announcing a pending integrity check
// and plays the configured chime. It blocks until the chime finishes, so
// call it off the tracker's timer goroutine.
func Check(cfg *config.Config, deadline time.Time) {
	if !cfg.Notifications.Enabled {
		return
	}

	msg := fmt.Sprintf(
		"Confirm you are still locked in before %s",
		deadline.Format("03:04:05 PM"),
	)

	err := beeep.Notify("Anchor check-in", msg, "")
	if err != nil {
		slog.Error("unable to display notification", "error", err)
	}

	Chime(cfg)
}

// SessionFinished announces the end of a session.
func SessionFinished(cfg *config.Config, score int) {
	if !cfg.Notifications.Enabled {
		return
	}

	msg := fmt.Sprintf("Session finished with an anchor score of %d", score)

	err := beeep.Notify("Anchor", msg, "")
	if err != nil {
		slog.Error("unable to display notification", "error", err)
	}
}
