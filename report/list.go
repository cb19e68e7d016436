package report

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/anchorhq/anchor/analytics"
	"github.com/anchorhq/anchor/internal/config"
	"github.com/anchorhq/anchor/internal/timeutil"
	"github.com/anchorhq/anchor/internal/ui"
)

// List prints out a table of the sessions that were finished within the
// reporting window.
func List() error {
	sessions, err := db.GetSessions(opts.StartTime, opts.EndTime)
	if err != nil {
		return err
	}

	sessions = filterSessions(sessions)

	if len(sessions) == 0 {
		pterm.Info.Println(noSessionsMsg)
		return nil
	}

	tableBody := make([][]string, 0, len(sessions))

	for i := range sessions {
		m := sessions[i]

		syncText := ui.Red("local")
		if m.Uploaded {
			syncText = ui.Green("synced")
		}

		rep := analytics.Compute(&m)

		row := []string{
			fmt.Sprintf("%d", i+1),
			m.StartTime.Format("January 02, 2006 03:04 PM"),
			m.EndTime.Format("03:04 PM"),
			formatSeconds(m.TotalSeconds),
			fmt.Sprintf("%d%%", timeutil.Round(m.FocusRate*100)),
			fmt.Sprintf("%d", rep.AnchorScore),
			syncText,
		}

		tableBody = append(tableBody, row)
	}

	data := [][]string{
		{"#", "START", "END", "TRACKED", "FOCUS", "SCORE", "SYNC"},
	}

	data = append(data, tableBody...)

	ui.PrintTable(data, config.Stdout)

	return nil
}
