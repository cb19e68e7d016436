package tracker

import (
	"context"
	"fmt"
)

// Command is the closed set of requests the hosting UI layer may issue.
// Anything outside the set is a typed error, not a silent warning.
type Command interface {
	isCommand()
}

type (
	// StartCmd begins a new session.
	StartCmd struct{}

	// FinishCmd ends the active session and returns its *segment.Metrics.
	FinishCmd struct{}

	// SnapshotCmd returns the read-only Snapshot projection.
	SnapshotCmd struct{}

	// LastUnsyncedCmd returns the most recent finished-but-unsynced
	// session, or nil.
	LastUnsyncedCmd struct{}

	// SyncCmd flushes the pending list and the last unsynced session.
	SyncCmd struct{}
)

func (StartCmd) isCommand()        {}
func (FinishCmd) isCommand()       {}
func (SnapshotCmd) isCommand()     {}
func (LastUnsyncedCmd) isCommand() {}
func (SyncCmd) isCommand()         {}

// UnknownCommandError reports a command outside the closed set.
type UnknownCommandError struct {
	Command Command
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %T", e.Command)
}

// Dispatch routes a command to the tracker. The match is exhaustive over
// the closed command set.
func (t *Tracker) Dispatch(ctx context.Context, cmd Command) (any, error) {
	switch cmd.(type) {
	case StartCmd:
		return nil, t.Start(ctx)
	case FinishCmd:
		return t.Finish(ctx)
	case SnapshotCmd:
		return t.Snapshot(), nil
	case LastUnsyncedCmd:
		return t.LastUnsynced()
	case SyncCmd:
		return nil, t.SyncNow(ctx)
	default:
		return nil, &UnknownCommandError{Command: cmd}
	}
}
