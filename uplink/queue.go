package uplink

import (
	"context"
	"log/slog"
	"time"

	"github.com/anchorhq/anchor/internal/segment"
	"github.com/anchorhq/anchor/store"
)

// Queue buffers unacknowledged segment batches in the durable pending list
// and retries them. Upload failure is never fatal to tracking; only delivery
// is deferred.
type Queue struct {
	db     store.DB
	client *Client

	now func() time.Time
}

// NewQueue creates an upload queue backed by the durable store.
func NewQueue(db store.DB, client *Client) *Queue {
	return &Queue{
		db:     db,
		client: client,
		now:    time.Now,
	}
}

// Flush attempts to deliver a batch of closed segments. On failure the batch
// is merged into the durable pending list for the session; on success any
// pending entries matching the batch by start-time identity are pruned.
func (q *Queue) Flush(
	ctx context.Context,
	sessionID string,
	batch []segment.Segment,
) {
	if len(batch) == 0 {
		return
	}

	err := q.client.PushActivity(ctx, sessionID, batch)
	if err != nil {
		slog.Info(
			"activity upload failed, deferring",
			"session", sessionID,
			"segments", len(batch),
			"error", err,
		)

		q.enqueue(sessionID, batch)

		return
	}

	q.prune(sessionID, batch)
}

// Retry sweeps the entire pending list regardless of whether a session is
// active, so connectivity restored after a session ends still delivers data.
func (q *Queue) Retry(ctx context.Context) {
	pending, err := q.db.GetPending()
	if err != nil {
		slog.Error("reading pending uploads failed", "error", err)
		return
	}

	for i := range pending {
		p := pending[i]

		err := q.client.PushActivity(ctx, p.SessionID, p.Segments)
		if err != nil {
			slog.Debug(
				"pending upload retry failed",
				"session", p.SessionID,
				"error", err,
			)

			continue
		}

		if err := q.db.DeletePending(p.SessionID); err != nil {
			slog.Error(
				"pruning pending uploads failed",
				"session", p.SessionID,
				"error", err,
			)
		}
	}
}

// enqueue merges a failed batch into the session's pending entry,
// deduplicated by segment start time.
func (q *Queue) enqueue(sessionID string, batch []segment.Segment) {
	pending, err := q.db.GetPending()
	if err != nil {
		slog.Error("reading pending uploads failed", "error", err)
		return
	}

	entry := segment.PendingUpload{
		SessionID:  sessionID,
		EnqueuedAt: q.now(),
	}

	for i := range pending {
		if pending[i].SessionID == sessionID {
			entry = pending[i]
			break
		}
	}

	known := make(map[time.Time]bool, len(entry.Segments))
	for _, seg := range entry.Segments {
		known[seg.Start] = true
	}

	for _, seg := range batch {
		if !known[seg.Start] {
			entry.Segments = append(entry.Segments, seg)
		}
	}

	if err := q.db.SavePending(&entry); err != nil {
		slog.Error("persisting pending uploads failed", "error", err)
	}
}

// prune removes delivered segments from the session's pending entry.
func (q *Queue) prune(sessionID string, delivered []segment.Segment) {
	pending, err := q.db.GetPending()
	if err != nil {
		return
	}

	for i := range pending {
		p := pending[i]

		if p.SessionID != sessionID {
			continue
		}

		uploaded := make(map[time.Time]bool, len(delivered))
		for _, seg := range delivered {
			uploaded[seg.Start] = true
		}

		remaining := p.Segments[:0]

		for _, seg := range p.Segments {
			if !uploaded[seg.Start] {
				remaining = append(remaining, seg)
			}
		}

		if len(remaining) == 0 {
			_ = q.db.DeletePending(sessionID)
			return
		}

		p.Segments = remaining
		_ = q.db.SavePending(&p)

		return
	}
}

// SyncFinished uploads a finished-but-unsynced session and marks it uploaded
// in the archive once the service acknowledges it.
func (q *Queue) SyncFinished(ctx context.Context, m *segment.Metrics) error {
	if err := q.client.EndSession(ctx, m); err != nil {
		return err
	}

	m.Uploaded = true

	return q.db.SaveSession(m)
}
