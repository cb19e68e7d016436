package uplink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/anchorhq/anchor/internal/config"
	"github.com/anchorhq/anchor/internal/segment"
	"github.com/anchorhq/anchor/store"
)

func testStore(t *testing.T) *store.Client {
	t.Helper()

	db, err := store.NewClient(filepath.Join(t.TempDir(), "anchor_test.db"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func testClient(url string) *Client {
	cfg := &config.Config{}
	cfg.Sync.APIURL = url

	return NewClient(cfg)
}

func testBatch(n int) []segment.Segment {
	start := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

	batch := make([]segment.Segment, 0, n)

	for i := range n {
		batch = append(batch, segment.Segment{
			Start:    start.Add(time.Duration(i) * 10 * time.Minute),
			End:      start.Add(time.Duration(i+1) * 10 * time.Minute),
			LockedIn: i%2 == 0,
		})
	}

	return batch
}

// flaky serves errors until healed.
type flaky struct {
	healed   bool
	requests int
}

func (f *flaky) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	f.requests++

	if !f.healed {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{}`))
}

func TestQueueFlushFailureBuffersBatch(t *testing.T) {
	upstream := &flaky{}
	srv := httptest.NewServer(upstream)
	defer srv.Close()

	db := testStore(t)
	q := NewQueue(db, testClient(srv.URL))

	batch := testBatch(3)

	q.Flush(context.Background(), "sess-1", batch)

	pending, err := db.GetPending()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(pending) != 1 {
		t.Fatalf("expected 1 pending entry, got %d", len(pending))
	}

	if len(pending[0].Segments) != 3 {
		t.Fatalf("expected 3 buffered segments, got %d", len(pending[0].Segments))
	}

	// a repeated failed flush of the same batch must not duplicate segments
	q.Flush(context.Background(), "sess-1", batch)

	pending, _ = db.GetPending()
	if len(pending[0].Segments) != 3 {
		t.Errorf(
			"expected 3 segments after repeat flush, got %d",
			len(pending[0].Segments),
		)
	}

	// a successful retry drains the queue
	upstream.healed = true

	q.Retry(context.Background())

	pending, _ = db.GetPending()
	if len(pending) != 0 {
		t.Errorf("expected empty pending list after retry, got %d", len(pending))
	}
}

func TestQueueFlushSuccessPrunesPending(t *testing.T) {
	upstream := &flaky{}
	srv := httptest.NewServer(upstream)
	defer srv.Close()

	db := testStore(t)
	q := NewQueue(db, testClient(srv.URL))

	batch := testBatch(3)

	q.Flush(context.Background(), "sess-1", batch)

	// the next flush retransmits the same segments and succeeds
	upstream.healed = true

	q.Flush(context.Background(), "sess-1", batch)

	pending, err := db.GetPending()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(pending) != 0 {
		t.Errorf("expected pending list to be pruned, got %d entries", len(pending))
	}
}

func TestQueuePartialPrune(t *testing.T) {
	upstream := &flaky{}
	srv := httptest.NewServer(upstream)
	defer srv.Close()

	db := testStore(t)
	q := NewQueue(db, testClient(srv.URL))

	batch := testBatch(3)

	q.Flush(context.Background(), "sess-1", batch)

	// only the first two segments get redelivered
	upstream.healed = true

	q.Flush(context.Background(), "sess-1", batch[:2])

	pending, _ := db.GetPending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending entry, got %d", len(pending))
	}

	if len(pending[0].Segments) != 1 {
		t.Fatalf(
			"expected 1 remaining segment, got %d",
			len(pending[0].Segments),
		)
	}

	if !pending[0].Segments[0].Start.Equal(batch[2].Start) {
		t.Error("wrong segment left in pending list")
	}
}

func TestQueueNoServiceConfigured(t *testing.T) {
	db := testStore(t)
	q := NewQueue(db, testClient(""))

	q.Flush(context.Background(), "sess-1", testBatch(2))

	// with no service configured the batch is still buffered durably
	pending, _ := db.GetPending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending entry, got %d", len(pending))
	}
}

func TestSyncFinished(t *testing.T) {
	upstream := &flaky{healed: true}
	srv := httptest.NewServer(upstream)
	defer srv.Close()

	db := testStore(t)
	q := NewQueue(db, testClient(srv.URL))

	start := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

	m := segment.Finalize("sess-9", start, start.Add(time.Hour), nil, 0, 0)

	if err := db.SaveSession(&m); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	unsynced, err := db.LastUnsynced()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if unsynced == nil {
		t.Fatal("expected an unsynced session")
	}

	if err := q.SyncFinished(context.Background(), unsynced); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	unsynced, _ = db.LastUnsynced()
	if unsynced != nil {
		t.Error("expected no unsynced session after sync")
	}
}
