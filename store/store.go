// Package store connects to the data store and manages runtime snapshots,
// finished sessions, and the pending upload queue
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/anchorhq/anchor/internal/segment"
	"github.com/anchorhq/anchor/internal/timeutil"
)

var errAnchorRunning = errors.New(
	"is anchor already running? Only one instance can be active at a time",
)

var (
	runtimeBucket  = []byte("runtime")
	sessionsBucket = []byte("sessions")
	pendingBucket  = []byte("pending")
	daysBucket     = []byte("days")
)

// runtimeKey is the single key under which the active session state lives.
var runtimeKey = []byte("active")

// Client is a BoltDB database client.
type Client struct {
	*bolt.DB
}

func (c *Client) SaveRuntime(state []byte) error {
	return c.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runtimeBucket).Put(runtimeKey, state)
	})
}

func (c *Client) GetRuntime() ([]byte, error) {
	var state []byte

	err := c.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(runtimeBucket).Get(runtimeKey)
		if v != nil {
			state = make([]byte, len(v))
			copy(state, v)
		}

		return nil
	})

	return state, err
}

func (c *Client) DeleteRuntime() error {
	return c.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runtimeBucket).Delete(runtimeKey)
	})
}

func (c *Client) SaveSession(m *segment.Metrics) error {
	key := timeutil.ToKey(m.StartTime)

	value, err := json.Marshal(m)
	if err != nil {
		return err
	}

	return c.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put(key, value)
	})
}

func (c *Client) GetSessions(
	startTime, endTime time.Time,
) ([]segment.Metrics, error) {
	var b [][]byte

	err := c.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(sessionsBucket).Cursor()
		min := timeutil.ToKey(startTime)
		max := timeutil.ToKey(endTime)

		for k, v := cur.Seek(min); k != nil && bytes.Compare(k, max) <= 0; k, v = cur.Next() {
			b = append(b, v)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sessions := make([]segment.Metrics, 0, len(b))

	for _, v := range b {
		var m segment.Metrics

		err = json.Unmarshal(v, &m)
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, m)
	}

	return sessions, nil
}

func (c *Client) LastUnsynced() (*segment.Metrics, error) {
	var found *segment.Metrics

	err := c.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(sessionsBucket).Cursor()

		for k, v := cur.Last(); k != nil; k, v = cur.Prev() {
			var m segment.Metrics

			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}

			if !m.Uploaded {
				found = &m
				return nil
			}
		}

		return nil
	})

	return found, err
}

func (c *Client) SavePending(p *segment.PendingUpload) error {
	value, err := json.Marshal(p)
	if err != nil {
		return err
	}

	return c.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(pendingBucket).Put([]byte(p.SessionID), value)
	})
}

func (c *Client) GetPending() ([]segment.PendingUpload, error) {
	var pending []segment.PendingUpload

	err := c.View(func(tx *bolt.Tx) error {
		return tx.Bucket(pendingBucket).ForEach(func(_, v []byte) error {
			var p segment.PendingUpload

			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}

			pending = append(pending, p)

			return nil
		})
	})

	return pending, err
}

func (c *Client) DeletePending(sessionID string) error {
	return c.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(pendingBucket).Delete([]byte(sessionID))
	})
}

func (c *Client) AddDayTotal(day string, seconds float64) error {
	return c.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(daysBucket)

		var total float64

		if v := b.Get([]byte(day)); v != nil {
			parsed, err := strconv.ParseFloat(string(v), 64)
			if err == nil {
				total = parsed
			}
		}

		total += seconds

		value := strconv.FormatFloat(total, 'f', -1, 64)

		return b.Put([]byte(day), []byte(value))
	})
}

func (c *Client) GetDayTotals() (map[string]float64, error) {
	totals := make(map[string]float64)

	err := c.View(func(tx *bolt.Tx) error {
		return tx.Bucket(daysBucket).ForEach(func(k, v []byte) error {
			parsed, err := strconv.ParseFloat(string(v), 64)
			if err != nil || math.IsNaN(parsed) {
				// skip malformed entries rather than failing the read
				return nil
			}

			totals[string(k)] = parsed

			return nil
		})
	})

	return totals, err
}

// openDB creates or opens a database and locks it.
func openDB(pathToDB string) (*bolt.DB, error) {
	var fileMode fs.FileMode = 0o600

	db, err := bolt.Open(
		pathToDB,
		fileMode,
		&bolt.Options{Timeout: 1 * time.Second},
	)
	if err != nil {
		if errors.Is(err, bolt.ErrDatabaseOpen) ||
			errors.Is(err, bolt.ErrTimeout) {
			return nil, errAnchorRunning
		}

		return nil, err
	}

	return db, nil
}

// NewClient returns a wrapper to a BoltDB connection.
func NewClient(dbPath string) (*Client, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	// Create the necessary buckets for storing data if they do not exist already
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{
			runtimeBucket,
			sessionsBucket,
			pendingBucket,
			daysBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		db,
	}, nil
}
