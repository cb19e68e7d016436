// Package uplink delivers session data to the session lifecycle service and
// buffers batches that could not be delivered
package uplink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anchorhq/anchor/internal/config"
	"github.com/anchorhq/anchor/internal/segment"
)

const requestTimeout = 10 * time.Second

var errNoService = errors.New("no session service configured")

// Client talks to the session lifecycle service. All calls are best-effort;
// callers degrade to local-only tracking when they fail.
type Client struct {
	baseURL    string
	credential string
	http       *http.Client
}

// NewClient creates a session service client from the sync configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.Sync.APIURL, "/"),
		credential: cfg.Sync.Credential,
		http: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Available reports whether a session service is configured at all.
func (c *Client) Available() bool {
	return c.baseURL != ""
}

// StartSession requests a remote session identifier.
func (c *Client) StartSession(ctx context.Context) (string, error) {
	var resp struct {
		SessionID string `json:"session_id"`
	}

	err := c.post(ctx, "/sessions/start", nil, &resp)
	if err != nil {
		return "", err
	}

	if resp.SessionID == "" {
		return "", errors.New("session service returned an empty id")
	}

	return resp.SessionID, nil
}

// PushActivity uploads a batch of closed segments.
func (c *Client) PushActivity(
	ctx context.Context,
	sessionID string,
	segments []segment.Segment,
) error {
	body := struct {
		SessionID string            `json:"session_id"`
		Segments  []segment.Segment `json:"segments"`
	}{
		SessionID: sessionID,
		Segments:  segments,
	}

	return c.post(ctx, "/sessions/activity", body, nil)
}

// EndSession reports a finished session's metrics.
func (c *Client) EndSession(ctx context.Context, m *segment.Metrics) error {
	body := struct {
		SessionID string           `json:"session_id"`
		Metrics   *segment.Metrics `json:"metrics"`
	}{
		SessionID: m.ID,
		Metrics:   m,
	}

	return c.post(ctx, "/sessions/end", body, nil)
}

func (c *Client) post(
	ctx context.Context,
	path string,
	body, out any,
) error {
	if !c.Available() {
		return errNoService
	}

	var buf bytes.Buffer

	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+path,
		&buf,
	)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	if c.credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.credential)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("session service returned %s", resp.Status)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}

	return nil
}

// MintLocalID produces a session id for local-only tracking so that starting
// a session never blocks on connectivity.
func MintLocalID(t time.Time) string {
	return "local-" + t.UTC().Format("20060102T150405.000000000Z")
}
