// Package classify maps hostnames to a productivity verdict, consulting a
// remote classification service with local fallback lists
package classify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/anchorhq/anchor/internal/config"
)

// Verdict is a two-valued domain classification. The remote service may also
// answer "neutral", which collapses to Unproductive at this boundary.
type Verdict string

const (
	Productive   Verdict = "productive"
	Unproductive Verdict = "unproductive"
)

const (
	requestTimeout = 10 * time.Second
	cacheTTL       = 30 * time.Minute
)

type cacheEntry struct {
	verdict  Verdict
	cachedAt time.Time
}

// Classifier resolves domains in priority order: per-user override, remote
// service, curated lists, default-unproductive. It never returns an error;
// every failure falls through to the next source.
type Classifier struct {
	apiURL     string
	credential string
	client     *http.Client
	overrides  map[string]Verdict

	productive   []string
	unproductive []string

	mu    sync.Mutex
	cache map[string]cacheEntry

	now func() time.Time
}

// New creates a Classifier from the domain configuration.
func New(cfg *config.Config) *Classifier {
	c := &Classifier{
		apiURL:     cfg.Sync.APIURL,
		credential: cfg.Sync.Credential,
		client: &http.Client{
			Timeout: requestTimeout,
		},
		overrides:    make(map[string]Verdict),
		productive:   cfg.Domains.Productive,
		unproductive: cfg.Domains.Unproductive,
		cache:        make(map[string]cacheEntry),
		now:          time.Now,
	}

	for domain, verdict := range cfg.Domains.Overrides {
		if v := parseVerdict(verdict); v != "" {
			c.overrides[Normalize(domain)] = v
		}
	}

	return c
}

// Normalize lowercases a hostname and strips ports and a leading www label.
func Normalize(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))

	if host, _, found := strings.Cut(d, ":"); found {
		d = host
	}

	return strings.TrimPrefix(d, "www.")
}

// Classify resolves a domain to a verdict. It is safe for concurrent use.
func (c *Classifier) Classify(ctx context.Context, domain string) Verdict {
	d := Normalize(domain)
	if d == "" {
		return Unproductive
	}

	if v, ok := c.overrides[d]; ok {
		return v
	}

	if v, ok := c.cached(d); ok {
		return v
	}

	if v, ok := c.lookupRemote(ctx, d); ok {
		c.store(d, v)
		return v
	}

	if matchesList(d, c.productive) {
		return Productive
	}

	if matchesList(d, c.unproductive) {
		return Unproductive
	}

	return Unproductive
}

func (c *Classifier) cached(domain string) (Verdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[domain]
	if !ok || c.now().Sub(entry.cachedAt) > cacheTTL {
		return "", false
	}

	return entry.verdict, true
}

func (c *Classifier) store(domain string, v Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[domain] = cacheEntry{verdict: v, cachedAt: c.now()}
}

// lookupRemote consults the classification service. Any failure, including a
// malformed response shape, is treated as no answer.
func (c *Classifier) lookupRemote(
	ctx context.Context,
	domain string,
) (Verdict, bool) {
	if c.apiURL == "" {
		return "", false
	}

	endpoint := strings.TrimSuffix(c.apiURL, "/") + "/classification?domain=" +
		url.QueryEscape(domain)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false
	}

	if c.credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.credential)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Debug("classification lookup failed", "domain", domain, "error", err)
		return "", false
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	var body struct {
		Classification string `json:"classification"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		slog.Debug("malformed classification response", "domain", domain)
		return "", false
	}

	v := parseVerdict(body.Classification)
	if v == "" {
		return "", false
	}

	return v, true
}

// parseVerdict maps service answers onto the two-valued verdict. Neutral is
// unproductive by default policy; anything unrecognized is no answer.
func parseVerdict(s string) Verdict {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "productive":
		return Productive
	case "unproductive", "neutral":
		return Unproductive
	default:
		return ""
	}
}

// matchesList reports whether the domain equals a listed entry or is a
// subdomain of one.
func matchesList(domain string, list []string) bool {
	for _, entry := range list {
		e := Normalize(entry)
		if e == "" {
			continue
		}

		if domain == e || strings.HasSuffix(domain, "."+e) {
			return true
		}
	}

	return false
}
