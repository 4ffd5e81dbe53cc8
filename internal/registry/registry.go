// Package registry fetches and caches the skill catalog.
//
// The provider deduplicates concurrent fetches (at most one network request
// in flight) and degrades to last-known-good cached data on network failure,
// erroring only when no cache exists at all.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/finchley/skilldock/internal/core"
)

const (
	cacheFileName = "registry.json"
	fetchTimeout  = 30 * time.Second
	maxRetries    = 3
	// freshFor is how long an in-memory catalog is served without refetching.
	freshFor = 5 * time.Minute
)

// Data is the parsed skill catalog.
type Data struct {
	Version    string                   `json:"version"`
	Categories map[string]core.Category `json:"categories"`
	Skills     []core.Skill             `json:"skills"`
}

// Metadata describes where a catalog came from.
type Metadata struct {
	FromCache bool
	Offline   bool
	FetchedAt time.Time
}

// Provider fetches the catalog over HTTP with a disk cache fallback.
type Provider struct {
	url      string
	cacheDir string
	client   *http.Client
	log      *zap.Logger

	group singleflight.Group

	mu   sync.Mutex
	data *Data
	meta Metadata
}

// NewProvider creates a Provider. cacheDir holds the last-known-good copy of
// the catalog; it is created on first write.
func NewProvider(url, cacheDir string, log *zap.Logger) *Provider {
	return &Provider{
		url:      url,
		cacheDir: cacheDir,
		client:   &http.Client{Timeout: fetchTimeout},
		log:      log.Named("registry"),
	}
}

// Get returns the catalog, fetching if the in-memory copy is stale.
func (p *Provider) Get(ctx context.Context) (*Data, error) {
	data, _, err := p.GetWithMetadata(ctx, false)
	return data, err
}

// Refresh forces a network fetch, bypassing freshness checks.
func (p *Provider) Refresh(ctx context.Context) (*Data, error) {
	data, _, err := p.GetWithMetadata(ctx, true)
	return data, err
}

// GetWithMetadata returns the catalog plus its provenance. Concurrent calls
// share a single fetch.
func (p *Provider) GetWithMetadata(ctx context.Context, forceRefresh bool) (*Data, Metadata, error) {
	p.mu.Lock()
	if !forceRefresh && p.data != nil && time.Since(p.meta.FetchedAt) < freshFor {
		data, meta := p.data, p.meta
		p.mu.Unlock()
		return data, meta, nil
	}
	p.mu.Unlock()

	type fetched struct {
		data *Data
		meta Metadata
	}
	v, err, _ := p.group.Do("registry", func() (any, error) {
		data, err := p.fetch(ctx)
		if err == nil {
			meta := Metadata{FetchedAt: time.Now()}
			p.store(data, meta)
			if cerr := p.writeCache(data); cerr != nil {
				p.log.Warn("writing registry cache", zap.Error(cerr))
			}
			return fetched{data, meta}, nil
		}

		p.log.Warn("registry fetch failed, falling back to cache", zap.Error(err))
		cached, cerr := p.readCache()
		if cerr != nil {
			return nil, fmt.Errorf("registry unreachable and no cache available: %w", err)
		}
		meta := Metadata{FromCache: true, Offline: true, FetchedAt: time.Now()}
		p.store(cached, meta)
		return fetched{cached, meta}, nil
	})
	if err != nil {
		return nil, Metadata{}, err
	}
	f := v.(fetched)
	return f.data, f.meta, nil
}

func (p *Provider) store(data *Data, meta Metadata) {
	p.mu.Lock()
	p.data = data
	p.meta = meta
	p.mu.Unlock()
}

// fetch GETs the catalog with bounded exponential backoff.
func (p *Provider) fetch(ctx context.Context) (*Data, error) {
	var data *Data
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("registry returned %s", resp.Status)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		var d Data
		if err := json.Unmarshal(body, &d); err != nil {
			return backoff.Permanent(fmt.Errorf("parsing catalog: %w", err))
		}
		data = &d
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return data, nil
}

func (p *Provider) cachePath() string {
	return filepath.Join(p.cacheDir, cacheFileName)
}

func (p *Provider) readCache() (*Data, error) {
	raw, err := os.ReadFile(p.cachePath())
	if err != nil {
		return nil, err
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parsing cached catalog: %w", err)
	}
	return &d, nil
}

func (p *Provider) writeCache(data *Data) error {
	if err := os.MkdirAll(p.cacheDir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp := p.cachePath() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, p.cachePath()); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Skills returns just the catalog's skill list. Satisfies the reconciler's
// catalog dependency.
func (p *Provider) Skills(ctx context.Context) ([]core.Skill, error) {
	d, err := p.Get(ctx)
	if err != nil {
		return nil, err
	}
	return d.Skills, nil
}

// FindSkill returns the catalog entry for a skill name.
func (d *Data) FindSkill(name string) (core.Skill, bool) {
	for _, s := range d.Skills {
		if s.Name == name {
			return s, true
		}
	}
	return core.Skill{}, false
}
