package validate

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/magland/runpack/internal/httpx"
	"github.com/magland/runpack/internal/logger"
)

// figpackURLField is the only field name the freshness probe looks for,
// walking output_data recursively for every occurrence at any nesting depth.
const figpackURLField = "figpack_url"

const indexSuffix = "/index.html"
const manifestName = "figpack.json"

// DefaultMaxConcurrentProbes bounds how many figpack.json GETs run at once
// for a single cache-hit check.
const DefaultMaxConcurrentProbes = 8

type manifest struct {
	Deleted    bool `json:"deleted"`
	Pinned     bool `json:"pinned"`
	Expiration *int64 `json:"expiration"`
}

// Prober implements the cache-freshness check: a completed job's cached
// output is valid iff every figpack_url it contains still points at live
// (non-deleted, non-expired-unless-pinned) cloud data.
type Prober struct {
	client         *http.Client
	maxConcurrent  int64
	log            *logger.Logger
}

func NewProber(timeout time.Duration, maxConcurrent int, log *logger.Logger) *Prober {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentProbes
	}
	return &Prober{
		client:        httpx.NewClient(timeout),
		maxConcurrent: int64(maxConcurrent),
		log:           log,
	}
}

// IsFresh returns true if outputData contains no figpack_url fields, or if
// every one it does contain resolves to a live manifest. Any fetch error,
// non-2xx response, JSON parse failure, or URL shape mismatch makes that
// one URL (and therefore the whole job) invalid — never surfaced as an
// error, since a probe failure means "treat the cache as invalid," not
// "something is broken."
func (p *Prober) IsFresh(ctx context.Context, outputData []byte) bool {
	if len(outputData) == 0 {
		return true
	}
	var decoded any
	if err := json.Unmarshal(outputData, &decoded); err != nil {
		return true
	}
	urls := collectFigpackURLs(decoded, nil)
	if len(urls) == 0 {
		return true
	}

	sem := semaphore.NewWeighted(p.maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := true

	for _, u := range urls {
		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				fresh = false
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			ok := p.checkOne(ctx, u)
			if !ok {
				mu.Lock()
				fresh = false
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return fresh
}

// maxProbeRetries bounds the single retry checkOne allows a transient
// failure (timeout, 429, 5xx) before giving up and treating the URL as
// invalid.
const maxProbeRetries = 1

func (p *Prober) checkOne(ctx context.Context, figpackURL string) bool {
	if !strings.HasSuffix(figpackURL, indexSuffix) {
		return false
	}
	manifestURL := strings.TrimSuffix(figpackURL, indexSuffix) + "/" + manifestName

	for attempt := 0; ; attempt++ {
		m, retryResp, err := p.fetchManifest(ctx, manifestURL)
		if err != nil {
			if attempt < maxProbeRetries && httpx.IsRetryableError(err) {
				if p.log != nil {
					p.log.Debug("freshness probe retrying after transient error", "url", manifestURL, "error", err)
				}
				continue
			}
			if p.log != nil {
				p.log.Debug("freshness probe fetch failed", "url", manifestURL, "error", err)
			}
			return false
		}
		if retryResp != nil {
			if attempt < maxProbeRetries {
				wait := httpx.RetryAfterDuration(retryResp, time.Second, 5*time.Second)
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return false
				}
				continue
			}
			return false
		}
		if m == nil {
			return false
		}
		if m.Deleted {
			return false
		}
		if m.Pinned {
			return true
		}
		if m.Expiration == nil {
			return false
		}
		return *m.Expiration > time.Now().UTC().UnixMilli()
	}
}

// fetchManifest issues one GET. It returns (manifest, nil, nil) on success,
// (nil, resp, nil) when the status is retryable, and (nil, nil, err) on a
// transport error.
func (p *Prober) fetchManifest(ctx context.Context, manifestURL string) (*manifest, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if httpx.IsRetryableHTTPStatus(resp.StatusCode) {
			return nil, resp, nil
		}
		return nil, nil, nil
	}

	var m manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, nil, nil
	}
	return &m, nil, nil
}

// collectFigpackURLs recursively walks a decoded JSON value collecting
// every string found under a key named figpack_url, at any nesting depth,
// inside any number of objects/arrays.
func collectFigpackURLs(v any, out []string) []string {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			if k == figpackURLField {
				if s, ok := child.(string); ok {
					out = append(out, s)
					continue
				}
			}
			out = collectFigpackURLs(child, out)
		}
	case []any:
		for _, item := range val {
			out = collectFigpackURLs(item, out)
		}
	}
	return out
}
