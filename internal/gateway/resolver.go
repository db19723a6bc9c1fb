// Package gateway resolves content-addressed locators to fetchable HTTP URLs,
// falling back across an ordered list of mirror gateways.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voltpacks/packmint/internal/app/metrics"
	"github.com/voltpacks/packmint/pkg/logger"
)

// LocatorScheme is the content-addressed scheme rewritten to HTTP mirrors.
const LocatorScheme = "ipfs://"

// Defaults match the production gateway order; the first mirror serves the
// common case and the rest absorb outages.
var DefaultMirrors = []string{
	"https://cloudflare-ipfs.com/ipfs/",
	"https://ipfs.io/ipfs/",
	"https://dweb.link/ipfs/",
}

const (
	// DefaultPlaceholder is the terminal asset shown when every mirror fails.
	DefaultPlaceholder = "https://placehold.co/400x600/1a1a1a/red?text=ARTIFACT+LOST"
	// DefaultEmpty is served for records that carry no locator at all.
	DefaultEmpty = "https://i.imgur.com/hTYcwAu.png"
)

// Resolver rewrites locators to mirror URLs. It keeps no per-resource state:
// the mirror position of a failing resource is recovered from the URL itself,
// so repeated failures always advance forward and terminate at the
// placeholder.
type Resolver struct {
	mirrors     []string
	placeholder string
	empty       string
	httpClient  *http.Client
	log         *logger.Logger
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithMirrors overrides the mirror list. Fewer than two mirrors keeps the
// defaults.
func WithMirrors(mirrors []string) Option {
	return func(r *Resolver) {
		if len(mirrors) >= 2 {
			r.mirrors = mirrors
		}
	}
}

// WithPlaceholder overrides the terminal placeholder URL.
func WithPlaceholder(url string) Option {
	return func(r *Resolver) {
		if url != "" {
			r.placeholder = url
		}
	}
}

// WithHTTPClient overrides the client used by Fetch.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// New creates a resolver with the default mirror order.
func New(log *logger.Logger, opts ...Option) *Resolver {
	if log == nil {
		log = logger.NewDefault("gateway")
	}
	r := &Resolver{
		mirrors:     DefaultMirrors,
		placeholder: DefaultPlaceholder,
		empty:       DefaultEmpty,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve rewrites a locator to the first mirror. Non-locator URLs pass
// through untouched; empty locators resolve to a fixed fallback asset.
func (r *Resolver) Resolve(locator string) string {
	if locator == "" {
		return r.empty
	}
	if strings.HasPrefix(locator, LocatorScheme) {
		return r.mirrors[0] + strings.TrimPrefix(locator, LocatorScheme)
	}
	return locator
}

// Placeholder returns the terminal placeholder URL.
func (r *Resolver) Placeholder() string { return r.placeholder }

// NextOnFailure maps a failing mirror URL to the next mirror for the same
// content path. It returns (placeholder, false) once the mirror list is
// exhausted or the URL is not served by a known mirror. It never errors.
func (r *Resolver) NextOnFailure(current string) (string, bool) {
	for i, mirror := range r.mirrors {
		if strings.HasPrefix(current, mirror) {
			if i+1 < len(r.mirrors) {
				return r.mirrors[i+1] + strings.TrimPrefix(current, mirror), true
			}
			return r.placeholder, false
		}
	}
	return r.placeholder, false
}

// Fetch retrieves the content behind a locator, walking the mirror list on
// failure. It returns the body and the URL that served it. Exhaustion is not
// an error at the flow level; callers receive ErrExhausted and should render
// the placeholder.
func (r *Resolver) Fetch(ctx context.Context, locator string) ([]byte, string, error) {
	url := r.Resolve(locator)
	for {
		body, err := r.fetchOnce(ctx, url)
		if err == nil {
			return body, url, nil
		}
		if ctx.Err() != nil {
			return nil, r.placeholder, ctx.Err()
		}
		r.log.WithError(err).WithField("url", url).Debugf("gateway fetch failed")

		next, ok := r.NextOnFailure(url)
		if !ok {
			return nil, r.placeholder, ErrExhausted
		}
		metrics.GatewayFallback()
		url = next
	}
}

func (r *Resolver) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
