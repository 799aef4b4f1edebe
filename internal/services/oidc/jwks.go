package oidc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultJWKSTTL is how long a fetched key set is served before refetching
	DefaultJWKSTTL = 1 * time.Hour
	// maxJWKSBytes bounds the size of a JWKS document
	maxJWKSBytes = 1 << 20
	// staleRetryInterval is the longest a stale key set is served before the
	// next fetch attempt after a failed refresh
	staleRetryInterval = 30 * time.Second
)

// KeySetProvider supplies the current set of trusted signing keys
type KeySetProvider interface {
	KeySet(ctx context.Context) (jwk.Set, error)
}

// KeySetCache shares raw JWKS documents between service instances.
// Get returns (nil, nil) on a miss.
type KeySetCache interface {
	Get(ctx context.Context, jwksURL string) ([]byte, error)
	Set(ctx context.Context, jwksURL string, doc []byte, ttl time.Duration) error
}

// JWKSManager fetches and caches the issuer's JWKS document. A failed
// refresh keeps serving the last good key set and holds off the next attempt
// for min(TTL, 30s), so an identity provider outage costs one fetch per
// interval rather than one per request.
type JWKSManager struct {
	url    string
	client *http.Client
	ttl    time.Duration
	cache  KeySetCache
	log    *zap.Logger

	mu      sync.RWMutex
	keys    jwk.Set
	expires time.Time

	group singleflight.Group
}

// JWKSOption configures a JWKSManager
type JWKSOption func(*JWKSManager)

// WithTTL sets how long a fetched key set is considered fresh
func WithTTL(ttl time.Duration) JWKSOption {
	return func(m *JWKSManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithHTTPClient sets the client used to fetch the JWKS document
func WithHTTPClient(client *http.Client) JWKSOption {
	return func(m *JWKSManager) {
		if client != nil {
			m.client = client
		}
	}
}

// WithKeySetCache puts a shared cache in front of the JWKS endpoint
func WithKeySetCache(cache KeySetCache) JWKSOption {
	return func(m *JWKSManager) {
		m.cache = cache
	}
}

// WithLogger sets the logger used for refresh failures
func WithLogger(log *zap.Logger) JWKSOption {
	return func(m *JWKSManager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewJWKSManager creates a new JWKS manager for jwksURL
func NewJWKSManager(jwksURL string, opts ...JWKSOption) *JWKSManager {
	m := &JWKSManager{
		url:    jwksURL,
		client: &http.Client{Timeout: 10 * time.Second},
		ttl:    DefaultJWKSTTL,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// URL returns the JWKS endpoint this manager reads from
func (m *JWKSManager) URL() string {
	return m.url
}

// KeySet returns the cached key set, fetching it when missing or stale
func (m *JWKSManager) KeySet(ctx context.Context) (jwk.Set, error) {
	m.mu.RLock()
	keys, expires := m.keys, m.expires
	m.mu.RUnlock()

	if keys != nil && time.Now().Before(expires) {
		return keys, nil
	}

	fresh, err := m.refresh(ctx)
	if err != nil {
		if keys != nil {
			m.log.Warn("jwks_refresh_failed_serving_stale",
				zap.String("jwks_url", m.url),
				zap.Error(err),
			)
			return keys, nil
		}
		return nil, err
	}
	return fresh, nil
}

// Refresh fetches the key set now, regardless of its age
func (m *JWKSManager) Refresh(ctx context.Context) error {
	_, err := m.refresh(ctx)
	return err
}

// Start refreshes the key set every TTL until ctx is cancelled, so rotated
// keys are picked up without a restart.
func (m *JWKSManager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil {
				m.log.Warn("jwks_background_refresh_failed",
					zap.String("jwks_url", m.url),
					zap.Error(err),
				)
			}
		}
	}
}

func (m *JWKSManager) refresh(ctx context.Context) (jwk.Set, error) {
	v, err, _ := m.group.Do(m.url, func() (any, error) {
		keys, err := m.load(ctx)
		if err != nil {
			m.backoff()
			return nil, err
		}

		m.mu.Lock()
		m.keys = keys
		m.expires = time.Now().Add(m.ttl)
		m.mu.Unlock()

		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(jwk.Set), nil
}

func (m *JWKSManager) load(ctx context.Context) (jwk.Set, error) {
	doc, err := m.document(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := jwk.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}
	if keys.Len() == 0 {
		return nil, fmt.Errorf("JWKS at %s contains no keys", m.url)
	}
	return keys, nil
}

// backoff pushes the expiry of a stale key set forward after a failed fetch.
// Without any keys every request keeps trying.
func (m *JWKSManager) backoff() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys != nil {
		m.expires = time.Now().Add(min(m.ttl, staleRetryInterval))
	}
}

// document returns the raw JWKS, preferring the shared cache
func (m *JWKSManager) document(ctx context.Context) ([]byte, error) {
	if m.cache != nil {
		doc, err := m.cache.Get(ctx, m.url)
		if err != nil {
			m.log.Warn("jwks_cache_read_failed", zap.Error(err))
		} else if doc != nil {
			return doc, nil
		}
	}

	doc, err := m.fetchJWKS(ctx)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		if err := m.cache.Set(ctx, m.url, doc, m.ttl); err != nil {
			m.log.Warn("jwks_cache_write_failed", zap.Error(err))
		}
	}
	return doc, nil
}

func (m *JWKSManager) fetchJWKS(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS response: %w", err)
	}
	return body, nil
}
