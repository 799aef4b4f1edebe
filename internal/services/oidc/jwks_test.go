package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benvon/drinks-api/internal/services/oidc/oidctest"
)

type memoryKeySetCache struct {
	mu   sync.Mutex
	docs map[string][]byte
	sets int
}

func (c *memoryKeySetCache) Get(_ context.Context, jwksURL string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.docs[jwksURL], nil
}

func (c *memoryKeySetCache) Set(_ context.Context, jwksURL string, doc []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.docs == nil {
		c.docs = map[string][]byte{}
	}
	c.docs[jwksURL] = doc
	c.sets++
	return nil
}

func jwksServer(t *testing.T, signer *oidctest.Signer) (*httptest.Server, *atomic.Int32, *atomic.Bool) {
	t.Helper()

	doc, err := json.Marshal(signer.KeySet())
	if err != nil {
		t.Fatalf("failed to marshal key set: %v", err)
	}

	var hits atomic.Int32
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits, &failing
}

func TestJWKSManager_KeySet_CachesWithinTTL(t *testing.T) {
	t.Parallel()

	signer := oidctest.NewSigner(t)
	srv, hits, _ := jwksServer(t, signer)
	m := NewJWKSManager(srv.URL, WithTTL(time.Hour))

	for i := 0; i < 3; i++ {
		keys, err := m.KeySet(context.Background())
		if err != nil {
			t.Fatalf("KeySet() error = %v", err)
		}
		if _, ok := keys.LookupKeyID(oidctest.KeyID); !ok {
			t.Fatalf("KeySet() missing kid %q", oidctest.KeyID)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("JWKS endpoint hit %d times, want 1", got)
	}
}

func TestJWKSManager_KeySet_ServesStaleOnFailure(t *testing.T) {
	t.Parallel()

	signer := oidctest.NewSigner(t)
	srv, hits, failing := jwksServer(t, signer)
	m := NewJWKSManager(srv.URL, WithTTL(time.Millisecond))

	if _, err := m.KeySet(context.Background()); err != nil {
		t.Fatalf("initial KeySet() error = %v", err)
	}

	failing.Store(true)
	time.Sleep(5 * time.Millisecond)

	keys, err := m.KeySet(context.Background())
	if err != nil {
		t.Fatalf("KeySet() after failure error = %v", err)
	}
	if _, ok := keys.LookupKeyID(oidctest.KeyID); !ok {
		t.Error("stale key set missing kid")
	}
	if hits.Load() < 2 {
		t.Error("expected a refresh attempt after TTL expiry")
	}
	if err := m.Refresh(context.Background()); err == nil {
		t.Error("Refresh() against a failing endpoint should return an error")
	}
}

func TestJWKSManager_KeySet_BacksOffWhileStale(t *testing.T) {
	t.Parallel()

	signer := oidctest.NewSigner(t)
	srv, hits, failing := jwksServer(t, signer)
	m := NewJWKSManager(srv.URL, WithTTL(200*time.Millisecond))

	if _, err := m.KeySet(context.Background()); err != nil {
		t.Fatalf("initial KeySet() error = %v", err)
	}

	failing.Store(true)
	time.Sleep(250 * time.Millisecond)

	for i := 0; i < 5; i++ {
		keys, err := m.KeySet(context.Background())
		if err != nil {
			t.Fatalf("KeySet() call %d error = %v", i, err)
		}
		if _, ok := keys.LookupKeyID(oidctest.KeyID); !ok {
			t.Fatalf("KeySet() call %d missing kid", i)
		}
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("JWKS endpoint hit %d times during outage, want 2 (initial fetch and one retry)", got)
	}

	time.Sleep(250 * time.Millisecond)
	if _, err := m.KeySet(context.Background()); err != nil {
		t.Fatalf("KeySet() after backoff error = %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("JWKS endpoint hit %d times, want 3 after the backoff elapsed", got)
	}
}

func TestJWKSManager_KeySet_ErrorWithoutKeys(t *testing.T) {
	t.Parallel()

	signer := oidctest.NewSigner(t)
	srv, _, failing := jwksServer(t, signer)
	failing.Store(true)

	m := NewJWKSManager(srv.URL)
	if _, err := m.KeySet(context.Background()); err == nil {
		t.Fatal("KeySet() error = nil, want error")
	}
}

func TestJWKSManager_KeySet_RejectsEmptySet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"keys":[]}`))
	}))
	t.Cleanup(srv.Close)

	m := NewJWKSManager(srv.URL)
	if _, err := m.KeySet(context.Background()); err == nil {
		t.Fatal("KeySet() accepted an empty key set")
	}
}

func TestJWKSManager_SharedCache(t *testing.T) {
	t.Parallel()

	signer := oidctest.NewSigner(t)
	srv, hits, _ := jwksServer(t, signer)
	cache := &memoryKeySetCache{}

	first := NewJWKSManager(srv.URL, WithKeySetCache(cache))
	if _, err := first.KeySet(context.Background()); err != nil {
		t.Fatalf("first KeySet() error = %v", err)
	}

	second := NewJWKSManager(srv.URL, WithKeySetCache(cache))
	if _, err := second.KeySet(context.Background()); err != nil {
		t.Fatalf("second KeySet() error = %v", err)
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("JWKS endpoint hit %d times, want 1", got)
	}
	if cache.sets != 1 {
		t.Errorf("cache written %d times, want 1", cache.sets)
	}
}

func TestJWKSManager_VerifiesTokens(t *testing.T) {
	t.Parallel()

	signer := oidctest.NewSigner(t)
	srv, _, _ := jwksServer(t, signer)

	v, err := NewVerifier(NewJWKSManager(srv.URL), signer.Issuer, signer.Audience, DefaultAlgorithm)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	claims, err := v.Verify(context.Background(), signer.Token(t, "post:drinks"))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !claims.HasPermission("post:drinks") {
		t.Error("claims missing post:drinks")
	}
}

func TestJWKSManager_StartStopsOnCancel(t *testing.T) {
	t.Parallel()

	signer := oidctest.NewSigner(t)
	srv, hits, _ := jwksServer(t, signer)
	m := NewJWKSManager(srv.URL, WithTTL(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for hits.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("background refresh never ran")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}

func TestDefaultJWKSURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		issuer string
		want   string
	}{
		{issuer: "https://tenant.auth0.com/", want: "https://tenant.auth0.com/.well-known/jwks.json"},
		{issuer: "https://tenant.auth0.com", want: "https://tenant.auth0.com/.well-known/jwks.json"},
		{issuer: "", want: ""},
	}
	for _, tt := range tests {
		if got := DefaultJWKSURL(tt.issuer); got != tt.want {
			t.Errorf("DefaultJWKSURL(%q) = %q, want %q", tt.issuer, got, tt.want)
		}
	}
}
