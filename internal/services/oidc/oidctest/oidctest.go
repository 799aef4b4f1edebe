// Package oidctest signs bearer tokens with a throwaway RSA key for tests.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	// Issuer is the issuer used by default-signed tokens
	Issuer = "https://drinks-test.example.com/"
	// Audience is the audience used by default-signed tokens
	Audience = "drinks"
	// KeyID is the kid of the signer's key
	KeyID = "test-key-1"
)

var (
	keyOnce sync.Once
	rsaKey  *rsa.PrivateKey
	keyErr  error

	foreignOnce sync.Once
	foreignKey  *rsa.PrivateKey
	foreignErr  error
)

// Signer holds a private signing key and the matching public key set
type Signer struct {
	Issuer   string
	Audience string
	KeyID    string

	private jwk.Key
	public  jwk.Set
}

// NewSigner returns a Signer whose RSA key is generated once per test binary
func NewSigner(t testing.TB) *Signer {
	t.Helper()

	keyOnce.Do(func() {
		rsaKey, keyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if keyErr != nil {
		t.Fatalf("failed to generate RSA key: %v", keyErr)
	}

	private, err := jwk.FromRaw(rsaKey)
	if err != nil {
		t.Fatalf("failed to build JWK: %v", err)
	}
	if err := private.Set(jwk.KeyIDKey, KeyID); err != nil {
		t.Fatalf("failed to set kid: %v", err)
	}
	if err := private.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		t.Fatalf("failed to set alg: %v", err)
	}

	public, err := jwk.PublicKeyOf(private)
	if err != nil {
		t.Fatalf("failed to derive public key: %v", err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(public); err != nil {
		t.Fatalf("failed to add key to set: %v", err)
	}

	return &Signer{
		Issuer:   Issuer,
		Audience: Audience,
		KeyID:    KeyID,
		private:  private,
		public:   set,
	}
}

// KeySet returns the public key set that verifies this signer's tokens
func (s *Signer) KeySet() jwk.Set {
	return s.public
}

// Claims returns a valid claim set granting permissions
func (s *Signer) Claims(permissions ...string) map[string]any {
	perms := make([]string, len(permissions))
	copy(perms, permissions)
	return map[string]any{
		jwt.SubjectKey:    "auth0|barista",
		jwt.IssuerKey:     s.Issuer,
		jwt.AudienceKey:   []string{s.Audience},
		jwt.IssuedAtKey:   time.Now().Add(-time.Minute).Unix(),
		jwt.ExpirationKey: time.Now().Add(time.Hour).Unix(),
		"permissions":     perms,
	}
}

// Token returns a valid RS256 token granting permissions
func (s *Signer) Token(t testing.TB, permissions ...string) string {
	t.Helper()
	return s.SignClaims(t, s.Claims(permissions...))
}

// SignClaims signs claims with the signer's key and kid
func (s *Signer) SignClaims(t testing.TB, claims map[string]any) string {
	t.Helper()
	return SignWith(t, jwa.RS256, s.private, s.KeyID, claims)
}

// SignWith signs claims with an arbitrary algorithm, key and kid
func SignWith(t testing.TB, alg jwa.SignatureAlgorithm, key any, kid string, claims map[string]any) string {
	t.Helper()

	token := jwt.New()
	for name, value := range claims {
		if err := token.Set(name, value); err != nil {
			t.Fatalf("failed to set claim %s: %v", name, err)
		}
	}

	headers := jws.NewHeaders()
	if kid != "" {
		if err := headers.Set(jws.KeyIDKey, kid); err != nil {
			t.Fatalf("failed to set kid header: %v", err)
		}
	}

	signed, err := jwt.Sign(token, jwt.WithKey(alg, key, jws.WithProtectedHeaders(headers)))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return string(signed)
}

// ForeignKey returns an RSA private key that no Signer's key set trusts
func ForeignKey(t testing.TB) jwk.Key {
	t.Helper()

	foreignOnce.Do(func() {
		foreignKey, foreignErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if foreignErr != nil {
		t.Fatalf("failed to generate foreign RSA key: %v", foreignErr)
	}
	key, err := jwk.FromRaw(foreignKey)
	if err != nil {
		t.Fatalf("failed to build foreign JWK: %v", err)
	}
	return key
}

// FlipSignatureByte changes one character in the middle of the signature
// segment so the token still decodes but no longer verifies.
func FlipSignatureByte(token string) string {
	last := -1
	for i := len(token) - 1; i >= 0; i-- {
		if token[i] == '.' {
			last = i
			break
		}
	}
	if last < 0 || last == len(token)-1 {
		return token
	}
	b := []byte(token)
	i := last + 1 + (len(token)-last-1)/2
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}
