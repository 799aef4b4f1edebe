package oidc

import (
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// StaticKeySet is a fixed set of trusted keys, e.g. loaded from a file
type StaticKeySet struct {
	keys jwk.Set
}

// NewStaticKeySet creates a provider that always returns keys
func NewStaticKeySet(keys jwk.Set) *StaticKeySet {
	return &StaticKeySet{keys: keys}
}

// LoadKeySetFile reads a JWKS document from path. Private key material in the
// file is reduced to its public half.
func LoadKeySetFile(path string) (*StaticKeySet, error) {
	keys, err := jwk.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS file %s: %w", path, err)
	}
	public, err := jwk.PublicSetOf(keys)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public keys from %s: %w", path, err)
	}
	if public.Len() == 0 {
		return nil, fmt.Errorf("JWKS file %s contains no keys", path)
	}
	return &StaticKeySet{keys: public}, nil
}

// KeySet implements KeySetProvider
func (s *StaticKeySet) KeySet(_ context.Context) (jwk.Set, error) {
	if s.keys == nil {
		return nil, fmt.Errorf("no signing keys configured")
	}
	return s.keys, nil
}
