package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/drinks-api/internal/apierror"
	"github.com/benvon/drinks-api/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	// DefaultAlgorithm is the only signature algorithm accepted unless configured otherwise
	DefaultAlgorithm = "RS256"
	// DefaultClockSkew is the tolerance applied to exp/nbf/iat checks
	DefaultClockSkew = 30 * time.Second

	permissionsClaim = "permissions"
	scopeClaim       = "scope"
)

// Verifier verifies bearer tokens against a signing key set and extracts claims
type Verifier struct {
	keys      KeySetProvider
	issuer    string
	audience  string
	algorithm jwa.SignatureAlgorithm
	skew      time.Duration
	clock     func() time.Time
}

// VerifierOption configures a Verifier
type VerifierOption func(*Verifier)

// WithClock replaces the time source used for expiry checks
func WithClock(clock func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// WithAcceptableSkew sets the clock skew tolerated for time-based claims
func WithAcceptableSkew(skew time.Duration) VerifierOption {
	return func(v *Verifier) {
		if skew >= 0 {
			v.skew = skew
		}
	}
}

// NewVerifier creates a new JWT verifier. algorithm is the single signature
// algorithm tokens may assert; "none" is rejected.
func NewVerifier(keys KeySetProvider, issuer, audience, algorithm string, opts ...VerifierOption) (*Verifier, error) {
	if keys == nil {
		return nil, fmt.Errorf("a signing key provider is required")
	}
	if issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	if audience == "" {
		return nil, fmt.Errorf("audience is required")
	}
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}

	var alg jwa.SignatureAlgorithm
	if err := alg.Accept(algorithm); err != nil {
		return nil, fmt.Errorf("unsupported signature algorithm %q: %w", algorithm, err)
	}
	if alg == jwa.NoSignature {
		return nil, fmt.Errorf("signature algorithm %q is not allowed", algorithm)
	}

	v := &Verifier{
		keys:      keys,
		issuer:    issuer,
		audience:  audience,
		algorithm: alg,
		skew:      DefaultClockSkew,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks token structure, key id, algorithm, signature and claims in
// that order. Failures are *apierror.AuthError; a key provider failure is an
// *apierror.InternalError.
func (v *Verifier) Verify(ctx context.Context, token string) (*models.Claims, error) {
	raw := []byte(token)

	// Compact serialization only: header.payload.signature
	if token == "" || strings.Count(token, ".") != 2 {
		return nil, apierror.NewAuthError(apierror.MalformedToken, errors.New("token is not a compact JWS"))
	}
	msg, err := jws.Parse(raw)
	if err != nil {
		return nil, apierror.NewAuthError(apierror.MalformedToken, err)
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return nil, apierror.NewAuthError(apierror.MalformedToken, fmt.Errorf("expected 1 signature, got %d", len(sigs)))
	}
	headers := sigs[0].ProtectedHeaders()

	kid := headers.KeyID()
	if kid == "" {
		return nil, apierror.NewAuthError(apierror.UnknownSigningKey, errors.New("token header has no kid"))
	}
	keys, err := v.keys.KeySet(ctx)
	if err != nil {
		return nil, &apierror.InternalError{Err: fmt.Errorf("failed to get signing keys: %w", err)}
	}
	key, ok := keys.LookupKeyID(kid)
	if !ok {
		return nil, apierror.NewAuthError(apierror.UnknownSigningKey, fmt.Errorf("kid %q not in key set", kid))
	}

	if alg := headers.Algorithm(); alg != v.algorithm {
		return nil, apierror.NewAuthError(apierror.InvalidSignature, fmt.Errorf("algorithm %q not accepted", alg))
	}
	if keyAlg := key.Algorithm(); keyAlg != nil && keyAlg.String() != "" && keyAlg.String() != v.algorithm.String() {
		return nil, apierror.NewAuthError(apierror.InvalidSignature, fmt.Errorf("key %q is declared for %q", kid, keyAlg))
	}

	payload, err := jws.Verify(raw, jws.WithKey(v.algorithm, key))
	if err != nil {
		return nil, apierror.NewAuthError(apierror.InvalidSignature, err)
	}

	parsed := jwt.New()
	if err := json.Unmarshal(payload, parsed); err != nil {
		return nil, apierror.NewAuthError(apierror.MalformedToken, fmt.Errorf("failed to decode claims: %w", err))
	}

	err = jwt.Validate(parsed,
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
		jwt.WithClock(jwt.ClockFunc(v.clock)),
		jwt.WithAcceptableSkew(v.skew),
	)
	if err != nil {
		return nil, apierror.NewAuthError(apierror.InvalidClaims, err)
	}

	permissions, err := extractPermissions(parsed)
	if err != nil {
		return nil, apierror.NewAuthError(apierror.InvalidClaims, err)
	}

	return models.NewClaims(
		parsed.Subject(),
		parsed.Issuer(),
		parsed.Audience(),
		parsed.Expiration(),
		permissions,
	), nil
}

// extractPermissions reads the "permissions" array, falling back to the
// space-delimited OAuth2 "scope" claim.
func extractPermissions(token jwt.Token) ([]string, error) {
	if raw, ok := token.Get(permissionsClaim); ok {
		switch perms := raw.(type) {
		case []string:
			return perms, nil
		case []any:
			out := make([]string, 0, len(perms))
			for _, p := range perms {
				s, ok := p.(string)
				if !ok {
					return nil, fmt.Errorf("permissions claim contains a non-string value")
				}
				out = append(out, s)
			}
			return out, nil
		case string:
			return strings.Fields(perms), nil
		default:
			return nil, fmt.Errorf("permissions claim has unexpected type %T", raw)
		}
	}

	if raw, ok := token.Get(scopeClaim); ok {
		scope, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("scope claim has unexpected type %T", raw)
		}
		return strings.Fields(scope), nil
	}

	return nil, nil
}
