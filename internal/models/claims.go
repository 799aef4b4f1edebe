package models

import (
	"sort"
	"time"
)

// Claims holds the verified contents of a bearer token. Values are only
// built by token verification and are never mutated afterwards.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time

	permissions []string
}

// NewClaims creates Claims with a sorted, de-duplicated permission set
func NewClaims(subject, issuer string, audience []string, expiresAt time.Time, permissions []string) *Claims {
	seen := make(map[string]struct{}, len(permissions))
	perms := make([]string, 0, len(permissions))
	for _, p := range permissions {
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		perms = append(perms, p)
	}
	sort.Strings(perms)

	aud := make([]string, len(audience))
	copy(aud, audience)

	return &Claims{
		Subject:     subject,
		Issuer:      issuer,
		Audience:    aud,
		ExpiresAt:   expiresAt,
		permissions: perms,
	}
}

// Permissions returns a copy of the granted permissions in sorted order
func (c *Claims) Permissions() []string {
	out := make([]string, len(c.permissions))
	copy(out, c.permissions)
	return out
}

// HasPermission reports whether permission was granted
func (c *Claims) HasPermission(permission string) bool {
	i := sort.SearchStrings(c.permissions, permission)
	return i < len(c.permissions) && c.permissions[i] == permission
}
