package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultCorsMaxAge is how long browsers may cache a preflight answer
const DefaultCorsMaxAge = 24 * time.Hour

// CorsPolicy is the set of browser origins allowed to call the drinks API.
// It is stored per service and edited with drinks-configure.
type CorsPolicy struct {
	Service          string        `json:"service"`
	AllowedOrigins   []string      `json:"allowed_origins"`
	AllowCredentials bool          `json:"allow_credentials"`
	MaxAge           time.Duration `json:"max_age"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Validate reports whether the policy can be handed to the CORS middleware
func (p *CorsPolicy) Validate() error {
	if len(p.AllowedOrigins) == 0 {
		return errors.New("at least one allowed origin is required")
	}
	for _, o := range p.AllowedOrigins {
		if o == "*" {
			if p.AllowCredentials {
				return errors.New("credentials cannot be allowed for a wildcard origin")
			}
			continue
		}
		if !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("origin %q must start with http:// or https://", o)
		}
	}
	if p.MaxAge < 0 {
		return errors.New("max age must not be negative")
	}
	return nil
}

// MaxAgeSeconds returns MaxAge in whole seconds, the unit of Access-Control-Max-Age
func (p *CorsPolicy) MaxAgeSeconds() int {
	return int(p.MaxAge / time.Second)
}

// ParseOrigins splits a comma-separated origin list, trimming blanks and
// dropping duplicates while keeping the first occurrence order
func ParseOrigins(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		o := strings.TrimSpace(part)
		if o != "" && !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	return out
}
