package models

import (
	"reflect"
	"testing"
	"time"
)

func TestParseOrigins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: ""},
		{name: "blanks only", raw: " , ,"},
		{name: "single", raw: "https://barista.example.com", want: []string{"https://barista.example.com"}},
		{name: "list keeps order", raw: "https://b.example.com, https://a.example.com", want: []string{"https://b.example.com", "https://a.example.com"}},
		{name: "dedup", raw: "https://a.example.com,https://a.example.com , https://b.example.com", want: []string{"https://a.example.com", "https://b.example.com"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseOrigins(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseOrigins(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCorsPolicy_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		policy  CorsPolicy
		wantErr bool
	}{
		{name: "https origin", policy: CorsPolicy{AllowedOrigins: []string{"https://barista.example.com"}, MaxAge: time.Hour}},
		{name: "wildcard", policy: CorsPolicy{AllowedOrigins: []string{"*"}}},
		{name: "credentials with explicit origin", policy: CorsPolicy{AllowedOrigins: []string{"http://localhost:3000"}, AllowCredentials: true}},
		{name: "no origins", policy: CorsPolicy{}, wantErr: true},
		{name: "wildcard with credentials", policy: CorsPolicy{AllowedOrigins: []string{"*"}, AllowCredentials: true}, wantErr: true},
		{name: "missing scheme", policy: CorsPolicy{AllowedOrigins: []string{"barista.example.com"}}, wantErr: true},
		{name: "negative max age", policy: CorsPolicy{AllowedOrigins: []string{"https://a.example.com"}, MaxAge: -time.Second}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.policy.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCorsPolicy_MaxAgeSeconds(t *testing.T) {
	t.Parallel()

	p := CorsPolicy{MaxAge: 90*time.Second + 500*time.Millisecond}
	if got := p.MaxAgeSeconds(); got != 90 {
		t.Errorf("MaxAgeSeconds() = %d, want 90", got)
	}
}
