package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/drinks-api/internal/request"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		handlerStatus int
		writeBody     bool
	}{
		{name: "GET request", method: "GET", path: "/drinks", handlerStatus: http.StatusOK},
		{name: "POST request", method: "POST", path: "/drinks", handlerStatus: http.StatusOK, writeBody: true},
		{name: "404 request", method: "GET", path: "/notfound", handlerStatus: http.StatusNotFound},
		{name: "implicit 200", method: "GET", path: "/healthz", handlerStatus: 0, writeBody: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.handlerStatus != 0 {
					w.WriteHeader(tt.handlerStatus)
				}
				if tt.writeBody {
					_, _ = w.Write([]byte("{}"))
				}
			})

			core, logs := observer.New(zap.InfoLevel)
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			Logging(zap.New(core))(handler).ServeHTTP(w, req)

			want := tt.handlerStatus
			if want == 0 {
				want = http.StatusOK
			}
			if w.Code != want {
				t.Errorf("Expected status %d, got %d", want, w.Code)
			}

			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("Expected one http_request entry, got %d", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["status_code"] != int64(want) {
				t.Errorf("Expected logged status_code %d, got %v", want, fields["status_code"])
			}
			if fields["path"] != tt.path {
				t.Errorf("Expected logged path %q, got %v", tt.path, fields["path"])
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	existing := uuid.NewString()

	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{name: "generated", incoming: ""},
		{name: "reused", incoming: existing, reuse: true},
		{name: "malformed replaced", incoming: "not-a-uuid\r\ninjected"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = request.ID(r)
			})

			req := httptest.NewRequest("GET", "/drinks", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()
			RequestID(handler).ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			if got == "" || got != seen {
				t.Fatalf("header %q and context %q should match and be non-empty", got, seen)
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Errorf("request id %q is not a UUID", got)
			}
			if tt.reuse && got != tt.incoming {
				t.Errorf("Expected request id %q to be reused, got %q", tt.incoming, got)
			}
			if !tt.reuse && got == tt.incoming {
				t.Errorf("Expected a fresh request id, got %q", got)
			}
		})
	}
}
