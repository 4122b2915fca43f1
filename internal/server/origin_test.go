package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckOrigin(t *testing.T) {
	const appURL = "https://chat.example.com"

	tests := []struct {
		name          string
		origin        string
		isDevelopment bool
		want          bool
	}{
		{"empty origin", "", false, true},
		{"app origin", "https://chat.example.com", false, true},
		{"app origin wrong scheme", "http://chat.example.com", false, false},
		{"foreign origin", "http://evil.example.com", false, false},
		{"foreign origin in development", "http://evil.example.com", true, false},
		{"localhost in development", "http://localhost:3000", true, true},
		{"loopback ip in development", "http://127.0.0.1:3000", true, true},
		{"localhost in production", "http://localhost:3000", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := newCheckOrigin(appURL, tt.isDevelopment)

			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}

			assert.Equal(t, tt.want, check(r))
		})
	}
}

func TestExtractOrigin(t *testing.T) {
	tests := []struct {
		rawURL string
		want   string
	}{
		{"https://chat.example.com", "https://chat.example.com"},
		{"https://chat.example.com/room", "https://chat.example.com"},
		{"http://localhost:8080", "http://localhost:8080"},
		{"", ""},
		{"not a url", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, extractOrigin(tt.rawURL), "url %q", tt.rawURL)
	}
}
