package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLocalOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:5173", true},
		{"http://127.0.0.1:3000", true},
		{"http://[::1]:8080", true},
		{"http://localhost", true},
		{"http://127.0.0.1", true},
		{"https://evil.example.com", false},
		{"http://localhost.evil.com", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, isLocalOrigin(tt.origin))
		})
	}
}
