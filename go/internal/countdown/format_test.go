package countdown

import (
	"testing"
	"time"
)

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		name      string
		remaining time.Duration
		want      string
	}{
		{"negative", -3 * time.Second, TextExpired},
		{"barely negative", -time.Millisecond, TextExpired},
		{"sub second", 400 * time.Millisecond, TextExpiringSoon},
		{"zero", 0, TextExpiringSoon},
		{"seconds only", 42 * time.Second, "42s"},
		{"minutes carry seconds", 3 * time.Minute, "3m 0s"},
		{"hours carry zero minutes", 2*time.Hour + 5*time.Second, "2h 0m 5s"},
		{"full compound", 26*time.Hour + 3*time.Minute + 4*time.Second, "1d 2h 3m 4s"},
		{"days with zero middle units", 48 * time.Hour, "2d 0h 0m 0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatRemaining(tt.remaining); got != tt.want {
				t.Errorf("FormatRemaining(%v) = %q, want %q", tt.remaining, got, tt.want)
			}
		})
	}
}
