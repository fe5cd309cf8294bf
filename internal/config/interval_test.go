package config

import (
	"testing"
	"time"
)

func TestIntervalDecode(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"milliseconds pass through", "60000", time.Minute},
		{"exactly one thousand is milliseconds", "1000", time.Second},
		{"small value treated as seconds", "30", 30 * time.Second},
		{"boundary below one thousand is seconds", "999", 999 * time.Second},
		{"one second", "1", time.Second},
		{"zero decodes to unset", "0", 0},
		{"negative decodes to unset", "-500", 0},
		{"garbage decodes to unset", "five-minutes", 0},
		{"empty decodes to unset", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var i Interval
			if err := i.Decode(tt.value); err != nil {
				t.Fatalf("Decode(%q) returned error: %v", tt.value, err)
			}
			if time.Duration(i) != tt.want {
				t.Errorf("Decode(%q) = %v, want %v", tt.value, time.Duration(i), tt.want)
			}
		})
	}
}

func TestIntervalOr(t *testing.T) {
	var unset Interval
	if got := unset.Or(5 * time.Minute); got != 5*time.Minute {
		t.Errorf("unset Or(5m) = %v, want 5m", got)
	}

	set := Interval(90 * time.Second)
	if got := set.Or(5 * time.Minute); got != 90*time.Second {
		t.Errorf("set Or(5m) = %v, want 90s", got)
	}
}
