package models

import (
	"testing"
	"time"
)

func TestChannelConfig_Delay(t *testing.T) {
	tests := []struct {
		seconds int64
		want    time.Duration
	}{
		{0, 0},
		{60, time.Minute},
		{43200, 12 * time.Hour},
		{2592000, 720 * time.Hour},
	}
	for _, tt := range tests {
		cfg := ChannelConfig{DelaySeconds: tt.seconds}
		if got := cfg.Delay(); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}
