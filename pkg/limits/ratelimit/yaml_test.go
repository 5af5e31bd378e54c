package ratelimit

import (
	"errors"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestConfig_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want Config
	}{
		{"empty mapping", `{}`, DefaultSlidingWindowLogConfig()},
		{"kind only", `kind: sliding_window_log`, DefaultSlidingWindowLogConfig()},
		{"partial", "kind: sliding_window_log\nmax_requests: 5", SlidingWindowLogConfig(time.Minute, 5)},
		{"no kind with window", "window: 10s", SlidingWindowLogConfig(10*time.Second, DefaultSlidingWindowLogMaxRequests)},
		{"drop rejected kept", "drop_rejected: true", Config{Kind: KindSlidingWindowLog, Window: time.Minute, MaxRequests: 100, DropRejected: true}},
		{"fixed window untouched", "kind: fixed_window\nwindow: 1s", Config{Kind: KindFixedWindow, Window: time.Second}},
		{"leaky bucket untouched", "kind: leaky_bucket\ncapacity: 3\nleak_rate: 0.5", LeakyBucketConfig(3, 0.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Config
			if err := yaml.Unmarshal([]byte(tt.doc), &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestConfig_UnmarshalYAMLExplicitZero(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"zero max requests", "kind: sliding_window_log\nmax_requests: 0", "max_requests"},
		{"zero window", "kind: sliding_window_log\nwindow: 0s", "window"},
		{"zero without kind", "max_requests: 0", "max_requests"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			if err := yaml.Unmarshal([]byte(tt.doc), &cfg); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}

			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) || ce.Field != tt.field {
				t.Errorf("expected error on %s, got %v", tt.field, err)
			}
		})
	}
}
