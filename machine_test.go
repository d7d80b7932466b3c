package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTuneConfig(t *testing.T) {
	base := DefaultConfig()

	tests := []struct {
		name        string
		perf        SystemPerformance
		wantWorkers int
		wantRate    float64
	}{
		{
			name:        "roomy machine on a fast link",
			perf:        SystemPerformance{CPUCores: 4, CPUUsage: 50, AvailableMemoryMB: 8000, NetworkSpeed: 100, NetworkLatency: 10 * time.Millisecond},
			wantWorkers: 8,
			wantRate:    200,
		},
		{
			name:        "busy small machine on a slow link",
			perf:        SystemPerformance{CPUCores: 1, CPUUsage: 90, AvailableMemoryMB: 10, NetworkSpeed: 10, NetworkLatency: 300 * time.Millisecond},
			wantWorkers: 2,
			wantRate:    60,
		},
		{
			name:        "idle many-core machine",
			perf:        SystemPerformance{CPUCores: 64, CPUUsage: 5, AvailableMemoryMB: 64000, NetworkSpeed: 0.5, NetworkLatency: 100 * time.Millisecond},
			wantWorkers: 64,
			wantRate:    10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tuned := TuneConfig(base, &tt.perf)
			assert.Equal(t, tt.wantWorkers, tuned.Workers)
			assert.InDelta(t, tt.wantRate, tuned.RateLimitPerSecond, 0.001)
			assert.Equal(t, base.Timeout, tuned.Timeout)
		})
	}
}
