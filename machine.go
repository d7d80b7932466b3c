/*
 * Email Extractor - Performance Optimization Module
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	psnet "github.com/shirou/gopsutil/net"
	"github.com/showwin/speedtest-go/speedtest"
)

// SystemPerformance represents system performance metrics
type SystemPerformance struct {
	CPUCores           int
	CPUUsage           float64
	TotalMemoryMB      uint64
	AvailableMemoryMB  uint64
	MemoryUsagePercent float64
	NetworkSpeed       float64 // Mbps (estimated)
	NetworkLatency     time.Duration
}

// OptimizeConfig measures the machine and returns a copy of config with the
// worker count and request rate tuned to it. The page timeout is left alone.
func OptimizeConfig(ctx context.Context, config Config) (Config, *SystemPerformance, error) {
	perf, err := AnalyzeSystemPerformance(ctx, config.NetworkProbe)
	if err != nil {
		return config, nil, fmt.Errorf("failed to analyze system performance: %w", err)
	}
	return TuneConfig(config, perf), perf, nil
}

// TuneConfig applies measured performance to config.
func TuneConfig(config Config, perf *SystemPerformance) Config {
	tuned := config
	tuned.Workers = calculateOptimalWorkers(perf)
	tuned.RateLimitPerSecond = calculateOptimalRateLimit(perf)
	return tuned
}

// AnalyzeSystemPerformance analyzes CPU, memory, and network performance
func AnalyzeSystemPerformance(ctx context.Context, probe string) (*SystemPerformance, error) {
	perf := &SystemPerformance{}

	// Get CPU information
	cores, err := cpu.Counts(false)
	if err != nil || cores == 0 {
		cores = runtime.NumCPU() // Fallback to runtime
	}
	perf.CPUCores = cores

	// Get current CPU usage (average over 1 second)
	cpuPercent, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err == nil && len(cpuPercent) > 0 {
		perf.CPUUsage = cpuPercent[0]
	}

	// Get memory information
	vmStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory info: %w", err)
	}
	perf.TotalMemoryMB = vmStat.Total / 1024 / 1024
	perf.AvailableMemoryMB = vmStat.Available / 1024 / 1024
	perf.MemoryUsagePercent = vmStat.UsedPercent

	latency := probeLatency(ctx, probe)
	perf.NetworkLatency = latency
	perf.NetworkSpeed = estimateNetworkSpeed(latency)

	return perf, nil
}

// probeLatency measures round trip time with a TCP dial, or with a ping
// against the nearest speedtest.net server when probe is "speedtest".
func probeLatency(ctx context.Context, probe string) time.Duration {
	if probe == "speedtest" {
		if latency, err := speedtestLatency(); err == nil && latency > 0 {
			return latency
		}
	}

	dialer := net.Dialer{Timeout: 3 * time.Second}
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", "8.8.8.8:53")
	if err != nil {
		return 100 * time.Millisecond // Default fallback
	}
	conn.Close()
	return time.Since(start)
}

func speedtestLatency() (time.Duration, error) {
	client := speedtest.New()
	servers, err := client.FetchServers()
	if err != nil {
		return 0, fmt.Errorf("failed to fetch speedtest servers: %w", err)
	}
	targets, err := servers.FindServer(nil)
	if err != nil || len(targets) == 0 {
		return 0, fmt.Errorf("no speedtest server available: %v", err)
	}
	if err := targets[0].PingTest(nil); err != nil {
		return 0, fmt.Errorf("speedtest ping failed: %w", err)
	}
	return targets[0].Latency, nil
}

// estimateNetworkSpeed guesses link speed from the active interface name
// and adjusts it by latency. It is a rough heuristic, not a bandwidth test.
func estimateNetworkSpeed(latency time.Duration) float64 {
	speedMbps := 0.0
	interfaces, err := psnet.Interfaces()
	if err == nil {
		for _, iface := range interfaces {
			name := strings.ToLower(iface.Name)
			if name == "lo" || strings.Contains(name, "loopback") || len(iface.Addrs) == 0 {
				continue
			}
			switch {
			case strings.Contains(name, "eth") || strings.HasPrefix(name, "en"):
				speedMbps = 100.0 // Conservative estimate for Ethernet
			case strings.Contains(name, "wlan") || strings.Contains(name, "wifi") || strings.Contains(name, "wireless"):
				speedMbps = 20.0 // Conservative estimate for WiFi
			default:
				speedMbps = 10.0
			}
			break
		}
	}
	if speedMbps == 0 {
		speedMbps = 10.0
	}

	if latency < 20*time.Millisecond {
		speedMbps *= 1.5
	} else if latency > 200*time.Millisecond {
		speedMbps *= 0.5
	}
	return speedMbps
}

// calculateOptimalWorkers picks how many sites to work on at once. Each
// site fetches its pages one by one, so workers are mostly waiting on I/O.
func calculateOptimalWorkers(perf *SystemPerformance) int {
	workers := perf.CPUCores * 2

	// ~10MB per in-flight site (page bodies plus parsed DOM)
	if maxMemoryBased := int(perf.AvailableMemoryMB / 10); maxMemoryBased < workers {
		workers = maxMemoryBased
	}

	if perf.CPUUsage > 80 {
		workers = int(float64(workers) * 0.7)
	} else if perf.CPUUsage < 20 {
		workers = int(float64(workers) * 1.3)
	}

	if workers < 2 {
		workers = 2
	}
	if workers > 64 {
		workers = 64
	}
	return workers
}

// calculateOptimalRateLimit calculates optimal rate limit based on network speed
func calculateOptimalRateLimit(perf *SystemPerformance) float64 {
	// Assume each request is ~10KB, so 1 Mbps = ~12 requests/sec
	baseRate := perf.NetworkSpeed * 12

	if perf.NetworkLatency > 200*time.Millisecond {
		baseRate *= 0.5
	} else if perf.NetworkLatency < 50*time.Millisecond {
		baseRate *= 1.5
	}

	if baseRate < 10 {
		baseRate = 10
	}
	if baseRate > 200 {
		baseRate = 200
	}
	return baseRate
}
