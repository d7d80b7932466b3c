/*
 * Email Extractor - Progress Display
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// ProgressBar renders Progress updates as a single, overwritten console line.
type ProgressBar struct {
	out        io.Writer
	width      int
	interval   time.Duration
	mu         sync.Mutex
	lastUpdate time.Time
	started    time.Time
	now        func() time.Time
}

// NewProgressBar writes to out, redrawing at most every interval.
func NewProgressBar(out io.Writer, interval time.Duration) *ProgressBar {
	return &ProgressBar{out: out, width: 30, interval: interval, now: time.Now, started: time.Now()}
}

// Update redraws the bar. The final update is always drawn.
func (p *ProgressBar) Update(pr Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Throttle progress updates to avoid excessive console writes
	now := p.now()
	if pr.Processed < pr.Total && now.Sub(p.lastUpdate) < p.interval {
		return
	}
	p.lastUpdate = now
	fmt.Fprint(p.out, "\r\033[2K"+p.render(pr, now.Sub(p.started)))
}

// Finish ends the progress line.
func (p *ProgressBar) Finish() {
	fmt.Fprintln(p.out)
}

func (p *ProgressBar) render(pr Progress, elapsed time.Duration) string {
	if pr.Total == 0 {
		return ""
	}
	percentage := float64(pr.Processed) * 100.0 / float64(pr.Total)
	filled := int(percentage / 100.0 * float64(p.width))
	if filled > p.width {
		filled = p.width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)

	rate := 0.0
	if elapsed > 0 {
		rate = float64(pr.Processed) / elapsed.Seconds()
	}

	return fmt.Sprintf("📊 [%s] %s | %d/%d sites | 📧 %s | ⚡ %.1f/s | ⏱️  ETA: %s",
		color.CyanString(bar),
		color.New(color.Bold).Sprintf("%.1f%%", percentage),
		pr.Processed, pr.Total,
		color.GreenString("%d emails", pr.Emails),
		rate,
		formatDuration(pr.Remaining))
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
