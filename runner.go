/*
 * Email Extractor - Batch Runner
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"
)

// ResultRow is one output line. Email is empty for a site with no findings.
type ResultRow struct {
	Site  string `json:"site"`
	Email string `json:"email"`
}

// Progress is reported after every input entry.
type Progress struct {
	Processed int
	Total     int
	Emails    int
	Remaining time.Duration
}

// Discoverer produces the cleaned result for a single site.
type Discoverer interface {
	Discover(ctx context.Context, site string) SiteResult
}

// Runner drives a batch of sites through a Discoverer.
type Runner struct {
	discoverer Discoverer
	workers    int
	logger     *log.Logger
	now        func() time.Time
}

// NewRunner returns a runner; workers below 2 means strictly sequential.
func NewRunner(discoverer Discoverer, workers int, logger *log.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{discoverer: discoverer, workers: workers, logger: logger, now: time.Now}
}

// Run processes inputs and returns rows in input order: one row per email,
// or a single empty-email row for a site without any. Blank entries are
// skipped but still count toward Processed. onProgress may be nil.
func (r *Runner) Run(ctx context.Context, inputs []string, onProgress func(Progress)) []ResultRow {
	perSite := make([][]ResultRow, len(inputs))
	start := r.now()

	var mu sync.Mutex
	processed, emails := 0, 0
	report := func(found int) {
		mu.Lock()
		defer mu.Unlock()
		processed++
		emails += found
		if onProgress == nil {
			return
		}
		onProgress(Progress{
			Processed: processed,
			Total:     len(inputs),
			Emails:    emails,
			Remaining: estimateRemaining(r.now().Sub(start), processed, len(inputs)),
		})
	}

	process := func(i int) {
		site := strings.TrimSpace(inputs[i])
		if site == "" {
			report(0)
			return
		}
		if ctx.Err() != nil {
			return
		}
		res := r.discoverer.Discover(ctx, site)
		perSite[i] = rowsFor(inputs[i], res.Emails)
		report(len(res.Emails))
	}

	if r.workers <= 1 {
		for i := range inputs {
			if ctx.Err() != nil {
				r.logger.Warn().Int("processed", processed).Int("total", len(inputs)).Msg("batch cancelled")
				break
			}
			process(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(r.workers)
		for i := range inputs {
			g.Go(func() error {
				process(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	rows := make([]ResultRow, 0, len(inputs))
	for _, siteRows := range perSite {
		rows = append(rows, siteRows...)
	}
	return rows
}

func rowsFor(site string, emails []string) []ResultRow {
	if len(emails) == 0 {
		return []ResultRow{{Site: site}}
	}
	rows := make([]ResultRow, 0, len(emails))
	for _, e := range emails {
		rows = append(rows, ResultRow{Site: site, Email: e})
	}
	return rows
}

// estimateRemaining projects the time left from the average time per entry so far.
func estimateRemaining(elapsed time.Duration, processed, total int) time.Duration {
	if processed <= 0 {
		return 0
	}
	projected := time.Duration(float64(elapsed) / float64(processed) * float64(total))
	if remaining := projected - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}
