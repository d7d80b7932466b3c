package main

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBatchRunner answers every site with info@<site>, except sites
// starting with "quiet" which get an empty row.
type stubBatchRunner struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *stubBatchRunner) Run(ctx context.Context, inputs []string, _ func(Progress)) []ResultRow {
	r.mu.Lock()
	r.batches = append(r.batches, append([]string(nil), inputs...))
	r.mu.Unlock()

	var rows []ResultRow
	for _, site := range inputs {
		switch {
		case site == "":
		case strings.HasPrefix(site, "quiet"):
			rows = append(rows, ResultRow{Site: site})
		default:
			rows = append(rows, ResultRow{Site: site, Email: "info@" + site})
		}
	}
	return rows
}

func newTestJobStore(t *testing.T, batchSize, jobsPerTick int) (*JobStore, *stubBatchRunner) {
	t.Helper()
	db, err := OpenJobDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runner := &stubBatchRunner{}
	store, err := NewJobStore(db, runner, batchSize, jobsPerTick, testLogger())
	require.NoError(t, err)

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return store, runner
}

func TestJobStoreCreateAndGet(t *testing.T) {
	store, _ := newTestJobStore(t, 5, 3)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, "  Leads ", []string{"a.com", "", "b.com"})
	require.NoError(t, err)
	assert.Equal(t, "Leads", job.Name)
	assert.Equal(t, JobPending, job.Status)
	assert.Equal(t, 3, job.TotalURLs)

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job, got)

	jobs, err := store.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
}

func TestJobStoreRejectsEmptyJobs(t *testing.T) {
	store, _ := newTestJobStore(t, 5, 3)
	_, err := store.CreateJob(context.Background(), "empty", []string{"", "  "})
	assert.ErrorIs(t, err, ErrNoSites)
}

func TestJobStoreUnknownJob(t *testing.T) {
	store, _ := newTestJobStore(t, 5, 3)
	ctx := context.Background()

	_, err := store.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, store.DeleteJob(ctx, "missing"), ErrJobNotFound)
	_, err = store.Results(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestProcessBatchAdvancesJobInBatches(t *testing.T) {
	store, runner := newTestJobStore(t, 5, 3)
	ctx := context.Background()

	sites := []string{"s1.com", "s2.com", "quiet3.com", "s4.com", "s5.com", "s6.com", "s7.com"}
	job, err := store.CreateJob(ctx, "seven", sites)
	require.NoError(t, err)

	summary, err := store.ProcessBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)
	assert.Equal(t, BatchOutcome{JobID: job.ID, Status: JobProcessing, Processed: 5, EmailsFound: 4}, summary.Results[0])

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobProcessing, got.Status)
	assert.Equal(t, 5, got.ProcessedURLs)
	assert.Equal(t, 1, got.CurrentBatch)
	assert.NotNil(t, got.LastProcessedAt)

	summary, err = store.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, summary.Results[0].Status)
	assert.Equal(t, 2, summary.Results[0].Processed)

	summary, err = store.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)

	assert.Equal(t, [][]string{sites[:5], sites[5:]}, runner.batches)

	got, err = store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, got.Status)
	assert.Equal(t, 7, got.ProcessedURLs)
	assert.Equal(t, 6, got.EmailsFound)

	rows, err := store.Results(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, ResultRow{Site: "s1.com", Email: "info@s1.com"}, rows[0])
	assert.Equal(t, ResultRow{Site: "quiet3.com"}, rows[2])
	assert.Equal(t, ResultRow{Site: "s7.com", Email: "info@s7.com"}, rows[6])
}

func TestProcessBatchServesLeastRecentlyProcessedFirst(t *testing.T) {
	store, _ := newTestJobStore(t, 1, 2)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"first", "second", "third"} {
		job, err := store.CreateJob(ctx, name, []string{name + "-a.com", name + "-b.com"})
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	summary, err := store.ProcessBatch(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, ids[0], summary.Results[0].JobID)
	assert.Equal(t, ids[1], summary.Results[1].JobID)

	// third has never been processed, so it goes ahead of the others
	summary, err = store.ProcessBatch(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, ids[2], summary.Results[0].JobID)
	assert.Equal(t, ids[0], summary.Results[1].JobID)
}

func TestProcessJobRunsToCompletion(t *testing.T) {
	store, _ := newTestJobStore(t, 2, 3)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, "all", []string{"a.com", "b.com", "c.com"})
	require.NoError(t, err)

	done, err := store.ProcessJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, done.Status)
	assert.Equal(t, 3, done.ProcessedURLs)
	assert.Equal(t, 2, done.CurrentBatch)

	_, err = store.ProcessJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotPending)
}

func TestDeleteJobRemovesResults(t *testing.T) {
	store, _ := newTestJobStore(t, 5, 3)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, "gone", []string{"a.com"})
	require.NoError(t, err)
	_, err = store.ProcessBatch(ctx)
	require.NoError(t, err)

	require.NoError(t, store.DeleteJob(ctx, job.ID))

	_, err = store.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	var orphans int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM job_results WHERE job_id = ?`, job.ID).Scan(&orphans))
	assert.Zero(t, orphans)
}

// gatedRunner holds any batch containing block until gate is closed.
type gatedRunner struct {
	stubBatchRunner
	block   string
	entered chan struct{}
	gate    chan struct{}
}

func (r *gatedRunner) Run(ctx context.Context, inputs []string, onProgress func(Progress)) []ResultRow {
	for _, site := range inputs {
		if site == r.block {
			close(r.entered)
			<-r.gate
		}
	}
	return r.stubBatchRunner.Run(ctx, inputs, onProgress)
}

func TestProcessBatchSkipsJobFinishedMeanwhile(t *testing.T) {
	store, _ := newTestJobStore(t, 5, 2)
	runner := &gatedRunner{block: "a.com", entered: make(chan struct{}), gate: make(chan struct{})}
	store.runner = runner
	ctx := context.Background()

	jobA, err := store.CreateJob(ctx, "a", []string{"a.com"})
	require.NoError(t, err)
	jobB, err := store.CreateJob(ctx, "b", []string{"b.com"})
	require.NoError(t, err)

	type batchResult struct {
		summary BatchSummary
		err     error
	}
	batchDone := make(chan batchResult, 1)
	go func() {
		summary, err := store.ProcessBatch(ctx)
		batchDone <- batchResult{summary, err}
	}()
	<-runner.entered

	done, err := store.ProcessJob(ctx, jobB.ID)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, done.Status)

	close(runner.gate)
	res := <-batchDone
	require.NoError(t, res.err)
	require.Len(t, res.summary.Results, 1)
	assert.Equal(t, jobA.ID, res.summary.Results[0].JobID)

	rows, err := store.Results(ctx, jobB.ID)
	require.NoError(t, err)
	assert.Equal(t, []ResultRow{{Site: "b.com", Email: "info@b.com"}}, rows)

	got, err := store.GetJob(ctx, jobB.ID)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, got.Status)
	assert.Equal(t, 1, got.ProcessedURLs)
	assert.Equal(t, 1, got.CurrentBatch)
}

func TestAdvanceDiscardsStaleBatch(t *testing.T) {
	store, _ := newTestJobStore(t, 1, 1)
	ctx := context.Background()

	snapshot, err := store.CreateJob(ctx, "two", []string{"a.com", "b.com"})
	require.NoError(t, err)
	_, err = store.ProcessBatch(ctx)
	require.NoError(t, err)

	outcome := store.advance(ctx, snapshot)
	assert.Equal(t, errStaleBatch.Error(), outcome.Error)
	assert.Equal(t, JobProcessing, outcome.Status)
	assert.Zero(t, outcome.Processed)

	got, err := store.GetJob(ctx, snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, JobProcessing, got.Status)
	assert.Equal(t, 1, got.ProcessedURLs)
	assert.Equal(t, 1, got.CurrentBatch)

	rows, err := store.Results(ctx, snapshot.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
