/*
 * Email Extractor - Job Store
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	_ "modernc.org/sqlite"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotPending = errors.New("job is already processing or finished")
	ErrNoSites       = errors.New("job has no sites")

	errStaleBatch = errors.New("job advanced by another worker")
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

func (st JobStatus) active() bool {
	return st == JobPending || st == JobProcessing
}

// Job is a persisted batch of sites worked through a few at a time.
type Job struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Status          JobStatus  `json:"status"`
	TotalURLs       int        `json:"total_urls"`
	ProcessedURLs   int        `json:"processed_urls"`
	CurrentBatch    int        `json:"current_batch"`
	EmailsFound     int        `json:"emails_found"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
}

// BatchOutcome reports what one ProcessBatch tick did to a job.
type BatchOutcome struct {
	JobID       string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	Processed   int       `json:"processed_in_batch"`
	EmailsFound int       `json:"emails_found"`
	Error       string    `json:"error,omitempty"`
}

// BatchSummary is the result of one ProcessBatch call.
type BatchSummary struct {
	Processed int            `json:"processed"`
	Results   []BatchOutcome `json:"results"`
}

// BatchRunner runs a slice of sites; *Runner satisfies it.
type BatchRunner interface {
	Run(ctx context.Context, inputs []string, onProgress func(Progress)) []ResultRow
}

// JobStore persists jobs in SQLite and advances them batch by batch.
type JobStore struct {
	db          *sql.DB
	runner      BatchRunner
	batchSize   int
	jobsPerTick int
	logger      *log.Logger
	now         func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool
}

const jobSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	status            TEXT NOT NULL,
	total_urls        INTEGER NOT NULL,
	processed_urls    INTEGER NOT NULL DEFAULT 0,
	current_batch     INTEGER NOT NULL DEFAULT 0,
	emails_found      INTEGER NOT NULL DEFAULT 0,
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL,
	last_processed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, last_processed_at);

CREATE TABLE IF NOT EXISTS job_sites (
	job_id   TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	site     TEXT NOT NULL,
	PRIMARY KEY (job_id, position)
);

CREATE TABLE IF NOT EXISTS job_results (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	site   TEXT NOT NULL,
	email  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_results_job ON job_results(job_id, id);
`

// OpenJobDB opens the SQLite database with the standard pragmas. The pool is
// held to one connection so per-connection pragmas always apply and
// ":memory:" stays a single database.
func OpenJobDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := EnsureDirectory(filepath.Dir(path)); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// NewJobStore creates the schema if needed and returns a store.
func NewJobStore(db *sql.DB, runner BatchRunner, batchSize, jobsPerTick int, logger *log.Logger) (*JobStore, error) {
	if _, err := db.Exec(jobSchema); err != nil {
		return nil, fmt.Errorf("failed to create job schema: %w", err)
	}
	if batchSize < 1 {
		batchSize = 1
	}
	if jobsPerTick < 1 {
		jobsPerTick = 1
	}
	return &JobStore{
		db:          db,
		runner:      runner,
		batchSize:   batchSize,
		jobsPerTick: jobsPerTick,
		logger:      logger,
		now:         time.Now,
		inFlight:    make(map[string]bool),
	}, nil
}

// CreateJob stores a new pending job. Blank sites keep their position and
// are skipped when processed.
func (s *JobStore) CreateJob(ctx context.Context, name string, sites []string) (Job, error) {
	nonBlank := 0
	for _, site := range sites {
		if strings.TrimSpace(site) != "" {
			nonBlank++
		}
	}
	if nonBlank == 0 {
		return Job{}, ErrNoSites
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	job := Job{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Status:    JobPending,
		TotalURLs: len(sites),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if job.Name == "" {
		job.Name = "Job " + now.Format("2006-01-02 15:04")
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (id, name, status, total_urls, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			job.ID, job.Name, string(job.Status), job.TotalURLs, now.UnixMilli(), now.UnixMilli()); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO job_sites (job_id, position, site) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, site := range sites {
			if _, err := stmt.ExecContext(ctx, job.ID, i, strings.TrimSpace(site)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Job{}, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info().Str("job", job.ID).Str("name", job.Name).Int("sites", job.TotalURLs).Msg("job created")
	return job, nil
}

const jobColumns = `id, name, status, total_urls, processed_urls, current_batch, emails_found, created_at, updated_at, last_processed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var job Job
	var status string
	var created, updated int64
	var lastProcessed sql.NullInt64
	err := row.Scan(&job.ID, &job.Name, &status, &job.TotalURLs, &job.ProcessedURLs,
		&job.CurrentBatch, &job.EmailsFound, &created, &updated, &lastProcessed)
	if err != nil {
		return Job{}, err
	}
	job.Status = JobStatus(status)
	job.CreatedAt = time.UnixMilli(created).UTC()
	job.UpdatedAt = time.UnixMilli(updated).UTC()
	if lastProcessed.Valid {
		t := time.UnixMilli(lastProcessed.Int64).UTC()
		job.LastProcessedAt = &t
	}
	return job, nil
}

// GetJob returns a job by id.
func (s *JobStore) GetJob(ctx context.Context, id string) (Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	return job, nil
}

// ListJobs returns every job, newest first.
func (s *JobStore) ListJobs(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteJob removes a job with its sites and results.
func (s *JobStore) DeleteJob(ctx context.Context, id string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrJobNotFound
		}
		// explicit, in case the connection runs without foreign_keys
		if _, err := tx.ExecContext(ctx, `DELETE FROM job_results WHERE job_id = ?`, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM job_sites WHERE job_id = ?`, id)
		return err
	})
	if errors.Is(err, ErrJobNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	s.logger.Info().Str("job", id).Msg("job deleted")
	return nil
}

// Results returns the stored rows of a job in the order they were produced.
func (s *JobStore) Results(ctx context.Context, id string) ([]ResultRow, error) {
	if _, err := s.GetJob(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT site, email FROM job_results WHERE job_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load results for job %s: %w", id, err)
	}
	defer rows.Close()

	results := []ResultRow{}
	for rows.Next() {
		var r ResultRow
		if err := rows.Scan(&r.Site, &r.Email); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ProcessBatch advances up to jobsPerTick pending or processing jobs, least
// recently processed first, by one batch of sites each.
func (s *JobStore) ProcessBatch(ctx context.Context) (BatchSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status IN (?, ?)
		 ORDER BY last_processed_at ASC, created_at ASC LIMIT ?`,
		string(JobPending), string(JobProcessing), s.jobsPerTick)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("failed to select jobs: %w", err)
	}
	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return BatchSummary{}, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return BatchSummary{}, fmt.Errorf("failed to select jobs: %w", err)
	}

	summary := BatchSummary{Results: []BatchOutcome{}}
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		if !s.claim(job.ID) {
			continue
		}
		current, err := s.GetJob(ctx, job.ID)
		if err != nil || !current.Status.active() || current.CurrentBatch != job.CurrentBatch {
			s.release(job.ID)
			continue
		}
		outcome := s.advance(ctx, current)
		s.release(job.ID)
		summary.Results = append(summary.Results, outcome)
	}
	summary.Processed = len(summary.Results)
	return summary, ctx.Err()
}

// ProcessJob runs a pending job to completion.
func (s *JobStore) ProcessJob(ctx context.Context, id string) (Job, error) {
	if !s.claim(id) {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			return Job{}, err
		}
		return job, ErrJobNotPending
	}
	defer s.release(id)

	job, err := s.GetJob(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if job.Status != JobPending {
		return job, ErrJobNotPending
	}

	for {
		outcome := s.advance(ctx, job)
		if outcome.Status != JobProcessing || ctx.Err() != nil {
			break
		}
		if job, err = s.GetJob(ctx, id); err != nil {
			return Job{}, err
		}
	}
	return s.GetJob(context.WithoutCancel(ctx), id)
}

// advance runs the next batch of a job and persists its rows and counters.
func (s *JobStore) advance(ctx context.Context, job Job) BatchOutcome {
	outcome := BatchOutcome{JobID: job.ID, Status: job.Status}

	start := job.CurrentBatch * s.batchSize
	sites, err := s.jobSites(ctx, job.ID, start, s.batchSize)
	if err != nil {
		return s.fail(job, outcome, err)
	}
	if len(sites) == 0 {
		if err := s.setStatus(ctx, job.ID, JobCompleted); err != nil {
			return s.fail(job, outcome, err)
		}
		outcome.Status = JobCompleted
		return outcome
	}

	if job.Status == JobPending {
		if err := s.setStatus(ctx, job.ID, JobProcessing); err != nil {
			return s.fail(job, outcome, err)
		}
	}

	rows := s.runner.Run(ctx, sites, nil)
	if err := ctx.Err(); err != nil {
		// partial batch is discarded and retried on the next tick
		outcome.Status = JobProcessing
		outcome.Error = err.Error()
		return outcome
	}

	emails := 0
	for _, r := range rows {
		if r.Email != "" {
			emails++
		}
	}

	status := JobProcessing
	if start+len(sites) >= job.TotalURLs {
		status = JobCompleted
	}

	now := s.now().UTC().UnixMilli()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO job_results (job_id, site, email) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, job.ID, r.Site, r.Email); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, processed_urls = processed_urls + ?, current_batch = current_batch + 1,
			 emails_found = emails_found + ?, last_processed_at = ?, updated_at = ?
			 WHERE id = ? AND current_batch = ? AND status IN (?, ?)`,
			string(status), len(sites), emails, now, now,
			job.ID, job.CurrentBatch, string(JobPending), string(JobProcessing))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return errStaleBatch
		}
		return nil
	})
	if errors.Is(err, errStaleBatch) {
		s.logger.Warn().Str("job", job.ID).Int("batch", job.CurrentBatch).Msg("batch already stored, discarding rows")
		if current, err := s.GetJob(context.WithoutCancel(ctx), job.ID); err == nil {
			outcome.Status = current.Status
		}
		outcome.Error = err.Error()
		return outcome
	}
	if err != nil {
		return s.fail(job, outcome, err)
	}

	s.logger.Info().Str("job", job.ID).Int("batch", job.CurrentBatch).Int("sites", len(sites)).
		Int("emails", emails).Str("status", string(status)).Msg("job batch processed")

	outcome.Status = status
	outcome.Processed = len(sites)
	outcome.EmailsFound = emails
	return outcome
}

func (s *JobStore) fail(job Job, outcome BatchOutcome, cause error) BatchOutcome {
	s.logger.Error().Str("job", job.ID).Err(cause).Msg("job batch failed")
	if err := s.setStatus(context.Background(), job.ID, JobFailed); err != nil {
		s.logger.Error().Str("job", job.ID).Err(err).Msg("failed to mark job as failed")
	}
	outcome.Status = JobFailed
	outcome.Error = cause.Error()
	return outcome
}

func (s *JobStore) jobSites(ctx context.Context, id string, offset, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT site FROM job_sites WHERE job_id = ? AND position >= ? ORDER BY position LIMIT ?`,
		id, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (s *JobStore) setStatus(ctx context.Context, id string, status JobStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), s.now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to set job %s to %s: %w", id, status, err)
	}
	return nil
}

func (s *JobStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// claim marks a job as being worked on by this process.
func (s *JobStore) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[id] {
		return false
	}
	s.inFlight[id] = true
	return true
}

func (s *JobStore) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

// Close closes the underlying database.
func (s *JobStore) Close() error {
	return s.db.Close()
}
