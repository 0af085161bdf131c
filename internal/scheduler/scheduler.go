// Package scheduler accepts pipeline jobs, validates them, and executes them
// on a bounded worker pool with durable status tracking.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/threadsight/threadsight/internal/metrics"
	"github.com/threadsight/threadsight/internal/models"
	"github.com/threadsight/threadsight/internal/pipeline"
)

// ErrJobNotFound is returned when a job ID is unknown.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueFull is returned when the submission queue is at capacity.
var ErrQueueFull = errors.New("job queue full")

const (
	queueCapacity = 128

	defaultMaxPosts       = 1000
	defaultMinClusterSize = 3

	minMaxPosts       = 10
	maxMaxPosts       = 5000
	minMinClusterSize = 2
	maxMinClusterSize = 50
)

// Options tunes scheduler behavior.
type Options struct {
	// Workers is the number of concurrent job executors.
	Workers int
	// SerializeSources takes a per-source lock so two runs for the same
	// source never overlap. When false, overlapping runs are allowed and
	// the later publication wins latest.
	SerializeSources bool
}

// Scheduler owns the job lifecycle: queued -> running -> completed|failed.
// Status transitions are monotonic; terminal jobs never change.
type Scheduler struct {
	pipe    *pipeline.Pipeline
	ledger  *Ledger
	metrics *metrics.Collector
	logger  *slog.Logger
	opts    Options

	mu   sync.RWMutex
	jobs map[string]*models.Job

	queue chan string

	sourceMu sync.Mutex
	sources  map[string]*sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

// New builds a scheduler and reloads job history from the ledger. Jobs that
// were queued or running when the previous process stopped are marked failed.
func New(pipe *pipeline.Pipeline, ledger *Ledger, collector *metrics.Collector, logger *slog.Logger, opts Options) (*Scheduler, error) {
	if opts.Workers < 1 {
		opts.Workers = 2
	}

	s := &Scheduler{
		pipe:    pipe,
		ledger:  ledger,
		metrics: collector,
		logger:  logger,
		opts:    opts,
		jobs:    make(map[string]*models.Job),
		queue:   make(chan string, queueCapacity),
		sources: make(map[string]*sync.Mutex),
		now:     func() time.Time { return time.Now().UTC() },
	}

	if err := s.reload(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) reload() error {
	jobs, err := s.ledger.List()
	if err != nil {
		return fmt.Errorf("reload job ledger: %w", err)
	}

	interrupted := 0
	for i := range jobs {
		job := jobs[i]
		if !job.Status.Terminal() {
			job.Status = models.JobFailed
			job.Error = "interrupted by service restart"
			now := s.now()
			job.CompletedAt = &now
			if err := s.ledger.Update(job); err != nil {
				return err
			}
			interrupted++
		}
		s.jobs[job.ID] = &job
	}

	if interrupted > 0 {
		s.logger.Warn("marked interrupted jobs failed", "count", interrupted)
	}
	s.logger.Info("job ledger loaded", "jobs", len(jobs))
	return nil
}

// Start launches the worker pool. Jobs submitted before Start sit queued.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("scheduler started",
		"workers", s.opts.Workers,
		"serialize_sources", s.opts.SerializeSources)
}

// Stop cancels in-flight jobs and waits for workers to exit or the context
// to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Submit validates a job configuration, applies defaults, and enqueues it.
func (s *Scheduler) Submit(cfg models.JobConfig) (models.Job, error) {
	normalized, err := normalizeConfig(cfg)
	if err != nil {
		return models.Job{}, err
	}

	job := models.Job{
		ID:        uuid.NewString(),
		Config:    normalized,
		Status:    models.JobQueued,
		CreatedAt: s.now(),
	}

	if err := s.ledger.Insert(job); err != nil {
		return models.Job{}, err
	}

	s.mu.Lock()
	stored := job
	s.jobs[job.ID] = &stored
	s.mu.Unlock()

	select {
	case s.queue <- job.ID:
	default:
		s.fail(job.ID, ErrQueueFull.Error())
		return models.Job{}, ErrQueueFull
	}

	s.logger.Info("job submitted",
		"job_id", job.ID,
		"source", normalized.Source,
		"mode", normalized.Mode)

	return job, nil
}

// Get returns a copy of the job with the given ID.
func (s *Scheduler) Get(id string) (models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return models.Job{}, fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}
	return *job, nil
}

// List returns all known jobs, newest first.
func (s *Scheduler) List() []models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Scheduler) worker(ctx context.Context, id int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-s.queue:
			s.execute(ctx, jobID)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, jobID string) {
	job, err := s.Get(jobID)
	if err != nil {
		s.logger.Error("queued job vanished", "job_id", jobID)
		return
	}

	if s.opts.SerializeSources {
		lock := s.sourceLock(job.Config.Source)
		lock.Lock()
		defer lock.Unlock()
	}

	s.markRunning(jobID)

	dir, err := s.pipe.Execute(ctx, job)
	if err != nil {
		s.fail(jobID, err.Error())
		s.metrics.JobFinished(string(models.JobFailed))
		s.logger.Error("job failed",
			"job_id", jobID,
			"source", job.Config.Source,
			"error", err)
		return
	}

	s.complete(jobID)
	s.metrics.JobFinished(string(models.JobCompleted))
	s.logger.Info("job completed",
		"job_id", jobID,
		"source", job.Config.Source,
		"directory", dir)
}

func (s *Scheduler) sourceLock(source string) *sync.Mutex {
	s.sourceMu.Lock()
	defer s.sourceMu.Unlock()

	lock, ok := s.sources[source]
	if !ok {
		lock = &sync.Mutex{}
		s.sources[source] = lock
	}
	return lock
}

func (s *Scheduler) markRunning(id string) {
	s.transition(id, func(job *models.Job) {
		job.Status = models.JobRunning
		now := s.now()
		job.StartedAt = &now
	})
}

func (s *Scheduler) complete(id string) {
	s.transition(id, func(job *models.Job) {
		job.Status = models.JobCompleted
		now := s.now()
		job.CompletedAt = &now
	})
}

func (s *Scheduler) fail(id, msg string) {
	s.transition(id, func(job *models.Job) {
		job.Status = models.JobFailed
		job.Error = msg
		now := s.now()
		job.CompletedAt = &now
	})
}

func (s *Scheduler) transition(id string, mutate func(*models.Job)) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	mutate(job)
	snapshot := *job
	s.mu.Unlock()

	if err := s.ledger.Update(snapshot); err != nil {
		s.logger.Error("ledger update failed",
			"job_id", id,
			"status", snapshot.Status,
			"error", err)
	}
}

// normalizeConfig applies defaults and validates the submitted configuration.
func normalizeConfig(cfg models.JobConfig) (models.JobConfig, error) {
	if cfg.Source == "" {
		return models.JobConfig{}, fmt.Errorf("source is required")
	}

	if cfg.Mode == "" {
		cfg.Mode = models.RunModeNew
	}
	switch cfg.Mode {
	case models.RunModeNew, models.RunModeUpdate:
	default:
		return models.JobConfig{}, fmt.Errorf("mode must be %q or %q", models.RunModeNew, models.RunModeUpdate)
	}

	if cfg.MaxPosts == 0 {
		cfg.MaxPosts = defaultMaxPosts
	}
	if cfg.MaxPosts < minMaxPosts || cfg.MaxPosts > maxMaxPosts {
		return models.JobConfig{}, fmt.Errorf("max_posts must be between %d and %d", minMaxPosts, maxMaxPosts)
	}

	if cfg.MinClusterSize == 0 {
		cfg.MinClusterSize = defaultMinClusterSize
	}
	if cfg.MinClusterSize < minMinClusterSize || cfg.MinClusterSize > maxMinClusterSize {
		return models.JobConfig{}, fmt.Errorf("min_cluster_size must be between %d and %d", minMinClusterSize, maxMinClusterSize)
	}

	if cfg.LookbackDays < 0 {
		return models.JobConfig{}, fmt.Errorf("lookback_days must not be negative")
	}
	if cfg.NumCategories < 0 {
		return models.JobConfig{}, fmt.Errorf("num_categories must not be negative")
	}

	return cfg, nil
}
