package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// SyncRunner runs one reconciliation for a shop.
// The outcome is non-nil even when err is set.
type SyncRunner interface {
	Run(ctx context.Context, tenant string) (*integration.SyncOutcome, error)
}

// TenantLister enumerates shops with stored credentials
type TenantLister interface {
	ListTenants(ctx context.Context) ([]string, error)
}

// RunLock keeps separate instances from syncing the same shop at once
type RunLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// ---------------------------------------------------------------------------
// Sync Job Types
// ---------------------------------------------------------------------------

// JobTrigger tells what submitted a job
type JobTrigger string

const (
	JobTriggerSchedule JobTrigger = "schedule"
	JobTriggerManual   JobTrigger = "manual"
)

// syncJob is one queued run
type syncJob struct {
	ID          uuid.UUID
	Tenant      string
	Trigger     JobTrigger
	SubmittedAt time.Time
}

// tenantSchedule is the registration of one shop
type tenantSchedule struct {
	registeredAt time.Time
	stop         chan struct{}
	started      bool
}

// ---------------------------------------------------------------------------
// TenantSyncSchedulerConfig
// ---------------------------------------------------------------------------

// TenantSyncSchedulerConfig holds configuration for the tenant sync scheduler
type TenantSyncSchedulerConfig struct {
	// Interval is the time between two scheduled runs of a shop
	Interval time.Duration
	// Workers is the size of the worker pool
	Workers int
	// QueueSize is the capacity of the job queue
	QueueSize int
	// JobTimeout is the maximum time a run can take
	JobTimeout time.Duration
	// LockTTL bounds how long a crashed instance keeps a shop locked
	LockTTL time.Duration
	// MaxHistory is the number of outcomes kept for monitoring
	MaxHistory int
}

// DefaultTenantSyncSchedulerConfig returns default configuration
func DefaultTenantSyncSchedulerConfig() TenantSyncSchedulerConfig {
	return TenantSyncSchedulerConfig{
		Interval:   60 * time.Minute,
		Workers:    10,
		QueueSize:  100,
		JobTimeout: 2 * time.Hour,
		LockTTL:    2 * time.Hour,
		MaxHistory: 100,
	}
}

// Validate validates the configuration
func (c *TenantSyncSchedulerConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue size must be positive", ErrInvalidConfig)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	if c.LockTTL < c.JobTimeout {
		return fmt.Errorf("%w: lock ttl must cover the job timeout", ErrInvalidConfig)
	}
	if c.MaxHistory <= 0 {
		return fmt.Errorf("%w: max history must be positive", ErrInvalidConfig)
	}
	return nil
}

// ---------------------------------------------------------------------------
// TenantSyncScheduler
// ---------------------------------------------------------------------------

// TenantSyncScheduler owns the fixed-interval sync schedule of every shop.
// Ticks and manual triggers share one worker pool, and a shop never has two
// runs queued or running at the same time.
type TenantSyncScheduler struct {
	config TenantSyncSchedulerConfig
	runner SyncRunner
	lock   RunLock
	logger *zap.Logger

	jobs       chan *syncJob
	tickCtx    context.Context
	stopTicks  context.CancelFunc
	runCtx     context.Context
	cancelRuns context.CancelFunc
	workers    sync.WaitGroup
	tickers    sync.WaitGroup

	mu        sync.Mutex
	isRunning bool
	schedules map[string]*tenantSchedule
	inFlight  map[string]bool

	// Outcome history for monitoring (in-memory ring, newest last)
	historyMu sync.RWMutex
	history   []*integration.SyncOutcome
	next      int
	full      bool
}

// Option configures a TenantSyncScheduler
type Option func(*TenantSyncScheduler)

// WithRunLock adds a distributed per-shop lock around every run
func WithRunLock(lock RunLock) Option {
	return func(s *TenantSyncScheduler) {
		s.lock = lock
	}
}

// NewTenantSyncScheduler creates a new tenant sync scheduler. A nil logger discards output.
func NewTenantSyncScheduler(config TenantSyncSchedulerConfig, runner SyncRunner, logger *zap.Logger, opts ...Option) (*TenantSyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &TenantSyncScheduler{
		config:    config,
		runner:    runner,
		logger:    logger,
		schedules: make(map[string]*tenantSchedule),
		inFlight:  make(map[string]bool),
		history:   make([]*integration.SyncOutcome, config.MaxHistory),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start starts the worker pool and the tickers of every registered shop
func (s *TenantSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true
	s.jobs = make(chan *syncJob, s.config.QueueSize)

	// Runs outlive the tick context so Stop can let them finish
	s.runCtx, s.cancelRuns = context.WithCancel(context.WithoutCancel(ctx))
	s.tickCtx, s.stopTicks = context.WithCancel(ctx)

	for i := 0; i < s.config.Workers; i++ {
		s.workers.Add(1)
		go s.worker(s.tickCtx, s.runCtx, s.jobs, i)
	}
	for tenant, sched := range s.schedules {
		s.startTicker(tenant, sched)
	}

	s.logger.Info("Tenant sync scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("interval", s.config.Interval),
		zap.Int("shops", len(s.schedules)),
	)
	return nil
}

// Stop stops ticking, drops queued jobs and waits for running syncs.
// When ctx expires first the running syncs are cancelled.
func (s *TenantSyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.stopTicks()
	close(s.jobs)
	for _, sched := range s.schedules {
		sched.started = false
	}
	s.mu.Unlock()

	s.tickers.Wait()

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancelRuns()
		s.logger.Info("Tenant sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Tenant sync scheduler drain timed out, cancelling running syncs")
		s.cancelRuns()
		<-done
		return ctx.Err()
	}
}

// StartSyncForTenant registers the fixed-interval schedule of a shop.
// It returns false when the shop already has one.
func (s *TenantSyncScheduler) StartSyncForTenant(tenant string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[tenant]; exists {
		return false
	}
	sched := &tenantSchedule{registeredAt: time.Now()}
	s.schedules[tenant] = sched
	if s.isRunning {
		s.startTicker(tenant, sched)
	}

	s.logger.Info("Sync scheduled for shop",
		zap.String("shop", tenant),
		zap.Duration("interval", s.config.Interval),
	)
	return true
}

// StopSyncForTenant removes the schedule of a shop. A running sync is not interrupted.
func (s *TenantSyncScheduler) StopSyncForTenant(tenant string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, exists := s.schedules[tenant]
	if !exists {
		return false
	}
	if sched.started {
		close(sched.stop)
	}
	delete(s.schedules, tenant)

	s.logger.Info("Sync schedule removed for shop", zap.String("shop", tenant))
	return true
}

// RegisterAll schedules every shop returned by lister and reports how many were new
func (s *TenantSyncScheduler) RegisterAll(ctx context.Context, lister TenantLister) (int, error) {
	tenants, err := lister.ListTenants(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list shops: %w", err)
	}

	registered := 0
	for _, tenant := range tenants {
		if s.StartSyncForTenant(tenant) {
			registered++
		}
	}

	s.logger.Info("Registered shop schedules",
		zap.Int("shops", len(tenants)),
		zap.Int("new", registered),
	)
	return registered, nil
}

// TriggerNow queues an immediate sync of a shop
func (s *TenantSyncScheduler) TriggerNow(tenant string) error {
	return s.submit(tenant, JobTriggerManual)
}

// IsScheduled reports whether the shop has a schedule
func (s *TenantSyncScheduler) IsScheduled(tenant string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.schedules[tenant]
	return exists
}

// IsInProgress reports whether a sync of the shop is queued or running
func (s *TenantSyncScheduler) IsInProgress(tenant string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[tenant]
}

// ActiveTenants returns the scheduled shops in order
func (s *TenantSyncScheduler) ActiveTenants() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenants := make([]string, 0, len(s.schedules))
	for tenant := range s.schedules {
		tenants = append(tenants, tenant)
	}
	sort.Strings(tenants)
	return tenants
}

// startTicker launches the ticker goroutine of a shop. Caller holds s.mu.
func (s *TenantSyncScheduler) startTicker(tenant string, sched *tenantSchedule) {
	sched.stop = make(chan struct{})
	sched.started = true

	s.tickers.Add(1)
	go s.tickLoop(s.tickCtx, tenant, sched.stop)
}

// tickLoop submits a scheduled job every interval until the shop is unscheduled
func (s *TenantSyncScheduler) tickLoop(ctx context.Context, tenant string, stop <-chan struct{}) {
	defer s.tickers.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := s.submit(tenant, JobTriggerSchedule); err != nil {
				s.logger.Info("Scheduled sync skipped",
					zap.String("shop", tenant),
					zap.Error(err),
				)
			}
		}
	}
}

// submit queues a job unless the shop already has one in flight
func (s *TenantSyncScheduler) submit(tenant string, trigger JobTrigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	if s.inFlight[tenant] {
		return ErrRunInProgress
	}

	job := &syncJob{
		ID:          uuid.New(),
		Tenant:      tenant,
		Trigger:     trigger,
		SubmittedAt: time.Now(),
	}
	select {
	case s.jobs <- job:
		s.inFlight[tenant] = true
		s.logger.Debug("Sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("shop", tenant),
			zap.String("trigger", string(trigger)),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// worker processes jobs from the queue
func (s *TenantSyncScheduler) worker(tickCtx, runCtx context.Context, jobs <-chan *syncJob, workerID int) {
	defer s.workers.Done()

	s.logger.Debug("Sync worker started", zap.Int("worker_id", workerID))

	for job := range jobs {
		if tickCtx.Err() != nil {
			s.logger.Info("Queued sync dropped, scheduler stopping",
				zap.String("job_id", job.ID.String()),
				zap.String("shop", job.Tenant),
			)
			s.release(job.Tenant)
			continue
		}
		s.processJob(runCtx, job, workerID)
	}

	s.logger.Debug("Sync job channel closed", zap.Int("worker_id", workerID))
}

// processJob executes a single job. Panics are recovered so the schedule survives.
func (s *TenantSyncScheduler) processJob(runCtx context.Context, job *syncJob, workerID int) {
	defer s.release(job.Tenant)

	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("shop", job.Tenant),
		zap.String("trigger", string(job.Trigger)),
	)

	if s.lock != nil {
		token, ok, err := s.lock.TryLock(runCtx, job.Tenant, s.config.LockTTL)
		if err != nil {
			log.Error("Failed to acquire run lock, sync skipped", zap.Error(err))
			return
		}
		if !ok {
			log.Info("Shop is being synced by another instance, sync skipped")
			return
		}
		defer func() {
			if err := s.lock.Unlock(context.WithoutCancel(runCtx), job.Tenant, token); err != nil {
				log.Warn("Failed to release run lock", zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithTimeout(runCtx, s.config.JobTimeout)
	defer cancel()

	started := time.Now()
	log.Info("Processing sync job", zap.Duration("queued_for", started.Sub(job.SubmittedAt)))

	outcome, err := s.run(ctx, job.Tenant)
	if outcome == nil {
		outcome = integration.NewSyncOutcome(job.Tenant, started)
		outcome.Fail(time.Now(), err)
	}
	s.addToHistory(outcome)

	if err != nil {
		log.Error("Sync job failed",
			zap.String("run_id", outcome.RunID.String()),
			zap.String("status", outcome.Status.String()),
			zap.Error(err),
		)
		return
	}
	log.Info("Sync job completed",
		zap.String("run_id", outcome.RunID.String()),
		zap.String("status", outcome.Status.String()),
		zap.Duration("duration", outcome.Duration()),
	)
}

// run calls the runner and converts a panic into an error
func (s *TenantSyncScheduler) run(ctx context.Context, tenant string) (outcome *integration.SyncOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = fmt.Errorf("sync panicked: %v", r)
		}
	}()
	return s.runner.Run(ctx, tenant)
}

// release clears the in-flight flag of a shop
func (s *TenantSyncScheduler) release(tenant string) {
	s.mu.Lock()
	delete(s.inFlight, tenant)
	s.mu.Unlock()
}

// addToHistory records an outcome, overwriting the oldest once full
func (s *TenantSyncScheduler) addToHistory(outcome *integration.SyncOutcome) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history[s.next] = outcome
	s.next = (s.next + 1) % len(s.history)
	if s.next == 0 {
		s.full = true
	}
}

// History returns up to limit recent outcomes, newest first.
// An empty tenant returns outcomes of every shop; limit <= 0 returns all kept.
func (s *TenantSyncScheduler) History(tenant string, limit int) []*integration.SyncOutcome {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	size := s.next
	if s.full {
		size = len(s.history)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	result := make([]*integration.SyncOutcome, 0, limit)
	for i := 1; i <= size && len(result) < limit; i++ {
		o := s.history[(s.next-i+len(s.history))%len(s.history)]
		if tenant == "" || o.Tenant == tenant {
			result = append(result, o)
		}
	}
	return result
}
