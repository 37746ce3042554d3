package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/myip/internal/cache"
	"github.com/kyvra-tech/myip/pkg/metrics"
)

// Job names, also used as metric labels
const (
	JobGeoIPReload = "geoip_reload"
	JobCacheProbe  = "cache_probe"
)

// Reloader reopens the GeoIP databases
type Reloader interface {
	Reload() error
}

// ErrorReporter receives failed jobs
type ErrorReporter interface {
	Collect(ctx context.Context, err error, tags map[string]string)
}

// Config holds the cron specs of the maintenance jobs.  An empty spec
// disables the job.
type Config struct {
	GeoIPReloadSchedule string
	CacheProbeSchedule  string
}

type CronScheduler struct {
	cron           *cron.Cron
	cfg            Config
	geoip          Reloader
	store          cache.Store
	metrics        *metrics.Metrics
	reporter       ErrorReporter
	logger         *logrus.Logger
	jobTimeout     time.Duration
	activeJobs     sync.WaitGroup
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

func NewCronScheduler(
	cfg Config,
	geoip Reloader,
	store cache.Store,
	m *metrics.Metrics,
	reporter ErrorReporter,
	logger *logrus.Logger,
) *CronScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &CronScheduler{
		cron:           cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		cfg:            cfg,
		geoip:          geoip,
		store:          store,
		metrics:        m,
		reporter:       reporter,
		logger:         logger,
		jobTimeout:     time.Minute,
		shutdownCtx:    ctx,
		shutdownCancel: cancel,
	}
}

// Start schedules the maintenance jobs and starts the cron runner.  It fails
// if a schedule cannot be parsed.
func (s *CronScheduler) Start() error {
	if s.cfg.GeoIPReloadSchedule != "" && s.geoip != nil {
		_, err := s.cron.AddFunc(s.cfg.GeoIPReloadSchedule, s.createJobWrapper(JobGeoIPReload, s.reloadGeoIP))
		if err != nil {
			return fmt.Errorf("scheduling %s: %w", JobGeoIPReload, err)
		}
	}

	if s.cfg.CacheProbeSchedule != "" && s.store != nil {
		_, err := s.cron.AddFunc(s.cfg.CacheProbeSchedule, s.createJobWrapper(JobCacheProbe, s.probeCache))
		if err != nil {
			return fmt.Errorf("scheduling %s: %w", JobCacheProbe, err)
		}
	}

	s.cron.Start()
	s.logger.WithField("jobs", len(s.cron.Entries())).Info("Cron scheduler started successfully")
	return nil
}

func (s *CronScheduler) reloadGeoIP(_ context.Context) error {
	return s.geoip.Reload()
}

// probeCache checks the active cache backend.  A lazily initialized store
// that has not been used yet is left alone.
func (s *CronScheduler) probeCache(ctx context.Context) error {
	store := s.store
	if l, ok := store.(interface{ Active() (cache.Store, bool) }); ok {
		active, ready := l.Active()
		if !ready {
			s.logger.Debug("Cache not initialized yet, skipping probe")
			return nil
		}
		store = active
	}

	err := cache.Probe(ctx, store)
	if s.metrics != nil {
		s.metrics.SetCacheHealthy(err == nil)
		s.metrics.SetCacheBackend(store.Name())
	}
	if err != nil {
		return fmt.Errorf("probing %s cache: %w", store.Name(), err)
	}
	return nil
}

// createJobWrapper wraps a job with context, timeout, logging, and panic recovery
func (s *CronScheduler) createJobWrapper(jobName string, jobFunc func(context.Context) error) func() {
	return func() {
		s.runJob(jobName, jobFunc)
	}
}

func (s *CronScheduler) runJob(jobName string, jobFunc func(context.Context) error) (err error) {
	s.activeJobs.Add(1)
	defer s.activeJobs.Done()

	ctx, cancel := context.WithTimeout(s.shutdownCtx, s.jobTimeout)
	defer cancel()

	startTime := time.Now()

	s.logger.WithFields(logrus.Fields{
		"job":       jobName,
		"timestamp": startTime.UTC(),
	}).Debug("Starting scheduled job")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			s.logger.WithFields(logrus.Fields{
				"job":   jobName,
				"panic": r,
			}).Error("Job panicked")
		}
		s.finish(ctx, jobName, startTime, err)
	}()

	return jobFunc(ctx)
}

func (s *CronScheduler) finish(ctx context.Context, jobName string, startTime time.Time, err error) {
	duration := time.Since(startTime)
	if s.metrics != nil {
		s.metrics.RecordSchedulerJob(jobName, err == nil, duration)
	}

	if err == nil {
		s.logger.WithFields(logrus.Fields{
			"job":      jobName,
			"duration": duration.String(),
		}).Info("Job completed successfully")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"job":      jobName,
		"duration": duration.String(),
		"error":    err.Error(),
	}).Error("Job failed")

	if ctx.Err() == context.DeadlineExceeded {
		s.logger.WithFields(logrus.Fields{
			"job":     jobName,
			"timeout": s.jobTimeout.String(),
		}).Warn("Job timed out")
	}

	if s.reporter != nil {
		s.reporter.Collect(ctx, err, map[string]string{"job": jobName})
	}
}

func (s *CronScheduler) Stop() {
	s.logger.Info("Stopping cron scheduler...")

	// Stop accepting new jobs
	ctx := s.cron.Stop()

	// Cancel all running jobs
	s.shutdownCancel()

	done := make(chan struct{})
	go func() {
		s.activeJobs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("All jobs completed, cron scheduler stopped")
	case <-ctx.Done():
		s.logger.Info("Cron scheduler stopped")
	case <-time.After(10 * time.Second):
		s.logger.Warn("Timeout waiting for jobs to complete, forcing shutdown")
	}
}

// GetSchedulerStatus returns the current status of the scheduler
func (s *CronScheduler) GetSchedulerStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
