package di

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one named background task, grounded on the teacher's
// trader-go/internal/scheduler Job/Scheduler convention: a name for
// logging plus a Run() a caller can also invoke on demand.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// CronScheduler runs Jobs on cron schedules (SPEC_FULL §20: periodic
// cache sweep, stale-token GC, nightly thread compaction).
type CronScheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

func newCronScheduler(log zerolog.Logger) *CronScheduler {
	return &CronScheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "cron").Logger(),
	}
}

// AddJob registers job on the given standard 5-field cron schedule.
func (s *CronScheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		start := time.Now()
		if err := job.Run(ctx); err != nil {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("cron job failed")
			return
		}
		s.log.Debug().Str("job", job.Name()).Dur("duration", time.Since(start)).Msg("cron job completed")
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("cron job registered")
	return nil
}

func (s *CronScheduler) Start() { s.cron.Start() }

func (s *CronScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// cacheSweepJob proactively evicts expired in-memory cache entries
// (spec §4.2); a no-op against the Redis backend, which expires natively.
type cacheSweepJob struct {
	cache interface{ Sweep() int }
	log   zerolog.Logger
}

func (j *cacheSweepJob) Name() string { return "cache_sweep" }

func (j *cacheSweepJob) Run(_ context.Context) error {
	if j.cache == nil {
		return nil
	}
	removed := j.cache.Sweep()
	j.log.Debug().Int("removed", removed).Msg("swept expired cache entries")
	return nil
}

// staleTokenGCJob drops an expired Schwab access token between requests
// so the next call pays for a refresh rather than an auth failure.
type staleTokenGCJob struct {
	forgetter interface{ ForgetExpiredToken() }
}

func (j *staleTokenGCJob) Name() string { return "stale_token_gc" }

func (j *staleTokenGCJob) Run(_ context.Context) error {
	if j.forgetter != nil {
		j.forgetter.ForgetExpiredToken()
	}
	return nil
}

// threadCompactionJob trims old report-thread messages nightly, keeping
// the most recent messages of every thread regardless of age so a
// follow-up question against a dormant thread still has context
// (SPEC_FULL §4.12a/§20).
type threadCompactionJob struct {
	store interface {
		CompactThreadMessages(ctx context.Context, olderThan time.Time, keepPerThread int) (int64, error)
	}
	retention     time.Duration
	keepPerThread int
	log           zerolog.Logger
}

func (j *threadCompactionJob) Name() string { return "thread_compaction" }

func (j *threadCompactionJob) Run(ctx context.Context) error {
	removed, err := j.store.CompactThreadMessages(ctx, time.Now().Add(-j.retention), j.keepPerThread)
	if err != nil {
		return err
	}
	j.log.Info().Int64("removed", removed).Msg("compacted report thread messages")
	return nil
}

// registerJobs wires SPEC_FULL §20's three scheduled jobs onto c's
// CronScheduler. Standard 5-field cron expressions (minute hour dom month
// dow): the sweep runs every 10 minutes, token GC every 5, compaction
// nightly at 03:00.
func registerJobs(s *CronScheduler, c *Container) {
	if sweeper, ok := c.Cache.(interface{ Sweep() int }); ok {
		_ = s.AddJob("*/10 * * * *", &cacheSweepJob{cache: sweeper, log: c.Log})
	}

	if c.Schwab != nil {
		_ = s.AddJob("*/5 * * * *", &staleTokenGCJob{forgetter: c.Schwab})
	}

	_ = s.AddJob("0 3 * * *", &threadCompactionJob{
		store:         c.Store,
		retention:     30 * 24 * time.Hour,
		keepPerThread: 40,
		log:           c.Log,
	})
}
