package jobs

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
)

const (
	JobKindNotificationFanout  = "notification_fanout"
	JobKindNotificationCleanup = "notification_cleanup"
)

const (
	FanoutMaxAttempts  = 5
	CleanupMaxAttempts = 3
)

// RetryConfig controls per-kind retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryPolicy implements River's ClientRetryPolicy with per-kind
// exponential backoff.
type RetryPolicy struct {
	Default RetryConfig
	ByKind  map[string]RetryConfig
}

func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		Default: RetryConfig{
			MaxAttempts: FanoutMaxAttempts,
			BaseDelay:   30 * time.Second,
			MaxDelay:    30 * time.Minute,
		},
		ByKind: map[string]RetryConfig{
			JobKindNotificationFanout: {
				MaxAttempts: FanoutMaxAttempts,
				BaseDelay:   15 * time.Second,
				MaxDelay:    10 * time.Minute,
			},
			JobKindNotificationCleanup: {
				MaxAttempts: CleanupMaxAttempts,
				BaseDelay:   1 * time.Minute,
				MaxDelay:    1 * time.Hour,
			},
		},
	}
}

// NextRetry determines the next retry time for a failed job.
func (p *RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	config := p.configFor(job.Kind)
	if config.BaseDelay == 0 {
		return time.Now()
	}

	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(float64(config.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if job.AttemptedAt != nil {
		return job.AttemptedAt.Add(delay)
	}
	return time.Now().Add(delay)
}

func (p *RetryPolicy) configFor(kind string) RetryConfig {
	if p == nil {
		return RetryConfig{MaxAttempts: FanoutMaxAttempts, BaseDelay: 30 * time.Second, MaxDelay: 30 * time.Minute}
	}
	if config, ok := p.ByKind[kind]; ok {
		return config
	}
	return p.Default
}

// InsertOptsForKind returns default insert options for a job kind.
func InsertOptsForKind(kind string) river.InsertOpts {
	config := NewRetryPolicy().configFor(kind)
	return river.InsertOpts{MaxAttempts: config.MaxAttempts}
}

// NewClientConfig builds a River client configuration with retry policy.
func NewClientConfig(workers *river.Workers, logger *slog.Logger, periodicJobs []*river.PeriodicJob) *river.Config {
	policy := NewRetryPolicy()
	config := &river.Config{
		Workers:      workers,
		RetryPolicy:  policy,
		MaxAttempts:  policy.Default.MaxAttempts,
		PeriodicJobs: periodicJobs,
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
	}
	if logger != nil {
		config.Logger = logger
	}
	return config
}

// NewClient creates a River client using pgx v5.
func NewClient(pool *pgxpool.Pool, workers *river.Workers, logger *slog.Logger, periodicJobs []*river.PeriodicJob) (*river.Client[pgx.Tx], error) {
	return river.NewClient(riverpgxv5.New(pool), NewClientConfig(workers, logger, periodicJobs))
}

// NewPeriodicJobs creates the default periodic schedule: a daily
// notification retention sweep.
func NewPeriodicJobs() []*river.PeriodicJob {
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(24*time.Hour),
			func() (river.JobArgs, *river.InsertOpts) {
				return NotificationCleanupArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: false},
		),
	}
}

// Enqueuer inserts fan-out jobs; it is the channels service's handle on
// the queue.
type Enqueuer struct {
	client *river.Client[pgx.Tx]
}

func NewEnqueuer(client *river.Client[pgx.Tx]) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) EnqueueMessageNotification(ctx context.Context, tenantID, channelID, messageID, authorID string) error {
	opts := InsertOptsForKind(JobKindNotificationFanout)
	_, err := e.client.Insert(ctx, NotificationFanoutArgs{
		TenantID:  tenantID,
		ChannelID: channelID,
		MessageID: messageID,
		AuthorID:  authorID,
	}, &opts)
	return err
}
