package jobs

import (
	"testing"
	"time"

	"github.com/riverqueue/river/rivertype"
)

func TestNewRetryPolicy(t *testing.T) {
	policy := NewRetryPolicy()

	if policy == nil {
		t.Fatal("NewRetryPolicy() returned nil")
	}

	if policy.Default.MaxAttempts != FanoutMaxAttempts {
		t.Errorf("Default.MaxAttempts = %d, want %d", policy.Default.MaxAttempts, FanoutMaxAttempts)
	}
	if policy.Default.BaseDelay != 30*time.Second {
		t.Errorf("Default.BaseDelay = %v, want 30s", policy.Default.BaseDelay)
	}
	if policy.Default.MaxDelay != 30*time.Minute {
		t.Errorf("Default.MaxDelay = %v, want 30m", policy.Default.MaxDelay)
	}

	tests := []struct {
		kind                string
		expectedMaxAttempts int
		expectedBaseDelay   time.Duration
		expectedMaxDelay    time.Duration
	}{
		{
			kind:                JobKindNotificationFanout,
			expectedMaxAttempts: FanoutMaxAttempts,
			expectedBaseDelay:   15 * time.Second,
			expectedMaxDelay:    10 * time.Minute,
		},
		{
			kind:                JobKindNotificationCleanup,
			expectedMaxAttempts: CleanupMaxAttempts,
			expectedBaseDelay:   1 * time.Minute,
			expectedMaxDelay:    1 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			config, ok := policy.ByKind[tt.kind]
			if !ok {
				t.Fatalf("kind %s not found in ByKind map", tt.kind)
			}

			if config.MaxAttempts != tt.expectedMaxAttempts {
				t.Errorf("MaxAttempts = %d, want %d", config.MaxAttempts, tt.expectedMaxAttempts)
			}
			if config.BaseDelay != tt.expectedBaseDelay {
				t.Errorf("BaseDelay = %v, want %v", config.BaseDelay, tt.expectedBaseDelay)
			}
			if config.MaxDelay != tt.expectedMaxDelay {
				t.Errorf("MaxDelay = %v, want %v", config.MaxDelay, tt.expectedMaxDelay)
			}
		})
	}
}

func TestRetryPolicy_NextRetry(t *testing.T) {
	policy := NewRetryPolicy()
	now := time.Now()

	tests := []struct {
		name          string
		kind          string
		attempt       int
		expectedDelay time.Duration
	}{
		{
			name:          "fanout first attempt",
			kind:          JobKindNotificationFanout,
			attempt:       1,
			expectedDelay: 15 * time.Second,
		},
		{
			name:          "fanout second attempt (exponential backoff)",
			kind:          JobKindNotificationFanout,
			attempt:       2,
			expectedDelay: 30 * time.Second,
		},
		{
			name:          "fanout fourth attempt",
			kind:          JobKindNotificationFanout,
			attempt:       4,
			expectedDelay: 2 * time.Minute,
		},
		{
			name:          "fanout capped at max delay",
			kind:          JobKindNotificationFanout,
			attempt:       20,
			expectedDelay: 10 * time.Minute,
		},
		{
			name:          "cleanup first attempt",
			kind:          JobKindNotificationCleanup,
			attempt:       1,
			expectedDelay: 1 * time.Minute,
		},
		{
			name:          "cleanup capped at max delay",
			kind:          JobKindNotificationCleanup,
			attempt:       10,
			expectedDelay: 1 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &rivertype.JobRow{
				Kind:        tt.kind,
				Attempt:     tt.attempt,
				AttemptedAt: &now,
			}

			nextRetry := policy.NextRetry(job)
			actualDelay := nextRetry.Sub(now)

			diff := actualDelay - tt.expectedDelay
			if diff < 0 {
				diff = -diff
			}
			if diff > 2*time.Second {
				t.Errorf("NextRetry() delay = %v, want approximately %v (diff: %v)", actualDelay, tt.expectedDelay, diff)
			}
		})
	}
}

func TestInsertOptsForKind(t *testing.T) {
	tests := []struct {
		kind                string
		expectedMaxAttempts int
	}{
		{JobKindNotificationFanout, FanoutMaxAttempts},
		{JobKindNotificationCleanup, CleanupMaxAttempts},
		{"unknown-kind", FanoutMaxAttempts}, // Falls back to default
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			opts := InsertOptsForKind(tt.kind)

			if opts.MaxAttempts != tt.expectedMaxAttempts {
				t.Errorf("InsertOptsForKind(%s).MaxAttempts = %d, want %d",
					tt.kind, opts.MaxAttempts, tt.expectedMaxAttempts)
			}
		})
	}
}

func TestNewPeriodicJobs(t *testing.T) {
	jobs := NewPeriodicJobs()

	if len(jobs) != 1 {
		t.Errorf("NewPeriodicJobs() returned %d jobs, want 1", len(jobs))
	}
	for i, job := range jobs {
		if job == nil {
			t.Errorf("NewPeriodicJobs()[%d] is nil", i)
		}
	}
}

func TestJobKindConstants(t *testing.T) {
	kinds := []string{
		JobKindNotificationFanout,
		JobKindNotificationCleanup,
	}

	seen := make(map[string]bool)
	for _, kind := range kinds {
		if kind == "" {
			t.Errorf("job kind constant is empty")
		}
		if seen[kind] {
			t.Errorf("duplicate job kind: %s", kind)
		}
		seen[kind] = true
	}
}

func TestJobArgsKinds(t *testing.T) {
	if got := (NotificationFanoutArgs{}).Kind(); got != JobKindNotificationFanout {
		t.Errorf("NotificationFanoutArgs.Kind() = %q, want %q", got, JobKindNotificationFanout)
	}
	if got := (NotificationCleanupArgs{}).Kind(); got != JobKindNotificationCleanup {
		t.Errorf("NotificationCleanupArgs.Kind() = %q, want %q", got, JobKindNotificationCleanup)
	}
}
