package scheduler

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/internal/usecase"
)

type stubRunner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *stubRunner) RunWithBackup(context.Context, ...string) (*entity.RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &entity.RunSummary{Success: true, TotalListings: 3}, nil
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestNew_InvalidTimezone(t *testing.T) {
	t.Parallel()

	if _, err := New(&stubRunner{}, "Mars/Olympus"); err == nil {
		t.Fatal("expected an error for an unknown timezone")
	}
}

func TestRegisterDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		withTest bool
		want     []string
	}{
		{"production", false, []string{TriggerDaily, TriggerEvery4h}},
		{"with test trigger", true, []string{TriggerDaily, TriggerEvery4h, TriggerTest}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, err := New(&stubRunner{}, DefaultTimezone)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if err := c.RegisterDefaults(tt.withTest); err != nil {
				t.Fatalf("RegisterDefaults() error = %v", err)
			}
			info := c.Info()
			sort.Strings(info.Triggers)
			sort.Strings(tt.want)
			if info.Count != len(tt.want) || info.Running {
				t.Errorf("Info() = %+v, want %d inert triggers", info, len(tt.want))
			}
			for i := range tt.want {
				if info.Triggers[i] != tt.want[i] {
					t.Errorf("Triggers = %v, want %v", info.Triggers, tt.want)
					break
				}
			}
		})
	}
}

func TestRegister_RejectsBadSpecAndReplaces(t *testing.T) {
	t.Parallel()

	c, err := New(&stubRunner{}, "UTC")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Register("broken", "not a cron"); err == nil {
		t.Error("expected an error for an invalid spec")
	}
	if err := c.Register("nightly", "0 3 * * *"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := c.Register("nightly", "0 4 * * *"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got := c.Info().Count; got != 1 {
		t.Errorf("Count = %d, want 1 after replacing", got)
	}
	if got := len(c.cron.Entries()); got != 1 {
		t.Errorf("cron entries = %d, want 1", got)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	c, err := New(runner, DefaultTimezone)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.RegisterDefaults(false); err != nil {
		t.Fatalf("RegisterDefaults() error = %v", err)
	}

	c.Start()
	c.Start()
	if !c.Info().Running {
		t.Error("Running = false after Start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if c.Info().Running {
		t.Error("Running = true after Stop")
	}
	if err := c.Stop(ctx); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if runner.callCount() != 0 {
		t.Errorf("runner fired %d times, want 0", runner.callCount())
	}
}

func TestTrigger(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	c, err := New(runner, DefaultTimezone)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.RegisterDefaults(false); err != nil {
		t.Fatalf("RegisterDefaults() error = %v", err)
	}

	if err := c.Trigger(TriggerDaily); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if err := c.Trigger("missing"); err == nil {
		t.Error("expected an error for an unknown trigger")
	}

	// An overlapping run is absorbed, not propagated.
	runner.err = usecase.ErrRunInProgress
	if err := c.Trigger(TriggerEvery4h); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if runner.callCount() != 2 {
		t.Errorf("runner fired %d times, want 2", runner.callCount())
	}
}

// blockingRunner holds its first call until release is closed and records
// the context state of every later call.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}

	mu      sync.Mutex
	calls   int
	ctxErrs []error
}

func (r *blockingRunner) RunWithBackup(ctx context.Context, _ ...string) (*entity.RunSummary, error) {
	r.mu.Lock()
	r.calls++
	first := r.calls == 1
	r.mu.Unlock()

	if first {
		close(r.started)
		<-r.release
		return nil, ctx.Err()
	}

	r.mu.Lock()
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	r.mu.Unlock()
	return &entity.RunSummary{Success: true}, nil
}

func TestRestartAfterStopTimeout(t *testing.T) {
	t.Parallel()

	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	c, err := New(runner, "UTC")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Register("fast", "@every 1s"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	c.Start()
	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("trigger never fired")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := c.Stop(ctx); err == nil {
		t.Fatal("expected Stop() to time out while a run is in progress")
	}
	close(runner.release)

	c.Start()
	if err := c.Trigger("fast"); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := c.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.ctxErrs) == 0 {
		t.Fatal("expected the restarted coordinator to run")
	}
	for i, err := range runner.ctxErrs {
		if err != nil {
			t.Errorf("run %d got a cancelled context after restart: %v", i, err)
		}
	}
}
