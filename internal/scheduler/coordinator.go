package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/internal/usecase"
)

const (
	TriggerDaily   = "daily"
	TriggerEvery4h = "every4h"
	TriggerTest    = "test"

	DefaultTimezone = "Asia/Seoul"
)

// DefaultTriggers are registered by RegisterDefaults.
var DefaultTriggers = map[string]string{
	TriggerDaily:   "0 0 * * *",
	TriggerEvery4h: "0 */4 * * *",
}

const testTriggerSpec = "*/1 * * * *"

// Runner is the pipeline entry point each trigger fires.
type Runner interface {
	RunWithBackup(ctx context.Context, names ...string) (*entity.RunSummary, error)
}

// Info reports the registered triggers and whether the coordinator is running.
type Info struct {
	Count    int      `json:"count"`
	Running  bool     `json:"running"`
	Triggers []string `json:"triggers"`
}

// Coordinator fires the ingestion pipeline on cron triggers.
// Triggers stay inert until Start.
type Coordinator struct {
	runner Runner
	cron   *cron.Cron

	mu       sync.Mutex
	triggers map[string]cron.EntryID
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a coordinator evaluating schedules in the given IANA timezone.
func New(runner Runner, timezone string) (*Coordinator, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		runner:   runner,
		cron:     cron.New(cron.WithLocation(loc)),
		triggers: make(map[string]cron.EntryID),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Register adds or replaces the named trigger.
func (c *Coordinator) Register(name, spec string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.cron.AddFunc(spec, func() { c.fire(name) })
	if err != nil {
		return fmt.Errorf("register trigger %q: %w", name, err)
	}
	if old, ok := c.triggers[name]; ok {
		c.cron.Remove(old)
	}
	c.triggers[name] = id
	slog.Info("Schedule trigger registered", "trigger", name, "spec", spec)
	return nil
}

// RegisterDefaults registers the daily and four-hourly triggers, plus the
// every-minute test trigger when withTest is set.
func (c *Coordinator) RegisterDefaults(withTest bool) error {
	for _, name := range []string{TriggerDaily, TriggerEvery4h} {
		if err := c.Register(name, DefaultTriggers[name]); err != nil {
			return err
		}
	}
	if withTest {
		return c.Register(TriggerTest, testTriggerSpec)
	}
	return nil
}

func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	// A Stop that timed out cancelled the previous context.
	if c.ctx.Err() != nil {
		c.ctx, c.cancel = context.WithCancel(context.Background())
	}
	c.cron.Start()
	c.running = true
	slog.Info("Schedule coordinator started", "triggers", len(c.triggers))
}

// Stop halts the triggers and waits for a firing in progress to return, or for ctx to end.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	done := c.cron.Stop()
	select {
	case <-done.Done():
		slog.Info("Schedule coordinator stopped")
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		c.cancel()
		c.mu.Unlock()
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

func (c *Coordinator) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.triggers))
	for name := range c.triggers {
		names = append(names, name)
	}
	return Info{Count: len(c.triggers), Running: c.running, Triggers: names}
}

// Trigger fires the named trigger immediately, as if its schedule had elapsed.
func (c *Coordinator) Trigger(name string) error {
	c.mu.Lock()
	_, ok := c.triggers[name]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown trigger %q", name)
	}
	c.fire(name)
	return nil
}

func (c *Coordinator) fire(name string) {
	slog.Info("Scheduled ingestion starting", "trigger", name)

	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	summary, err := c.runner.RunWithBackup(ctx)
	switch {
	case errors.Is(err, usecase.ErrRunInProgress):
		slog.Warn("Scheduled ingestion skipped, previous run still active", "trigger", name)
	case err != nil:
		slog.Error("Scheduled ingestion failed", "trigger", name, "error", err)
	default:
		slog.Info("Scheduled ingestion finished",
			"trigger", name,
			"success", summary.Success,
			"total_listings", summary.TotalListings,
			"rolled_back", summary.RolledBack,
			"duration", summary.Duration,
		)
	}
}
