package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunFunc performs one scheduled pass.
type RunFunc func(context.Context) error

// RunnerConfig configures interval runner behaviour.
type RunnerConfig struct {
	Interval   time.Duration
	RunOnStart bool
	Logger     *zap.Logger
}

// Runner invokes a function on a fixed interval until stopped. A failed
// run is logged and retried on the next tick; it never stops the runner.
type Runner struct {
	name string
	run  RunFunc

	interval   time.Duration
	runOnStart bool
	logger     *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewRunner builds a runner with the provided pass function.
func NewRunner(name string, run RunFunc, cfg RunnerConfig) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Runner{
		name:       name,
		run:        run,
		interval:   cfg.Interval,
		runOnStart: cfg.RunOnStart,
		logger:     cfg.Logger,
	}
}

// Start begins the interval loop. Safe to call once.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.loop()
	r.started = true
	r.logger.Sugar().Infow("runner started", "runner", r.name, "interval", r.interval)
}

// Stop cancels the loop and waits for the in-flight pass to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
	r.logger.Sugar().Infow("runner stopped", "runner", r.name)
}

func (r *Runner) loop() {
	defer r.wg.Done()

	if r.runOnStart {
		r.pass()
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.pass()
		}
	}
}

func (r *Runner) pass() {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Sugar().Errorw("runner pass panicked", "runner", r.name, "panic", fmt.Sprint(rec))
		}
	}()
	if err := r.run(r.ctx); err != nil {
		r.logger.Sugar().Warnw("runner pass failed, will retry next interval", "runner", r.name, "error", err)
	}
}
