// Package scheduler drives scenario realization until a target artifact
// count is reached.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/capitalize-ai/corpus-generator/internal/model"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
	"github.com/capitalize-ai/corpus-generator/pkg/metrics"
)

var (
	// ErrNoProgress is returned when consecutive passes produce nothing.
	ErrNoProgress = errors.New("no artifacts produced")
	// ErrNoScenarios is returned when there is nothing to schedule.
	ErrNoScenarios = errors.New("no scenarios to schedule")
)

const (
	defaultWorkers       = 10
	defaultMaxIdlePasses = 3
)

// Unit is one realization of one scenario.
type Unit struct {
	Scenario *model.Scenario
	// Pass is the 1-based scheduling pass.
	Pass int
	// Occurrence counts realizations of this scenario, starting at 1.
	Occurrence int
}

// Worker realizes a unit and reports how many artifacts it persisted.
// Artifacts already written must be reported even when err is non-nil.
type Worker interface {
	Realize(ctx context.Context, u Unit) (int, error)
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(ctx context.Context, u Unit) (int, error)

// Realize calls f.
func (f WorkerFunc) Realize(ctx context.Context, u Unit) (int, error) {
	return f(ctx, u)
}

// Config controls pool width and the progress circuit breaker.
type Config struct {
	Workers int
	// MaxIdlePasses is the number of consecutive zero-yield passes after
	// which Run gives up.
	MaxIdlePasses int
	Seed          int64
}

// Result summarizes a run.
type Result struct {
	Artifacts int
	Passes    int
	Units     int
	Failures  int
	Elapsed   time.Duration
}

// Scheduler dispatches scenario units to a bounded worker pool.
type Scheduler struct {
	worker Worker
	cfg    Config
	log    *logger.Logger
	rng    *rand.Rand

	total    atomic.Int64
	units    atomic.Int64
	failures atomic.Int64

	mu        sync.Mutex
	runCounts map[string]int
}

// New creates a Scheduler.
func New(worker Worker, cfg Config, log *logger.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MaxIdlePasses <= 0 {
		cfg.MaxIdlePasses = defaultMaxIdlePasses
	}
	return &Scheduler{
		worker:    worker,
		cfg:       cfg,
		log:       log,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		runCounts: make(map[string]int),
	}
}

// Run shuffles and dispatches scenarios pass after pass until target
// artifacts exist. Dispatch stops as soon as the target is met, so the
// overshoot is bounded by the units already in flight. Cancelling ctx stops
// new dispatches; in-flight units finish.
func (s *Scheduler) Run(ctx context.Context, scenarios []*model.Scenario, target int) (Result, error) {
	start := time.Now()
	result := func() Result {
		return Result{
			Artifacts: s.Progress(),
			Units:     int(s.units.Load()),
			Failures:  int(s.failures.Load()),
			Elapsed:   time.Since(start),
		}
	}

	if len(scenarios) == 0 {
		return result(), ErrNoScenarios
	}

	idle := 0
	pass := 0
	for s.Progress() < target {
		if err := ctx.Err(); err != nil {
			r := result()
			r.Passes = pass
			return r, fmt.Errorf("failed to reach target: %w", err)
		}
		pass++
		before := s.Progress()
		s.runPass(ctx, pass, scenarios, target)
		metrics.SchedulerPasses.Inc()

		produced := s.Progress() - before
		s.log.Info("pass complete",
			zap.Int("pass", pass),
			zap.Int("produced", produced),
			zap.Int("total", s.Progress()),
			zap.Int("target", target),
		)

		if produced > 0 {
			idle = 0
			continue
		}
		idle++
		if idle >= s.cfg.MaxIdlePasses {
			r := result()
			r.Passes = pass
			return r, fmt.Errorf("%w after %d consecutive passes", ErrNoProgress, idle)
		}
	}

	r := result()
	r.Passes = pass
	return r, nil
}

func (s *Scheduler) runPass(ctx context.Context, pass int, scenarios []*model.Scenario, target int) {
	order := make([]*model.Scenario, len(scenarios))
	copy(order, scenarios)
	s.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	// A slot is taken before the target check so the check sees every
	// unit that finished while this one waited.
	sem := semaphore.NewWeighted(int64(s.cfg.Workers))
	var g errgroup.Group
	for _, sc := range order {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		if s.Progress() >= target || ctx.Err() != nil {
			sem.Release(1)
			break
		}
		u := Unit{Scenario: sc, Pass: pass, Occurrence: s.nextOccurrence(sc.ID)}
		g.Go(func() error {
			defer sem.Release(1)
			// Units already dispatched run to completion.
			s.realize(context.WithoutCancel(ctx), u)
			return nil
		})
	}
	_ = g.Wait()
}

// realize runs one unit. Errors and panics end the unit, never the run.
func (s *Scheduler) realize(ctx context.Context, u Unit) {
	s.units.Add(1)
	defer func() {
		if r := recover(); r != nil {
			s.failures.Add(1)
			metrics.SchedulerUnits.WithLabelValues("panic").Inc()
			s.log.Error("worker panicked",
				zap.String("scenario_id", u.Scenario.ID),
				zap.Int("pass", u.Pass),
				zap.Any("panic", r),
			)
		}
	}()

	n, err := s.worker.Realize(ctx, u)
	if n > 0 {
		metrics.SchedulerProgress.Set(float64(s.total.Add(int64(n))))
	}
	if err != nil {
		s.failures.Add(1)
		metrics.SchedulerUnits.WithLabelValues("error").Inc()
		s.log.Error("scenario unit failed",
			zap.String("scenario_id", u.Scenario.ID),
			zap.Int("pass", u.Pass),
			zap.Int("occurrence", u.Occurrence),
			zap.Int("artifacts", n),
			zap.Error(err),
		)
		return
	}
	metrics.SchedulerUnits.WithLabelValues("ok").Inc()
}

func (s *Scheduler) nextOccurrence(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runCounts[id]++
	return s.runCounts[id]
}

// Progress returns the artifacts produced so far.
func (s *Scheduler) Progress() int {
	return int(s.total.Load())
}

// RunCounts returns a copy of the per-scenario occurrence counters.
func (s *Scheduler) RunCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.runCounts))
	for k, v := range s.runCounts {
		out[k] = v
	}
	return out
}
