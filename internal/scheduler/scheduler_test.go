package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/corpus-generator/internal/model"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
)

func scenarios(ids ...string) []*model.Scenario {
	out := make([]*model.Scenario, len(ids))
	for i, id := range ids {
		out[i] = &model.Scenario{ID: id, Kind: model.KindStandalone, BaseName: id}
	}
	return out
}

func TestRun_ReachesTarget(t *testing.T) {
	// arrange
	worker := WorkerFunc(func(ctx context.Context, u Unit) (int, error) {
		return 1, nil
	})
	s := New(worker, Config{Workers: 4, Seed: 1}, logger.Nop())

	// act
	res, err := s.Run(context.Background(), scenarios("a", "b", "c"), 10)

	// assert
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Artifacts, 10)
	assert.Less(t, res.Artifacts, 10+4, "overshoot bounded by in-flight units")
	assert.Equal(t, res.Artifacts, res.Units)
}

func TestRun_SequentialPoolStopsExactlyAtTarget(t *testing.T) {
	worker := WorkerFunc(func(ctx context.Context, u Unit) (int, error) {
		return 2, nil
	})
	s := New(worker, Config{Workers: 1}, logger.Nop())

	res, err := s.Run(context.Background(), scenarios("a", "b", "c", "d", "e"), 6)

	require.NoError(t, err)
	assert.Equal(t, 6, res.Artifacts)
	assert.Equal(t, 3, res.Units)
	assert.Equal(t, 1, res.Passes)
}

func TestRun_OccurrencesIncreaseAcrossPasses(t *testing.T) {
	// arrange
	var mu sync.Mutex
	seen := make(map[string][]int)
	worker := WorkerFunc(func(ctx context.Context, u Unit) (int, error) {
		mu.Lock()
		seen[u.Scenario.ID] = append(seen[u.Scenario.ID], u.Occurrence)
		mu.Unlock()
		return 1, nil
	})
	s := New(worker, Config{Workers: 1, Seed: 3}, logger.Nop())

	// act
	res, err := s.Run(context.Background(), scenarios("a", "b"), 6)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, res.Passes)
	assert.Equal(t, []int{1, 2, 3}, seen["a"])
	assert.Equal(t, []int{1, 2, 3}, seen["b"])
	assert.Equal(t, map[string]int{"a": 3, "b": 3}, s.RunCounts())
}

func TestRun_FailuresAndPanicsDoNotAbort(t *testing.T) {
	// arrange
	var calls atomic.Int64
	worker := WorkerFunc(func(ctx context.Context, u Unit) (int, error) {
		switch u.Scenario.ID {
		case "panics":
			panic("boom")
		case "fails":
			return 0, errors.New("provider down")
		case "partial":
			return 1, errors.New("second step failed")
		}
		calls.Add(1)
		return 1, nil
	})
	s := New(worker, Config{Workers: 3, Seed: 9}, logger.Nop())

	// act
	res, err := s.Run(context.Background(), scenarios("panics", "fails", "partial", "ok"), 8)

	// assert
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Artifacts, 8)
	assert.Positive(t, res.Failures)
	assert.Positive(t, calls.Load())
}

func TestRun_NoProgressTripsBreaker(t *testing.T) {
	// arrange
	var units atomic.Int64
	worker := WorkerFunc(func(ctx context.Context, u Unit) (int, error) {
		units.Add(1)
		return 0, nil
	})
	s := New(worker, Config{Workers: 2, MaxIdlePasses: 3}, logger.Nop())

	// act
	res, err := s.Run(context.Background(), scenarios("a", "b"), 5)

	// assert
	require.ErrorIs(t, err, ErrNoProgress)
	assert.Equal(t, 3, res.Passes)
	assert.Equal(t, int64(6), units.Load())
	assert.Zero(t, res.Artifacts)
}

func TestRun_IdleCounterResetsOnProgress(t *testing.T) {
	// the first two passes yield nothing, later passes succeed
	worker := WorkerFunc(func(ctx context.Context, u Unit) (int, error) {
		if u.Pass <= 2 {
			return 0, nil
		}
		return 1, nil
	})
	s := New(worker, Config{Workers: 1, MaxIdlePasses: 3}, logger.Nop())

	res, err := s.Run(context.Background(), scenarios("a"), 2)

	require.NoError(t, err)
	assert.Equal(t, 4, res.Passes)
}

func TestRun_CancelledContextStopsDispatch(t *testing.T) {
	// arrange
	ctx, cancel := context.WithCancel(context.Background())
	var units atomic.Int64
	worker := WorkerFunc(func(ctx context.Context, u Unit) (int, error) {
		if units.Add(1) == 2 {
			cancel()
		}
		return 1, nil
	})
	s := New(worker, Config{Workers: 1}, logger.Nop())

	// act
	res, err := s.Run(ctx, scenarios("a", "b", "c", "d"), 100)

	// assert
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(2), units.Load())
	assert.Equal(t, 2, res.Artifacts)
}

func TestRun_NoScenarios(t *testing.T) {
	s := New(WorkerFunc(func(ctx context.Context, u Unit) (int, error) { return 1, nil }), Config{}, logger.Nop())

	_, err := s.Run(context.Background(), nil, 1)

	assert.ErrorIs(t, err, ErrNoScenarios)
}

func TestRun_RespectsPoolWidth(t *testing.T) {
	// arrange
	var inFlight, peak atomic.Int64
	worker := WorkerFunc(func(ctx context.Context, u Unit) (int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return 1, nil
	})
	s := New(worker, Config{Workers: 3}, logger.Nop())

	// act
	_, err := s.Run(context.Background(), scenarios("a", "b", "c", "d", "e", "f", "g", "h"), 8)

	// assert
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(3))
}
