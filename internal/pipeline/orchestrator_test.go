package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TembulatC/mira-games-backend/internal/release"
)

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

type seqIDs struct{ n int }

func (g *seqIDs) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("run-%d", g.n), nil
}

var testSchedule = Schedule{
	StageDelay:    10 * time.Minute,
	CycleDelay:    2 * time.Hour,
	RecoveryDelay: 5 * time.Minute,
}

func TestNewOrchestratorValidates(t *testing.T) {
	t.Parallel()

	sleeper := &recordingSleeper{}
	_, err := NewOrchestrator(nil, testSchedule, sleeper, nil, nil)
	require.Error(t, err)

	_, err = NewOrchestrator([]Stage{{Name: "x"}}, testSchedule, sleeper, nil, nil)
	require.Error(t, err)

	ok := []Stage{{Name: "x", Run: func(context.Context) error { return nil }}}
	_, err = NewOrchestrator(ok, testSchedule, nil, nil, nil)
	require.Error(t, err)

	_, err = NewOrchestrator(ok, Schedule{StageDelay: -time.Second}, sleeper, nil, nil)
	require.Error(t, err)
}

func TestRunWaitsBetweenStagesAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var order []string
	stage := func(name string) Stage {
		return Stage{Name: name, Run: func(context.Context) error {
			order = append(order, name)
			if name == StageSnapshot {
				cancel()
			}
			return nil
		}}
	}
	sleeper := &recordingSleeper{}
	orch, err := NewOrchestrator(
		[]Stage{stage(StageCollect), stage(StagePersist), stage(StageSnapshot)},
		testSchedule, sleeper, nil, zap.NewNop(),
	)
	require.NoError(t, err)

	require.NoError(t, orch.Run(ctx))
	assert.Equal(t, []string{StageCollect, StagePersist, StageSnapshot}, order)
	assert.Equal(t, []time.Duration{
		10 * time.Minute, 10 * time.Minute, 10 * time.Minute, 2 * time.Hour,
	}, sleeper.Waits())
}

func TestRunRestartsWholeSequenceAfterFailure(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var order []string
	persistCalls := 0
	stages := []Stage{
		{Name: StageCollect, Run: func(context.Context) error {
			order = append(order, StageCollect)
			return nil
		}},
		{Name: StagePersist, Run: func(context.Context) error {
			order = append(order, StagePersist)
			persistCalls++
			if persistCalls == 1 {
				return errors.New("store unavailable")
			}
			return nil
		}},
		{Name: StageSnapshot, Run: func(context.Context) error {
			order = append(order, StageSnapshot)
			cancel()
			return nil
		}},
	}
	sleeper := &recordingSleeper{}
	orch, err := NewOrchestrator(stages, testSchedule, sleeper, &seqIDs{}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, orch.Run(ctx))
	assert.Equal(t, []string{
		StageCollect, StagePersist,
		StageCollect, StagePersist, StageSnapshot,
	}, order)
	assert.Equal(t, []time.Duration{
		10 * time.Minute, 10 * time.Minute, 5 * time.Minute,
		10 * time.Minute, 10 * time.Minute, 10 * time.Minute, 2 * time.Hour,
	}, sleeper.Waits())
}

func TestRunRecoversFromPanic(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	stages := []Stage{{Name: "flaky", Run: func(context.Context) error {
		calls++
		if calls == 1 {
			panic("nil map")
		}
		cancel()
		return nil
	}}}
	orch, err := NewOrchestrator(stages, Schedule{}, &recordingSleeper{}, nil, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, orch.Run(ctx))
	assert.Equal(t, 2, calls)
}

func TestRunReturnsNilWhenCancelledDuringStage(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	stages := []Stage{
		{Name: StageCollect, Run: func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		}},
		{Name: StagePersist, Run: func(context.Context) error {
			t.Fatal("persist must not run after cancellation")
			return nil
		}},
	}
	sleeper := &recordingSleeper{}
	orch, err := NewOrchestrator(stages, testSchedule, sleeper, nil, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, orch.Run(ctx))
	assert.Equal(t, []time.Duration{10 * time.Minute}, sleeper.Waits())
}

func TestRunOnceSkipsWaitsAndReturnsError(t *testing.T) {
	t.Parallel()

	boom := errors.New("scan failed")
	var seen []string
	stages := []Stage{
		{Name: StageCollect, Run: func(ctx context.Context) error {
			seen = append(seen, RunID(ctx))
			return boom
		}},
		{Name: StagePersist, Run: func(context.Context) error {
			t.Fatal("persist must not run after a failed collect")
			return nil
		}},
	}
	sleeper := &recordingSleeper{}
	orch, err := NewOrchestrator(stages, testSchedule, sleeper, &seqIDs{}, zap.NewNop())
	require.NoError(t, err)

	err = orch.RunOnce(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "stage collect")
	assert.Empty(t, sleeper.Waits())
	assert.Equal(t, []string{"run-1"}, seen)
}

func TestRunOnceEndToEnd(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.scanner.ids = []int{70}
	h.scanner.next = release.ScanState{StartPage: 2}
	h.details.records = []release.DetailRecord{novemberRecord(70)}

	orch, err := NewOrchestrator(h.stages(t, true).List(), testSchedule, &recordingSleeper{}, &seqIDs{}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, orch.RunOnce(context.Background()))

	got, err := h.releases.Search(context.Background(), "none", "windows")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 70, got[0].AppID)

	snaps, err := h.snapshots.ListByPrefix(context.Background(), "2025-10-17")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, []string{"None"}, snaps[0].Genres)
	require.Len(t, h.publisher.published(), 1)
}
