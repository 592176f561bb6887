package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TembulatC/mira-games-backend/internal/metrics"
	"github.com/TembulatC/mira-games-backend/internal/release"
)

// Schedule holds the orchestrator waits.
type Schedule struct {
	// StageDelay is waited before every stage.
	StageDelay time.Duration
	// CycleDelay is waited after the last stage of a successful cycle.
	CycleDelay time.Duration
	// RecoveryDelay is waited after a failed cycle before starting over.
	RecoveryDelay time.Duration
}

// Orchestrator runs stages in order, forever, restarting the whole sequence
// after any failure.
type Orchestrator struct {
	stages   []Stage
	schedule Schedule
	sleeper  release.Sleeper
	ids      release.IDGenerator
	logger   *zap.Logger
}

// NewOrchestrator creates an Orchestrator. ids may be nil.
func NewOrchestrator(
	stages []Stage,
	schedule Schedule,
	sleeper release.Sleeper,
	ids release.IDGenerator,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("at least one stage is required")
	}
	for i, st := range stages {
		if st.Name == "" || st.Run == nil {
			return nil, fmt.Errorf("stage %d must have a name and a run func", i)
		}
	}
	if sleeper == nil {
		return nil, fmt.Errorf("sleeper is required")
	}
	if schedule.StageDelay < 0 || schedule.CycleDelay < 0 || schedule.RecoveryDelay < 0 {
		return nil, fmt.Errorf("schedule delays must be >= 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		stages:   stages,
		schedule: schedule,
		sleeper:  sleeper,
		ids:      ids,
		logger:   logger,
	}, nil
}

// Run loops until ctx is cancelled and then returns nil. A failed stage is
// logged, the recovery delay is waited, and the cycle restarts from its first
// stage.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline started", zap.Int("stages", len(o.stages)))
	for {
		err := o.cycle(ctx, true)
		if ctx.Err() != nil {
			o.logger.Info("pipeline stopped")
			return nil
		}
		if err == nil {
			continue
		}

		metrics.IncPipelineRestarts()
		o.logger.Error("pipeline cycle failed; restarting",
			zap.Error(err),
			zap.Duration("recovery_delay", o.schedule.RecoveryDelay),
		)
		if err := o.sleeper.Sleep(ctx, o.schedule.RecoveryDelay); err != nil {
			o.logger.Info("pipeline stopped")
			return nil
		}
	}
}

// RunOnce runs every stage once without waits and returns the first error.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	return o.cycle(ctx, false)
}

func (o *Orchestrator) cycle(ctx context.Context, wait bool) error {
	runID := o.newRunID()
	ctx = WithRunID(ctx, runID)
	logger := o.logger.With(zap.String("run_id", runID))
	logger.Info("pipeline cycle started")

	for _, st := range o.stages {
		if wait {
			if err := o.sleeper.Sleep(ctx, o.schedule.StageDelay); err != nil {
				return fmt.Errorf("wait before %s: %w", st.Name, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("before %s: %w", st.Name, err)
		}
		if err := o.runStage(ctx, logger, st); err != nil {
			return err
		}
	}

	logger.Info("pipeline cycle finished")
	if wait {
		if err := o.sleeper.Sleep(ctx, o.schedule.CycleDelay); err != nil {
			return fmt.Errorf("wait for next cycle: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) runStage(ctx context.Context, logger *zap.Logger, st Stage) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", st.Name, r)
		}
		status := "ok"
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			status = "cancelled"
		default:
			status = "error"
		}
		elapsed := time.Since(start)
		metrics.ObserveStage(st.Name, status, elapsed)
		logger.Debug("stage finished",
			zap.String("stage", st.Name),
			zap.String("status", status),
			zap.Duration("elapsed", elapsed),
		)
	}()

	if runErr := st.Run(ctx); runErr != nil {
		return fmt.Errorf("stage %s: %w", st.Name, runErr)
	}
	return nil
}

func (o *Orchestrator) newRunID() string {
	if o.ids == nil {
		return ""
	}
	id, err := o.ids.NewID()
	if err != nil {
		o.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}
