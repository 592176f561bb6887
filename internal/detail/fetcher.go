// Package detail fetches per-item detail records under the upstream rate limit
// and filters them down to target-month releases.
package detail

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/TembulatC/mira-games-backend/internal/metrics"
	"github.com/TembulatC/mira-games-backend/internal/release"
)

// Config holds the pacing knobs for FetchAll.
type Config struct {
	MinDelay         time.Duration
	MaxDelay         time.Duration
	ThrottleCooldown time.Duration
}

// Fetcher requests detail records one id at a time.
type Fetcher struct {
	cfg     Config
	client  release.DetailClient
	sleeper release.Sleeper
	jitter  func(lo, hi time.Duration) time.Duration
	logger  *zap.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg Config, client release.DetailClient, sleeper release.Sleeper, logger *zap.Logger) (*Fetcher, error) {
	if client == nil {
		return nil, fmt.Errorf("detail client is required")
	}
	if sleeper == nil {
		return nil, fmt.Errorf("sleeper is required")
	}
	if cfg.MinDelay < 0 || cfg.MaxDelay < cfg.MinDelay {
		return nil, fmt.Errorf("invalid delay bounds %s..%s", cfg.MinDelay, cfg.MaxDelay)
	}
	if cfg.ThrottleCooldown <= 0 {
		return nil, fmt.Errorf("throttle cooldown must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:     cfg,
		client:  client,
		sleeper: sleeper,
		jitter:  uniformDelay,
		logger:  logger,
	}, nil
}

// FetchAll fetches ids sequentially and returns their records in input order.
// Throttled requests are retried after the cooldown for as long as it takes.
// Any other failure stops the fetch and returns the records gathered so far
// together with the error. Records served from cache skip the pause.
func (f *Fetcher) FetchAll(ctx context.Context, ids []int) ([]release.DetailRecord, error) {
	records := make([]release.DetailRecord, 0, len(ids))
	for i, id := range ids {
		record, err := f.fetchOne(ctx, id)
		if err != nil {
			return records, err
		}
		records = append(records, record)
		if i < len(ids)-1 && !record.FromCache {
			if err := f.sleeper.Sleep(ctx, f.jitter(f.cfg.MinDelay, f.cfg.MaxDelay)); err != nil {
				return records, fmt.Errorf("pause after detail %d: %w", id, err)
			}
		}
	}
	return records, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, id int) (release.DetailRecord, error) {
	for attempt := 1; ; attempt++ {
		record, err := f.client.FetchDetail(ctx, id)
		switch {
		case err == nil:
			switch {
			case record.FromCache:
				metrics.ObserveDetail("cached")
			case record.Success:
				metrics.ObserveDetail("ok")
			default:
				metrics.ObserveDetail("missing")
			}
			return record, nil
		case release.IsThrottling(err):
			metrics.ObserveDetail("throttled")
			metrics.IncThrottleRetries()
			f.logger.Warn("detail request throttled, cooling down",
				zap.Int("id", id),
				zap.Int("attempt", attempt),
				zap.Duration("cooldown", f.cfg.ThrottleCooldown),
				zap.Error(err),
			)
			if err := f.sleeper.Sleep(ctx, f.cfg.ThrottleCooldown); err != nil {
				return release.DetailRecord{}, fmt.Errorf("cool down before detail %d: %w", id, err)
			}
		default:
			metrics.ObserveDetail("error")
			return release.DetailRecord{}, fmt.Errorf("detail id %d: %w", id, err)
		}
	}
}

func uniformDelay(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
}
