// Package scanner walks the upcoming-release listing and collects the ids of
// items releasing in the target month.
package scanner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TembulatC/mira-games-backend/internal/metrics"
	"github.com/TembulatC/mira-games-backend/internal/release"
	"github.com/TembulatC/mira-games-backend/internal/storefront"
)

// Config controls how far a scan reaches.
type Config struct {
	// ListingURL is the first listing page; the page parameter is replaced.
	ListingURL string
	// DriftPages is how many pages before the resume offset a scan starts.
	DriftPages int
	// MaxPages bounds the number of pages one scan may fetch. Zero disables
	// the bound.
	MaxPages int
}

// Scanner classifies listing pages against the rolling month window.
type Scanner struct {
	cfg     Config
	fetcher release.PageFetcher
	pacer   release.Pacer
	logger  *zap.Logger
}

// New creates a Scanner. pacer may be nil.
func New(cfg Config, fetcher release.PageFetcher, pacer release.Pacer, logger *zap.Logger) (*Scanner, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}
	if cfg.ListingURL == "" {
		return nil, fmt.Errorf("listing url is required")
	}
	if cfg.DriftPages < 0 || cfg.MaxPages < 0 {
		return nil, fmt.Errorf("drift and max pages must be >= 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		cfg:     cfg,
		fetcher: fetcher,
		pacer:   pacer,
		logger:  logger,
	}, nil
}

// Scan reads listing pages from a little before state.StartPage until the
// page on which an overrun-month item appears. Items are classified against
// window, which the caller fixes for the whole run. It returns the
// target-month ids in discovery order and the state the next scan should
// resume from.
func (s *Scanner) Scan(ctx context.Context, window release.TargetWindow, state release.ScanState) ([]int, release.ScanState, error) {
	first := max(1, state.StartPage-s.cfg.DriftPages)

	var (
		ids       []int
		seen      = make(map[int]struct{})
		candidate int
		stop      bool
	)
	logger := s.logger.With(
		zap.Int("first_page", first),
		zap.Stringer("target_month", window.Target),
	)
	logger.Info("listing scan started")

	for page := first; !stop; page++ {
		if s.cfg.MaxPages > 0 && page-first >= s.cfg.MaxPages {
			return nil, release.ScanState{}, fmt.Errorf("scan from page %d: %w", first, release.ErrPageLimitExceeded)
		}
		items, err := s.readPage(ctx, page)
		if err != nil {
			metrics.ObserveListingPage("error")
			return nil, release.ScanState{}, err
		}
		if len(items) == 0 {
			metrics.ObserveListingPage("empty")
			logger.Debug("empty listing page", zap.Int("page", page))
			continue
		}
		metrics.ObserveListingPage("ok")

		// The whole page is classified even after an overrun item, since
		// target-month items can be interleaved after it.
		for _, item := range items {
			switch window.Classify(item.ReleaseDateText) {
			case release.ClassTarget:
				if candidate == 0 {
					candidate = page
				}
				if _, dup := seen[item.ID]; dup {
					continue
				}
				seen[item.ID] = struct{}{}
				ids = append(ids, item.ID)
			case release.ClassOverrun:
				stop = true
			}
		}
		if stop {
			logger.Debug("overrun month reached", zap.Int("page", page))
		}
	}

	next := release.DefaultScanState()
	if candidate > 0 {
		next.StartPage = candidate
	}
	metrics.AddDiscoveredIDs(len(ids))
	logger.Info("listing scan finished",
		zap.Int("ids", len(ids)),
		zap.Int("next_start_page", next.StartPage),
	)
	return ids, next, nil
}

func (s *Scanner) readPage(ctx context.Context, page int) ([]release.CatalogItemStub, error) {
	url, err := storefront.ListingURL(s.cfg.ListingURL, page)
	if err != nil {
		return nil, err
	}
	if s.pacer != nil {
		if err := s.pacer.Wait(ctx, url); err != nil {
			return nil, fmt.Errorf("wait for listing page %d: %w", page, err)
		}
	}
	resp, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch listing page %d: %w", page, err)
	}
	items, err := storefront.ParseListing(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing page %d: %w", page, err)
	}
	return items, nil
}
