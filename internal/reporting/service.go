package reporting

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Repository exposes the reporting queries the service composes.
type Repository interface {
	CollectionSummary(ctx context.Context, schoolID int64, yearID *int64) (CollectionSummary, error)
	PaymentModeBreakdown(ctx context.Context, schoolID int64, from, to time.Time) ([]ModeBreakdownRow, error)
	Defaulters(ctx context.Context, schoolID int64, asOf time.Time) ([]DefaulterRow, error)
	CountOverdueInstallments(ctx context.Context, asOf time.Time) (int, error)
}

// Service coordinates reporting query execution with the cache layer.
type Service struct {
	repo  Repository
	cache *Cache
	now   func() time.Time
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// WithNow overrides the clock, primarily for tests.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Summary returns the cached collection summary for a school.
func (s *Service) Summary(ctx context.Context, schoolID int64, yearID *int64) (CollectionSummary, error) {
	key, err := s.cache.BuildKey(ctx, keySummary(schoolID, yearID))
	if err != nil {
		return CollectionSummary{}, err
	}
	var out CollectionSummary
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.CollectionSummary(ctx, schoolID, yearID)
	})
	return out, err
}

// ModeBreakdown returns collections by payment mode over a date range.
func (s *Service) ModeBreakdown(ctx context.Context, schoolID int64, from, to time.Time) ([]ModeBreakdownRow, error) {
	key, err := s.cache.BuildKey(ctx, keyModes(schoolID, from.Format("2006-01-02"), to.Format("2006-01-02")))
	if err != nil {
		return nil, err
	}
	var out []ModeBreakdownRow
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.PaymentModeBreakdown(ctx, schoolID, from, to)
	})
	return out, err
}

// Defaulters returns ledgers behind their installment schedule as of today.
func (s *Service) Defaulters(ctx context.Context, schoolID int64) ([]DefaulterRow, error) {
	asOf := s.now()
	key, err := s.cache.BuildKey(ctx, keyDefaulters(schoolID, asOf))
	if err != nil {
		return nil, err
	}
	var out []DefaulterRow
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.Defaulters(ctx, schoolID, asOf)
	})
	return out, err
}

// Dashboard assembles the combined dashboard view. The three underlying
// queries run concurrently.
func (s *Service) Dashboard(ctx context.Context, schoolID int64, yearID *int64) (Dashboard, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var dash Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := s.Summary(gctx, schoolID, yearID)
		if err != nil {
			return err
		}
		dash.Summary = summary
		return nil
	})
	g.Go(func() error {
		modes, err := s.ModeBreakdown(gctx, schoolID, monthStart, now)
		if err != nil {
			return err
		}
		dash.Modes = modes
		return nil
	})
	g.Go(func() error {
		defaulters, err := s.Defaulters(gctx, schoolID)
		if err != nil {
			return err
		}
		dash.Defaulters = defaulters
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	dash.GeneratedAt = now
	return dash, nil
}

// CountOverdueInstallments counts past-due unpaid installments system-wide.
func (s *Service) CountOverdueInstallments(ctx context.Context) (int, error) {
	return s.repo.CountOverdueInstallments(ctx, s.now())
}

// Invalidate bumps the cache version after ledger mutations.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
