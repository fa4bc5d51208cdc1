// Package report exposes the read-only surface downstream consumers use to
// inspect merged rows and correlation results. Consumers never mutate the
// warehouse through this boundary.
package report

import (
	"context"
	"sync"

	"github.com/tigerroll/soundseasons/internal/domain/model"
	"github.com/tigerroll/soundseasons/internal/warehouse"
)

// Boundary is the read-only consumer interface.
type Boundary interface {
	// RowsForWeek returns the merged rows of one week ordered by rank.
	RowsForWeek(ctx context.Context, week model.WeekKey) ([]model.WarehouseRow, error)
	// RowsInRange returns the merged rows with week in [from, to].
	RowsInRange(ctx context.Context, from, to model.WeekKey) ([]model.WarehouseRow, error)
	// Correlations returns the correlation results of the most recent run.
	Correlations(ctx context.Context) ([]model.CorrelationResult, error)
	// Trends returns the seasonal trend aggregates of the most recent run.
	Trends(ctx context.Context) ([]model.TrendAggregate, error)
	// SeasonalContrasts returns the winter/summer feature contrasts of the
	// most recent run.
	SeasonalContrasts(ctx context.Context) ([]model.SeasonalContrast, error)
}

// Service implements Boundary over the warehouse repository and the latest
// computed correlation results.
type Service struct {
	repo warehouse.Repository

	mu        sync.RWMutex
	results   []model.CorrelationResult
	trends    []model.TrendAggregate
	contrasts []model.SeasonalContrast
}

var _ Boundary = (*Service)(nil)

// NewService creates a report Service.
func NewService(repo warehouse.Repository) *Service {
	return &Service{repo: repo}
}

// SetCorrelations replaces the published correlation results. The pipeline
// calls this after each statistics stage.
func (s *Service) SetCorrelations(results []model.CorrelationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append([]model.CorrelationResult(nil), results...)
}

// SetTrends replaces the published seasonal aggregates and contrasts. The
// pipeline calls this after each statistics stage.
func (s *Service) SetTrends(trends []model.TrendAggregate, contrasts []model.SeasonalContrast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trends = append([]model.TrendAggregate(nil), trends...)
	s.contrasts = append([]model.SeasonalContrast(nil), contrasts...)
}

// RowsForWeek returns the merged rows of one week ordered by rank.
func (s *Service) RowsForWeek(ctx context.Context, week model.WeekKey) ([]model.WarehouseRow, error) {
	return s.repo.RowsForWeek(ctx, week)
}

// RowsInRange returns the merged rows with week in [from, to].
func (s *Service) RowsInRange(ctx context.Context, from, to model.WeekKey) ([]model.WarehouseRow, error) {
	return s.repo.RowsInRange(ctx, from, to)
}

// Correlations returns a copy of the most recent run's correlation results.
func (s *Service) Correlations(ctx context.Context) ([]model.CorrelationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.CorrelationResult(nil), s.results...), nil
}

// Trends returns a copy of the most recent run's seasonal trend aggregates.
func (s *Service) Trends(ctx context.Context) ([]model.TrendAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.TrendAggregate(nil), s.trends...), nil
}

// SeasonalContrasts returns a copy of the most recent run's winter/summer
// contrasts.
func (s *Service) SeasonalContrasts(ctx context.Context) ([]model.SeasonalContrast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.SeasonalContrast(nil), s.contrasts...), nil
}
