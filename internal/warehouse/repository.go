// Package warehouse persists merged chart and weather rows and exposes the
// read surface consumed by the statistics engine and report consumers.
package warehouse

import (
	"context"

	"github.com/tigerroll/soundseasons/internal/domain/model"
)

// Repository is the persistence boundary for warehouse rows.
type Repository interface {
	// Merge upserts a batch of rows atomically, keyed by (week, track_id).
	// Re-merging identical data reports every row unchanged.
	Merge(ctx context.Context, rows []model.WarehouseRow) (model.MergeReport, error)

	// RowsForWeek returns all rows of one week ordered by rank.
	RowsForWeek(ctx context.Context, week model.WeekKey) ([]model.WarehouseRow, error)

	// RowsInRange returns all rows with week in [from, to], ordered by week
	// then rank.
	RowsInRange(ctx context.Context, from, to model.WeekKey) ([]model.WarehouseRow, error)

	// Weeks returns the distinct weeks present in the warehouse in ascending order.
	Weeks(ctx context.Context) ([]model.WeekKey, error)

	// Close releases the underlying connection.
	Close() error
}
