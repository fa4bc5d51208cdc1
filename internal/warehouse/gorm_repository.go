package warehouse

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/soundseasons/internal/adapter/database"
	"github.com/tigerroll/soundseasons/internal/domain/model"
	"github.com/tigerroll/soundseasons/internal/support/exception"
	"github.com/tigerroll/soundseasons/internal/support/logger"
)

const moduleName = "warehouse"

// gormRepository implements Repository on a GORM connection.
type gormRepository struct {
	conn database.DBConnection
	now  func() time.Time
}

var _ Repository = (*gormRepository)(nil)

// NewGormRepository creates a Repository backed by the given connection.
func NewGormRepository(conn database.DBConnection) Repository {
	return &gormRepository{conn: conn, now: time.Now}
}

type rowKey struct {
	week    string
	trackID string
}

// Merge upserts the batch in one transaction. Existing rows are loaded for the
// affected weeks first so rows can be classified as inserted, updated, or
// unchanged; unchanged rows are not rewritten.
func (r *gormRepository) Merge(ctx context.Context, rows []model.WarehouseRow) (model.MergeReport, error) {
	var report model.MergeReport
	if len(rows) == 0 {
		return report, nil
	}
	rows = dedupeBatch(rows)

	weekSet := make(map[string]struct{})
	for _, row := range rows {
		weekSet[row.Week] = struct{}{}
	}
	weeks := make([]string, 0, len(weekSet))
	for week := range weekSet {
		weeks = append(weeks, week)
	}

	err := r.conn.GORM().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []model.WarehouseRow
		if err := tx.Where("week IN ?", weeks).Find(&existing).Error; err != nil {
			return exception.New(moduleName, "failed to load existing rows", err, true)
		}

		existingByKey := make(map[rowKey]model.WarehouseRow, len(existing))
		for _, row := range existing {
			existingByKey[rowKey{row.Week, row.TrackID}] = row
		}

		mergedAt := r.now().UTC()
		var upserts []model.WarehouseRow
		for _, row := range rows {
			row.MergedAt = mergedAt
			prev, exists := existingByKey[rowKey{row.Week, row.TrackID}]
			if !exists {
				report.Inserted++
				upserts = append(upserts, row)
				continue
			}
			// A chart-only row (weather outage) must not blank out weather
			// merged by an earlier run.
			if row.TemperatureMean == nil && row.PrecipitationMM == nil &&
				row.WindSpeedKMH == nil && row.SunshineHours == nil && row.DaysObserved == nil {
				row.TemperatureMean = prev.TemperatureMean
				row.PrecipitationMM = prev.PrecipitationMM
				row.WindSpeedKMH = prev.WindSpeedKMH
				row.SunshineHours = prev.SunshineHours
				row.DaysObserved = prev.DaysObserved
			}
			// Same rule for the holiday calendar: an outage must not blank out
			// a previously merged share.
			if row.HolidayShare == nil {
				row.HolidayShare = prev.HolidayShare
			}
			if prev.SameChartAttributes(row) && prev.SameWeatherAttributes(row) {
				report.Unchanged++
				continue
			}
			if !prev.SameChartAttributes(row) {
				// Incoming chart attributes win; the conflict is visible in logs only.
				logger.Warnf("%v for %s/%s: stored rank %d, incoming rank %d. Overwriting.",
					exception.ErrMergeConflict, row.Week, row.TrackID, prev.Rank, row.Rank)
			}
			report.Updated++
			upserts = append(upserts, row)
		}

		if len(upserts) == 0 {
			return nil
		}

		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "week"}, {Name: "track_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"rank", "title", "artist", "genres",
				"valence", "energy", "tempo", "danceability", "acousticness", "loudness",
				"temperature_mean", "precipitation_mm", "wind_speed_kmh", "sunshine_hours",
				"days_observed", "holiday_share", "merged_at",
			}),
		}).Create(&upserts).Error
		if err != nil {
			return exception.New(moduleName, "failed to upsert rows", err, true)
		}
		return nil
	})
	if err != nil {
		return model.MergeReport{}, err
	}

	logger.Infof("Merged %d rows: %d inserted, %d updated, %d unchanged.",
		len(rows), report.Inserted, report.Updated, report.Unchanged)
	return report, nil
}

// dedupeBatch collapses rows sharing a primary key within one batch so a
// duplicated provider payload cannot be counted twice. The last row wins.
func dedupeBatch(rows []model.WarehouseRow) []model.WarehouseRow {
	deduped := make([]model.WarehouseRow, 0, len(rows))
	byKey := make(map[rowKey]int, len(rows))
	for _, row := range rows {
		key := rowKey{row.Week, row.TrackID}
		if i, dup := byKey[key]; dup {
			logger.Warnf("Duplicate row %s/%s in merge batch. Keeping the later one.", row.Week, row.TrackID)
			deduped[i] = row
			continue
		}
		byKey[key] = len(deduped)
		deduped = append(deduped, row)
	}
	return deduped
}

// RowsForWeek returns all rows of one week ordered by rank.
func (r *gormRepository) RowsForWeek(ctx context.Context, week model.WeekKey) ([]model.WarehouseRow, error) {
	var rows []model.WarehouseRow
	err := r.conn.GORM().WithContext(ctx).
		Where("week = ?", week.String()).
		Order("rank ASC").
		Find(&rows).Error
	if err != nil {
		return nil, exception.New(moduleName, "failed to query rows for week", err, true)
	}
	return rows, nil
}

// RowsInRange returns all rows with week in [from, to], ordered by week then rank.
// The string form of week keys sorts chronologically.
func (r *gormRepository) RowsInRange(ctx context.Context, from, to model.WeekKey) ([]model.WarehouseRow, error) {
	var rows []model.WarehouseRow
	err := r.conn.GORM().WithContext(ctx).
		Where("week >= ? AND week <= ?", from.String(), to.String()).
		Order("week ASC, rank ASC").
		Find(&rows).Error
	if err != nil {
		return nil, exception.New(moduleName, "failed to query rows in range", err, true)
	}
	return rows, nil
}

// Weeks returns the distinct weeks present in the warehouse in ascending order.
func (r *gormRepository) Weeks(ctx context.Context) ([]model.WeekKey, error) {
	var weekStrings []string
	err := r.conn.GORM().WithContext(ctx).
		Model(&model.WarehouseRow{}).
		Distinct("week").
		Pluck("week", &weekStrings).Error
	if err != nil {
		return nil, exception.New(moduleName, "failed to query distinct weeks", err, true)
	}

	weeks := make([]model.WeekKey, 0, len(weekStrings))
	for _, s := range weekStrings {
		week, err := model.ParseWeekKey(s)
		if err != nil {
			return nil, exception.New(moduleName, "invalid week key in warehouse", err, false)
		}
		weeks = append(weeks, week)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })
	return weeks, nil
}

// Close closes the underlying connection.
func (r *gormRepository) Close() error {
	return r.conn.Close()
}
