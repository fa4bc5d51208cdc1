package warehouse_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/soundseasons/internal/adapter/database/config"
	gormadapter "github.com/tigerroll/soundseasons/internal/adapter/database/gorm"
	"github.com/tigerroll/soundseasons/internal/domain/model"
	"github.com/tigerroll/soundseasons/internal/support/exception"
	"github.com/tigerroll/soundseasons/internal/warehouse"
)

// setupMockRepository wires the repository onto a mocked SQL connection so
// query shapes and error propagation can be asserted without a real database.
func setupMockRepository(t *testing.T) (sqlmock.Sqlmock, warehouse.Repository) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	conn := gormadapter.NewGormDBAdapter(gormDB, dbconfig.DatabaseConfig{Type: "mock_db"}, "mock_db")
	return mock, warehouse.NewGormRepository(conn)
}

func TestRowsForWeekQueryShape(t *testing.T) {
	mock, repo := setupMockRepository(t)

	columns := []string{"week", "track_id", "rank", "title", "artist", "valence", "temperature_mean"}
	mock.ExpectQuery("SELECT(.+)FROM `warehouse_rows`(.+)week = (.+)ORDER BY(.+)rank(.+)").
		WithArgs("2024-W01").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("2024-W01", "a", 1, "One", "A", 0.5, 3.5).
			AddRow("2024-W01", "b", 2, "Two", "B", 0.6, nil))

	rows, err := repo.RowsForWeek(context.Background(), model.WeekKey{Year: 2024, Week: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].TrackID)
	require.NotNil(t, rows[0].TemperatureMean)
	assert.Equal(t, 3.5, *rows[0].TemperatureMean)
	assert.Nil(t, rows[1].TemperatureMean)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWeeksPropagatesQueryErrorAsRetryable(t *testing.T) {
	mock, repo := setupMockRepository(t)

	mock.ExpectQuery("SELECT DISTINCT(.+)`week`(.+)FROM `warehouse_rows`").
		WillReturnError(errors.New("connection lost"))

	_, err := repo.Weeks(context.Background())
	require.Error(t, err)
	assert.True(t, exception.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeRollsBackOnLoadFailure(t *testing.T) {
	mock, repo := setupMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM `warehouse_rows`(.+)week IN").
		WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	row := model.NewWarehouseRow(model.ChartEntry{
		Week: model.WeekKey{Year: 2024, Week: 1}, Rank: 1, TrackID: "a",
	}, nil)
	_, err := repo.Merge(context.Background(), []model.WarehouseRow{row})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
