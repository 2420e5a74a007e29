package repository

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/abelzeko/soil-monitor/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *SQLiteReadingRepository {
	t.Helper()
	repo, err := NewSQLiteReadingRepository(filepath.Join(t.TempDir(), "nested", "test-soildata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSaveAndQueryReadings(t *testing.T) {
	repo := newTestRepository(t)
	base := time.Date(2025, time.June, 3, 8, 0, 0, 0, time.UTC)

	readings := []entities.Reading{
		{Monitor: "Mocked Soil Monitor", Saturation: 40, Temp: 18.2, Timestamp: base},
		{Monitor: "Mocked Soil Monitor", Saturation: 12, Temp: 19.0, Timestamp: base.Add(5 * time.Minute),
			Breaches: []entities.Breach{{Kind: entities.BreachSaturationLow, Value: 12, Limit: 20}}},
		{Monitor: "Mocked Soil Monitor", Saturation: 35, Temp: 20.5, Timestamp: base.Add(10 * time.Minute)},
	}
	require.NoError(t, repo.SaveReadings(readings))

	latest, err := repo.GetLatestReading()
	require.NoError(t, err)
	assert.Equal(t, 35, latest.Saturation)
	assert.Equal(t, 20.5, latest.Temp)
	assert.True(t, latest.Timestamp.Equal(base.Add(10*time.Minute)))
	assert.NotZero(t, latest.ID)

	history, err := repo.GetReadings(base.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 35, history[0].Saturation, "newest first")
	require.Len(t, history[1].Breaches, 1)
	assert.Equal(t, entities.BreachSaturationLow, history[1].Breaches[0].Kind)

	limited, err := repo.GetReadings(time.Time{}, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	count, err := repo.CountBreaches(base)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	last, err := repo.GetLastUpdateTime()
	require.NoError(t, err)
	assert.True(t, last.Equal(base.Add(10*time.Minute)))
}

func TestSaveReadingsUpsertsSameTimestamp(t *testing.T) {
	repo := newTestRepository(t)
	ts := time.Date(2025, time.June, 3, 8, 0, 0, 0, time.UTC)

	first := []entities.Reading{{Monitor: "m", Saturation: 10, Temp: 1, Timestamp: ts}}
	second := []entities.Reading{{Monitor: "m", Saturation: 60, Temp: 2, Timestamp: ts}}
	require.NoError(t, repo.SaveReadings(first))
	require.NoError(t, repo.SaveReadings(second))
	assert.NotZero(t, first[0].ID)
	assert.Equal(t, first[0].ID, second[0].ID, "an upsert keeps the row id")

	all, err := repo.GetReadings(time.Time{}, 100)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 60, all[0].Saturation)
	assert.Equal(t, first[0].ID, all[0].ID)
}

func TestSaveReadingsWritesBackStoredFields(t *testing.T) {
	repo := newTestRepository(t)
	taken := time.Date(2025, time.June, 3, 10, 0, 0, 987654321, time.FixedZone("CEST", 2*60*60))

	readings := []entities.Reading{
		{Monitor: "m", Saturation: 50, Temp: 20, Timestamp: taken},
		{Monitor: "m", Saturation: 51, Temp: 20, Timestamp: taken.Add(time.Second)},
	}
	require.NoError(t, repo.SaveReadings(readings))
	assert.NotEqual(t, readings[0].ID, readings[1].ID)
	assert.Equal(t, time.Date(2025, time.June, 3, 8, 0, 0, 987000000, time.UTC), readings[0].Timestamp)
	assert.Equal(t, []entities.Breach{}, readings[0].Breaches)

	latest, err := repo.GetLatestReading()
	require.NoError(t, err)
	assert.Equal(t, readings[1].ID, latest.ID)
	assert.True(t, latest.Timestamp.Equal(readings[1].Timestamp))
	assert.NotNil(t, latest.Breaches)
	assert.Empty(t, latest.Breaches)
}

func TestEmptyRepository(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetLatestReading()
	assert.ErrorIs(t, err, ErrNoReadings)

	last, err := repo.GetLastUpdateTime()
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	history, err := repo.GetReadings(time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPruneBefore(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()

	require.NoError(t, repo.SaveReadings([]entities.Reading{
		{Monitor: "m", Saturation: 30, Temp: 10, Timestamp: now.Add(-48 * time.Hour)},
		{Monitor: "m", Saturation: 31, Temp: 10, Timestamp: now.Add(-25 * time.Hour)},
		{Monitor: "m", Saturation: 32, Temp: 10, Timestamp: now.Add(-time.Hour)},
	}))

	removed, err := repo.PruneBefore(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	left, err := repo.GetReadings(time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, 32, left[0].Saturation)
}

func TestSaveReadingsRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO soil_readings")
	prep.ExpectQuery().WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	repo := &SQLiteReadingRepository{db: db}
	err = repo.SaveReadings([]entities.Reading{{Monitor: "m", Saturation: 1, Timestamp: time.Now()}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReadingsReportsCommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO soil_readings")
	prep.ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	repo := &SQLiteReadingRepository{db: db}
	err = repo.SaveReadings([]entities.Reading{{Monitor: "m", Saturation: 1, Timestamp: time.Now()}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountBreachesReportsQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("no such table"))

	repo := &SQLiteReadingRepository{db: db}
	_, err = repo.CountBreaches(time.Time{})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
