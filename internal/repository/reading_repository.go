// Package repository provides data access implementations
package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/abelzeko/soil-monitor/internal/entities"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

// ErrNoReadings is returned when a lookup finds no stored reading
var ErrNoReadings = errors.New("no readings stored")

// ReadingRepository defines the interface for soil reading persistence operations
type ReadingRepository interface {
	SaveReadings(readings []entities.Reading) error
	GetLatestReading() (entities.Reading, error)
	GetReadings(since time.Time, limit int) ([]entities.Reading, error)
	GetLastUpdateTime() (time.Time, error)
	CountBreaches(since time.Time) (int, error)
	PruneBefore(cutoff time.Time) (int64, error)
	Close() error
}

// SQLiteReadingRepository implements ReadingRepository using SQLite
type SQLiteReadingRepository struct {
	db     *sql.DB
	DBPath string
}

// NewSQLiteReadingRepository creates and initializes a new SQLite repository
func NewSQLiteReadingRepository(dbPath string) (*SQLiteReadingRepository, error) {
	if dbPath == "" {
		dbPath = filepath.Join("data", "soildata.db")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Printf("Opening database at %s", dbPath)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; the scheduler and HTTP handlers share the handle.
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS soil_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		monitor TEXT NOT NULL,
		saturation INTEGER NOT NULL,
		temp REAL NOT NULL,
		breaches TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL,
		UNIQUE(monitor, timestamp)
	);
	CREATE INDEX IF NOT EXISTS idx_readings_timestamp ON soil_readings(timestamp);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteReadingRepository{
		db:     db,
		DBPath: dbPath,
	}, nil
}

// Close closes the database connection
func (r *SQLiteReadingRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveReadings stores readings in a single transaction. Each reading gets its
// stored id and normalized timestamp written back.
func (r *SQLiteReadingRepository) SaveReadings(readings []entities.Reading) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO soil_readings(monitor, saturation, temp, breaches, timestamp)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(monitor, timestamp) DO UPDATE SET
		saturation=excluded.saturation,
		temp=excluded.temp,
		breaches=excluded.breaches
		RETURNING id
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range readings {
		rd := &readings[i]
		breaches, err := encodeBreaches(rd.Breaches)
		if err != nil {
			tx.Rollback()
			return err
		}
		ts := normalizeTime(rd.Timestamp)
		if err := stmt.QueryRow(rd.Monitor, rd.Saturation, rd.Temp, breaches, ts).Scan(&rd.ID); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert reading from %s at %s: %w", rd.Monitor, rd.Timestamp.Format(time.RFC3339), err)
		}
		rd.Timestamp = ts
		if rd.Breaches == nil {
			rd.Breaches = []entities.Breach{}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Debugf("Saved %d soil readings", len(readings))
	return nil
}

// GetLatestReading returns the most recent reading
func (r *SQLiteReadingRepository) GetLatestReading() (entities.Reading, error) {
	readings, err := r.queryReadings(`
		SELECT id, monitor, saturation, temp, breaches, timestamp
		FROM soil_readings
		ORDER BY timestamp DESC
		LIMIT 1`)
	if err != nil {
		return entities.Reading{}, err
	}
	if len(readings) == 0 {
		return entities.Reading{}, ErrNoReadings
	}
	return readings[0], nil
}

// GetReadings returns readings taken at or after since, newest first
func (r *SQLiteReadingRepository) GetReadings(since time.Time, limit int) ([]entities.Reading, error) {
	return r.queryReadings(`
		SELECT id, monitor, saturation, temp, breaches, timestamp
		FROM soil_readings
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?`, normalizeTime(since), limit)
}

// GetLastUpdateTime returns the most recent timestamp in the database, or the zero time
func (r *SQLiteReadingRepository) GetLastUpdateTime() (time.Time, error) {
	latest, err := r.GetLatestReading()
	if errors.Is(err, ErrNoReadings) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last update time: %w", err)
	}
	return latest.Timestamp, nil
}

// CountBreaches counts readings at or after since that crossed a limit
func (r *SQLiteReadingRepository) CountBreaches(since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM soil_readings WHERE breaches != '' AND timestamp >= ?",
		normalizeTime(since),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count abnormal readings: %w", err)
	}
	return count, nil
}

// PruneBefore deletes readings older than cutoff and returns how many were removed
func (r *SQLiteReadingRepository) PruneBefore(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM soil_readings WHERE timestamp < ?", normalizeTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune readings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned readings: %w", err)
	}
	return n, nil
}

func (r *SQLiteReadingRepository) queryReadings(query string, args ...any) ([]entities.Reading, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query soil readings: %w", err)
	}
	defer rows.Close()

	var result []entities.Reading
	for rows.Next() {
		var rd entities.Reading
		var breaches string
		if err := rows.Scan(
			&rd.ID,
			&rd.Monitor,
			&rd.Saturation,
			&rd.Temp,
			&breaches,
			&rd.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if rd.Breaches, err = decodeBreaches(breaches); err != nil {
			return nil, err
		}
		result = append(result, rd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// normalizeTime keeps stored timestamps in one zone and precision so text comparison orders them
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func encodeBreaches(breaches []entities.Breach) (string, error) {
	if len(breaches) == 0 {
		return "", nil
	}
	b, err := json.Marshal(breaches)
	if err != nil {
		return "", fmt.Errorf("failed to encode breaches: %w", err)
	}
	return string(b), nil
}

func decodeBreaches(s string) ([]entities.Breach, error) {
	breaches := []entities.Breach{}
	if s == "" {
		return breaches, nil
	}
	if err := json.Unmarshal([]byte(s), &breaches); err != nil {
		return nil, fmt.Errorf("failed to decode breaches %q: %w", s, err)
	}
	return breaches, nil
}
