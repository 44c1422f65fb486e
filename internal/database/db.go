package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apex/log"
	_ "github.com/lib/pq"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)

	return &DB{db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *DB {
	return &DB{db}
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		log.WithField("migration", filename).Info("running migration")

		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	log.WithField("count", len(sqlFiles)).Info("migrations completed")
	return nil
}

const insertAlertQuery = `
		INSERT INTO alerts_log (
			source, record_id, drone_id, drone_name, title, message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source, record_id, created_at) DO NOTHING
	`

// InsertAlerts archives a batch of alerts in one transaction and returns how
// many rows were new. Redelivered alerts are ignored.
func (db *DB) InsertAlerts(ctx context.Context, alerts []AlertRow) (int, error) {
	if len(alerts) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertAlertQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, a := range alerts {
		res, err := stmt.ExecContext(ctx,
			a.Source,
			a.RecordID,
			a.DroneID,
			a.DroneName,
			a.Title,
			a.Message,
			a.CreatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert alert %d: %w", a.RecordID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit alerts: %w", err)
	}
	return inserted, nil
}

// ListAlerts returns the newest archived alerts.
func (db *DB) ListAlerts(ctx context.Context, limit int) ([]AlertRow, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, source, record_id, drone_id, drone_name, title, message,
		       created_at, archived_at
		FROM alerts_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []AlertRow
	for rows.Next() {
		var a AlertRow
		if err := rows.Scan(
			&a.ID,
			&a.Source,
			&a.RecordID,
			&a.DroneID,
			&a.DroneName,
			&a.Title,
			&a.Message,
			&a.CreatedAt,
			&a.ArchivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

// CountAlertsByDrone returns archived alert counts keyed by drone id.
func (db *DB) CountAlertsByDrone(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT drone_id, COUNT(*) FROM alerts_log GROUP BY drone_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var droneID string
		var n int
		if err := rows.Scan(&droneID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan alert count: %w", err)
		}
		counts[droneID] = n
	}
	return counts, rows.Err()
}
