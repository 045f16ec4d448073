// Package postgres is the persistence collaborator of spec §6: it
// stores a SchedulingResult's entries and violations under a scenario
// identifier with an incrementing version label "v<N>".
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB provides scheduling-result persistence backed by Postgres.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB opens a connection pool and verifies connectivity.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// RunMigrations executes every migration file in lexical order.
func (db *DB) RunMigrations(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+filename)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}
		if _, err := db.pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}
	return nil
}

// NextVersion returns the version label to use for the next save under
// scenarioID: the highest stored version plus one, or 1 if none exist.
func (db *DB) NextVersion(ctx context.Context, scenarioID string) (int, error) {
	var maxVersion *int
	err := db.pool.QueryRow(ctx, `
		SELECT MAX(version) FROM scheduling_result WHERE scenario_id = $1
	`, scenarioID).Scan(&maxVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to query next version: %w", err)
	}
	if maxVersion == nil {
		return 1, nil
	}
	return *maxVersion + 1, nil
}

// SaveResult stores result under (scenarioID, version) in a single
// transaction, along with its entries and violations.
func (db *DB) SaveResult(ctx context.Context, scenarioID string, version int, month string, result model.SchedulingResult) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	resultID := uuid.New().String()
	_, err = tx.Exec(ctx, `
		INSERT INTO scheduling_result (id, scenario_id, version, month, engine, status, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, resultID, scenarioID, version, month, string(result.Engine), string(result.Status), result.DurationMS)
	if err != nil {
		return fmt.Errorf("failed to insert scheduling result: %w", err)
	}

	for _, e := range result.Entries {
		var absenceType *string
		if e.AbsenceType != nil {
			s := string(*e.AbsenceType)
			absenceType = &s
		}
		var comment *string
		if e.Comment != "" {
			comment = &e.Comment
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO scheduling_entry (result_id, resource_id, entry_date, shift_code, absence_type, comment)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, resultID, e.ResourceID, e.Date, e.ShiftCode, absenceType, comment)
		if err != nil {
			return fmt.Errorf("failed to insert scheduling entry: %w", err)
		}
	}

	for _, v := range result.Violations {
		_, err := tx.Exec(ctx, `
			INSERT INTO scheduling_violation (result_id, code, message, severity, scope, entry_date, resource_id, iso_week)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, resultID, v.Code, v.Message, string(v.Severity), string(v.Scope), v.Day, v.ResourceID, v.ISOWeek)
		if err != nil {
			return fmt.Errorf("failed to insert scheduling violation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// VersionLabel formats a stored version the way scenario consumers
// expect it: "v<N>".
func VersionLabel(version int) string {
	return fmt.Sprintf("v%d", version)
}
