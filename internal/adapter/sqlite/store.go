// Package sqlite persists deployment and container state in a local SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"searchdock/internal/deploy"

	_ "modernc.org/sqlite"
)

var (
	_ deploy.DeploymentStore = (*Store)(nil)
	_ deploy.ContainerStore  = (*Store)(nil)
)

// Store implements the deploy stores over one SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the state database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set state db journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set state db busy timeout: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS deployments (
	id TEXT PRIMARY KEY,
	stack TEXT NOT NULL,
	spec_json TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize deployments schema: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS containers (
	id TEXT PRIMARY KEY,
	stack TEXT NOT NULL,
	deploy_id TEXT NOT NULL,
	service TEXT NOT NULL,
	container_name TEXT NOT NULL,
	spec_json TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize containers schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) InsertDeployment(ctx context.Context, row deploy.DeploymentRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deployments (id, stack, spec_json, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		row.ID, row.Stack, row.SpecJSON, row.Status.String(), row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert deployment %q: %w", row.ID, err)
	}
	return nil
}

func (s *Store) UpdateDeployment(ctx context.Context, row deploy.DeploymentRow) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET stack = ?, spec_json = ?, status = ?, updated_at = ? WHERE id = ?`,
		row.Stack, row.SpecJSON, row.Status.String(), row.UpdatedAt, row.ID,
	)
	if err != nil {
		return fmt.Errorf("update deployment %q: %w", row.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update deployment %q: %w", row.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update deployment %q: row not found", row.ID)
	}
	return nil
}

func (s *Store) GetDeployment(ctx context.Context, id string) (deploy.DeploymentRow, bool, error) {
	row, err := scanDeployment(s.db.QueryRowContext(ctx,
		`SELECT id, stack, spec_json, status, created_at, updated_at FROM deployments WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return deploy.DeploymentRow{}, false, nil
		}
		return deploy.DeploymentRow{}, false, fmt.Errorf("query deployment %q: %w", id, err)
	}
	return row, true, nil
}

// LatestDeployment returns the most recently inserted deployment for a
// stack. Insertion order is authoritative; created_at strings drop trailing
// zeros and do not sort reliably within a second.
func (s *Store) LatestDeployment(ctx context.Context, stack string) (deploy.DeploymentRow, bool, error) {
	row, err := scanDeployment(s.db.QueryRowContext(ctx,
		`SELECT id, stack, spec_json, status, created_at, updated_at
		 FROM deployments WHERE stack = ? ORDER BY rowid DESC LIMIT 1`, stack))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return deploy.DeploymentRow{}, false, nil
		}
		return deploy.DeploymentRow{}, false, fmt.Errorf("query latest deployment for %q: %w", stack, err)
	}
	return row, true, nil
}

func (s *Store) ListDeployments(ctx context.Context, stack string) ([]deploy.DeploymentRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stack, spec_json, status, created_at, updated_at
		 FROM deployments WHERE stack = ? ORDER BY rowid DESC`, stack)
	if err != nil {
		return nil, fmt.Errorf("list deployments for %q: %w", stack, err)
	}
	defer rows.Close()

	out := make([]deploy.DeploymentRow, 0)
	for rows.Next() {
		row, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deployment row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployment rows: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDeployment(sc scanner) (deploy.DeploymentRow, error) {
	var row deploy.DeploymentRow
	var status string
	if err := sc.Scan(&row.ID, &row.Stack, &row.SpecJSON, &status, &row.CreatedAt, &row.UpdatedAt); err != nil {
		return deploy.DeploymentRow{}, err
	}
	phase, ok := deploy.ParseDeployPhase(status)
	if !ok {
		return deploy.DeploymentRow{}, fmt.Errorf("invalid deployment status %q", status)
	}
	row.Status = phase
	return row, nil
}

func (s *Store) InsertContainer(ctx context.Context, row deploy.ContainerRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO containers (id, stack, deploy_id, service, container_name, spec_json, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Stack, row.DeployID, row.Service, row.ContainerName, row.SpecJSON, row.Status, row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert container %q: %w", row.ID, err)
	}
	return nil
}

func (s *Store) UpdateContainer(ctx context.Context, row deploy.ContainerRow) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE containers SET stack = ?, deploy_id = ?, service = ?, container_name = ?, spec_json = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		row.Stack, row.DeployID, row.Service, row.ContainerName, row.SpecJSON, row.Status, row.UpdatedAt, row.ID,
	)
	if err != nil {
		return fmt.Errorf("update container %q: %w", row.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update container %q: %w", row.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update container %q: row not found", row.ID)
	}
	return nil
}

func (s *Store) ListContainersByStack(ctx context.Context, stack string) ([]deploy.ContainerRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stack, deploy_id, service, container_name, spec_json, status, created_at, updated_at
		 FROM containers WHERE stack = ? ORDER BY service`, stack)
	if err != nil {
		return nil, fmt.Errorf("list containers for %q: %w", stack, err)
	}
	defer rows.Close()

	out := make([]deploy.ContainerRow, 0)
	for rows.Next() {
		var row deploy.ContainerRow
		if err := rows.Scan(&row.ID, &row.Stack, &row.DeployID, &row.Service, &row.ContainerName, &row.SpecJSON, &row.Status, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan container row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate container rows: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteContainer(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM containers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete container %q: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteContainersByStack(ctx context.Context, stack string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM containers WHERE stack = ?`, stack); err != nil {
		return fmt.Errorf("delete containers for %q: %w", stack, err)
	}
	return nil
}
