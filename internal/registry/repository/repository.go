package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a registry repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const processColumns = `id, name, description, is_active, is_primary, display_order, version, created_at, updated_at`

const stageColumns = `id, process_id, name, description, color, is_active, display_order, version, created_at, updated_at`

func scanProcess(row pgx.Row) (Process, error) {
	var p Process
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.IsActive, &p.IsPrimary,
		&p.DisplayOrder, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func scanStage(row pgx.Row) (Stage, error) {
	var s Stage
	err := row.Scan(
		&s.ID, &s.ProcessID, &s.Name, &s.Description, &s.Color,
		&s.IsActive, &s.DisplayOrder, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

// ListProcesses returns processes ordered by display order.
func (r *PostgresRepository) ListProcesses(ctx context.Context, activeOnly bool) ([]Process, error) {
	query := `SELECT ` + processColumns + ` FROM processes`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY display_order ASC, created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	defer rows.Close()

	processes := make([]Process, 0)
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		processes = append(processes, p)
	}
	return processes, rows.Err()
}

// GetProcess fetches a single process by ID.
func (r *PostgresRepository) GetProcess(ctx context.Context, id uuid.UUID) (Process, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+processColumns+` FROM processes WHERE id = $1`, id)
	p, err := scanProcess(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Process{}, ErrNotFound
	}
	if err != nil {
		return Process{}, fmt.Errorf("get process: %w", err)
	}
	return p, nil
}

// GetPrimaryProcess returns the process flagged as primary.
func (r *PostgresRepository) GetPrimaryProcess(ctx context.Context) (Process, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+processColumns+` FROM processes WHERE is_primary = TRUE LIMIT 1`)
	p, err := scanProcess(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Process{}, ErrNotFound
	}
	if err != nil {
		return Process{}, fmt.Errorf("get primary process: %w", err)
	}
	return p, nil
}

// CreateProcess inserts a process at the end of the display order.
func (r *PostgresRepository) CreateProcess(ctx context.Context, params CreateProcessParams) (Process, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO processes (name, description, display_order)
		VALUES ($1, $2, (SELECT COALESCE(MAX(display_order) + 1, 1) FROM processes))
		RETURNING `+processColumns,
		params.Name, params.Description,
	)
	p, err := scanProcess(row)
	if err != nil {
		return Process{}, fmt.Errorf("create process: %w", err)
	}
	return p, nil
}

// UpdateProcess applies a partial, version-checked update.
func (r *PostgresRepository) UpdateProcess(ctx context.Context, id uuid.UUID, params UpdateProcessParams) (Process, error) {
	setClauses := []string{"updated_at = NOW()", "version = version + 1"}
	args := []any{id, params.Version}
	idx := 3

	if params.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", idx))
		args = append(args, *params.Name)
		idx++
	}
	if params.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", idx))
		args = append(args, *params.Description)
		idx++
	}
	if params.IsActive != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", idx))
		args = append(args, *params.IsActive)
		idx++
	}
	if params.DisplayOrder != nil {
		setClauses = append(setClauses, fmt.Sprintf("display_order = $%d", idx))
		args = append(args, *params.DisplayOrder)
		idx++
	}

	query := fmt.Sprintf(`
		UPDATE processes SET %s
		WHERE id = $1 AND version = $2
		RETURNING `+processColumns,
		strings.Join(setClauses, ", "),
	)

	row := r.pool.QueryRow(ctx, query, args...)
	p, err := scanProcess(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Process{}, r.classifyProcessMiss(ctx, id)
	}
	if err != nil {
		return Process{}, fmt.Errorf("update process: %w", err)
	}
	return p, nil
}

// classifyProcessMiss distinguishes a missing row from a version conflict.
func (r *PostgresRepository) classifyProcessMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM processes WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check process: %w", err)
	}
	if exists {
		return ErrVersionMismatch
	}
	return ErrNotFound
}

// DeleteProcess removes a process and its stages in one transaction.
func (r *PostgresRepository) DeleteProcess(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete process: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM stages WHERE process_id = $1`, id); err != nil {
		return fmt.Errorf("delete stages: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM processes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete process: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

// ListStages returns a process's stages ordered ascending.
func (r *PostgresRepository) ListStages(ctx context.Context, processID uuid.UUID) ([]Stage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+stageColumns+` FROM stages
		WHERE process_id = $1
		ORDER BY display_order ASC, created_at ASC`,
		processID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	stages := make([]Stage, 0)
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

// GetStage fetches a single stage by ID.
func (r *PostgresRepository) GetStage(ctx context.Context, id uuid.UUID) (Stage, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+stageColumns+` FROM stages WHERE id = $1`, id)
	s, err := scanStage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, ErrNotFound
	}
	if err != nil {
		return Stage{}, fmt.Errorf("get stage: %w", err)
	}
	return s, nil
}

// CreateStage inserts a stage at the end of its process's order.
func (r *PostgresRepository) CreateStage(ctx context.Context, params CreateStageParams) (Stage, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO stages (process_id, name, description, color, display_order)
		VALUES ($1, $2, $3, $4,
			(SELECT COALESCE(MAX(display_order) + 1, 1) FROM stages WHERE process_id = $1))
		RETURNING `+stageColumns,
		params.ProcessID, params.Name, params.Description, params.Color,
	)
	s, err := scanStage(row)
	if err != nil {
		return Stage{}, fmt.Errorf("create stage: %w", err)
	}
	return s, nil
}

// UpdateStage applies a partial, version-checked update.
func (r *PostgresRepository) UpdateStage(ctx context.Context, id uuid.UUID, params UpdateStageParams) (Stage, error) {
	setClauses := []string{"updated_at = NOW()", "version = version + 1"}
	args := []any{id, params.Version}
	idx := 3

	if params.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", idx))
		args = append(args, *params.Name)
		idx++
	}
	if params.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", idx))
		args = append(args, *params.Description)
		idx++
	}
	if params.Color != nil {
		setClauses = append(setClauses, fmt.Sprintf("color = $%d", idx))
		args = append(args, *params.Color)
		idx++
	}
	if params.IsActive != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", idx))
		args = append(args, *params.IsActive)
		idx++
	}

	query := fmt.Sprintf(`
		UPDATE stages SET %s
		WHERE id = $1 AND version = $2
		RETURNING `+stageColumns,
		strings.Join(setClauses, ", "),
	)

	row := r.pool.QueryRow(ctx, query, args...)
	s, err := scanStage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, r.classifyStageMiss(ctx, id)
	}
	if err != nil {
		return Stage{}, fmt.Errorf("update stage: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) classifyStageMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM stages WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check stage: %w", err)
	}
	if exists {
		return ErrVersionMismatch
	}
	return ErrNotFound
}

// DeleteStage removes a stage. Leads pointing at it keep their
// reference; presentation renders those as unknown.
func (r *PostgresRepository) DeleteStage(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM stages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SwapStageOrder exchanges display orders of two stages in one
// transaction. Both updates are version-checked; a concurrent edit of
// either row aborts the whole swap.
func (r *PostgresRepository) SwapStageOrder(ctx context.Context, first Stage, second Stage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin swap: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE stages SET display_order = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2`,
		first.ID, first.Version, second.DisplayOrder,
	)
	if err != nil {
		return fmt.Errorf("swap first stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionMismatch
	}

	tag, err = tx.Exec(ctx, `
		UPDATE stages SET display_order = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2`,
		second.ID, second.Version, first.DisplayOrder,
	)
	if err != nil {
		return fmt.Errorf("swap second stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionMismatch
	}

	return tx.Commit(ctx)
}
