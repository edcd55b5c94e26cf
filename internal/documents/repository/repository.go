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

// NewPostgresRepository creates a documents repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const requirementColumns = `id, process_id, stage_id, name, description, required, is_visible, version, created_at, updated_at`

const documentColumns = `id, lead_id, requirement_id, status, file_key, file_url, file_type, file_name, notes, uploaded_at, updated_at`

func scanRequirement(row pgx.Row) (Requirement, error) {
	var r Requirement
	err := row.Scan(
		&r.ID, &r.ProcessID, &r.StageID, &r.Name, &r.Description,
		&r.Required, &r.Show, &r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func scanDocument(row pgx.Row) (LeadDocument, error) {
	var d LeadDocument
	err := row.Scan(
		&d.ID, &d.LeadID, &d.RequirementID, &d.Status, &d.FileKey,
		&d.FileURL, &d.FileType, &d.FileName, &d.Notes, &d.UploadedAt, &d.UpdatedAt,
	)
	return d, err
}

func (r *PostgresRepository) queryRequirements(ctx context.Context, query string, args ...any) ([]Requirement, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	defer rows.Close()

	requirements := make([]Requirement, 0)
	for rows.Next() {
		req, err := scanRequirement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan requirement: %w", err)
		}
		requirements = append(requirements, req)
	}
	return requirements, rows.Err()
}

// ListStageRequirements returns the exact (process, stage) rows, unfiltered.
func (r *PostgresRepository) ListStageRequirements(ctx context.Context, processID, stageID uuid.UUID) ([]Requirement, error) {
	return r.queryRequirements(ctx, `
		SELECT `+requirementColumns+` FROM document_requirements
		WHERE process_id = $1 AND stage_id = $2
		ORDER BY created_at ASC`,
		processID, stageID,
	)
}

// ListProcessRequirements returns process-level (stage IS NULL) rows.
func (r *PostgresRepository) ListProcessRequirements(ctx context.Context, processID uuid.UUID) ([]Requirement, error) {
	return r.queryRequirements(ctx, `
		SELECT `+requirementColumns+` FROM document_requirements
		WHERE process_id = $1 AND stage_id IS NULL
		ORDER BY created_at ASC`,
		processID,
	)
}

// ListAllRequirements returns every requirement of a process.
func (r *PostgresRepository) ListAllRequirements(ctx context.Context, processID uuid.UUID) ([]Requirement, error) {
	return r.queryRequirements(ctx, `
		SELECT `+requirementColumns+` FROM document_requirements
		WHERE process_id = $1
		ORDER BY stage_id NULLS FIRST, created_at ASC`,
		processID,
	)
}

// GetRequirement fetches a single requirement.
func (r *PostgresRepository) GetRequirement(ctx context.Context, id uuid.UUID) (Requirement, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+requirementColumns+` FROM document_requirements WHERE id = $1`, id)
	req, err := scanRequirement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Requirement{}, ErrNotFound
	}
	if err != nil {
		return Requirement{}, fmt.Errorf("get requirement: %w", err)
	}
	return req, nil
}

// CreateRequirement inserts a requirement.
func (r *PostgresRepository) CreateRequirement(ctx context.Context, params CreateRequirementParams) (Requirement, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO document_requirements (process_id, stage_id, name, description, required, is_visible)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+requirementColumns,
		params.ProcessID, params.StageID, params.Name, params.Description, params.Required, params.Show,
	)
	req, err := scanRequirement(row)
	if err != nil {
		return Requirement{}, fmt.Errorf("create requirement: %w", err)
	}
	return req, nil
}

// UpdateRequirement applies a partial, version-checked update.
func (r *PostgresRepository) UpdateRequirement(ctx context.Context, id uuid.UUID, params UpdateRequirementParams) (Requirement, error) {
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
	if params.Required != nil {
		setClauses = append(setClauses, fmt.Sprintf("required = $%d", idx))
		args = append(args, *params.Required)
		idx++
	}
	if params.Show != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_visible = $%d", idx))
		args = append(args, *params.Show)
		idx++
	}

	query := fmt.Sprintf(`
		UPDATE document_requirements SET %s
		WHERE id = $1 AND version = $2
		RETURNING `+requirementColumns,
		strings.Join(setClauses, ", "),
	)

	row := r.pool.QueryRow(ctx, query, args...)
	req, err := scanRequirement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if checkErr := r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM document_requirements WHERE id = $1)`, id).Scan(&exists); checkErr != nil {
			return Requirement{}, fmt.Errorf("check requirement: %w", checkErr)
		}
		if exists {
			return Requirement{}, ErrVersionMismatch
		}
		return Requirement{}, ErrNotFound
	}
	if err != nil {
		return Requirement{}, fmt.Errorf("update requirement: %w", err)
	}
	return req, nil
}

// DeleteRequirement removes a requirement.
func (r *PostgresRepository) DeleteRequirement(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM document_requirements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete requirement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HasMarker reports whether a "no documents required" marker exists.
func (r *PostgresRepository) HasMarker(ctx context.Context, processID uuid.UUID, stageID *uuid.UUID) (bool, error) {
	var exists bool
	var err error
	if stageID == nil {
		err = r.pool.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM document_requirement_markers
			WHERE process_id = $1 AND stage_id IS NULL)`, processID).Scan(&exists)
	} else {
		err = r.pool.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM document_requirement_markers
			WHERE process_id = $1 AND stage_id = $2)`, processID, *stageID).Scan(&exists)
	}
	if err != nil {
		return false, fmt.Errorf("check marker: %w", err)
	}
	return exists, nil
}

// SetMarker creates the marker; setting an existing one is a no-op.
func (r *PostgresRepository) SetMarker(ctx context.Context, processID uuid.UUID, stageID *uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO document_requirement_markers (process_id, stage_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		processID, stageID,
	)
	if err != nil {
		return fmt.Errorf("set marker: %w", err)
	}
	return nil
}

// ClearMarker removes the marker for a scope.
func (r *PostgresRepository) ClearMarker(ctx context.Context, processID uuid.UUID, stageID *uuid.UUID) error {
	var err error
	if stageID == nil {
		_, err = r.pool.Exec(ctx,
			`DELETE FROM document_requirement_markers WHERE process_id = $1 AND stage_id IS NULL`, processID)
	} else {
		_, err = r.pool.Exec(ctx,
			`DELETE FROM document_requirement_markers WHERE process_id = $1 AND stage_id = $2`, processID, *stageID)
	}
	if err != nil {
		return fmt.Errorf("clear marker: %w", err)
	}
	return nil
}

// ListLeadDocuments returns a lead's documents, newest first.
func (r *PostgresRepository) ListLeadDocuments(ctx context.Context, leadID uuid.UUID) ([]LeadDocument, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+documentColumns+` FROM lead_documents
		WHERE lead_id = $1
		ORDER BY uploaded_at DESC`,
		leadID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lead documents: %w", err)
	}
	defer rows.Close()

	documents := make([]LeadDocument, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead document: %w", err)
		}
		documents = append(documents, d)
	}
	return documents, rows.Err()
}

// GetLeadDocument fetches a single lead document.
func (r *PostgresRepository) GetLeadDocument(ctx context.Context, id uuid.UUID) (LeadDocument, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM lead_documents WHERE id = $1`, id)
	d, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return LeadDocument{}, ErrNotFound
	}
	if err != nil {
		return LeadDocument{}, fmt.Errorf("get lead document: %w", err)
	}
	return d, nil
}

// CreateLeadDocument records an upload in the pending state.
func (r *PostgresRepository) CreateLeadDocument(ctx context.Context, params CreateLeadDocumentParams) (LeadDocument, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO lead_documents (lead_id, requirement_id, status, file_key, file_url, file_type, file_name, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+documentColumns,
		params.LeadID, params.RequirementID, StatusPending,
		params.FileKey, params.FileURL, params.FileType, params.FileName, params.Notes,
	)
	d, err := scanDocument(row)
	if err != nil {
		return LeadDocument{}, fmt.Errorf("create lead document: %w", err)
	}
	return d, nil
}

// UpdateLeadDocumentStatus moves a document through review.
func (r *PostgresRepository) UpdateLeadDocumentStatus(ctx context.Context, id uuid.UUID, status DocumentStatus, notes *string) (LeadDocument, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE lead_documents
		SET status = $2, notes = COALESCE($3, notes), updated_at = NOW()
		WHERE id = $1
		RETURNING `+documentColumns,
		id, status, notes,
	)
	d, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return LeadDocument{}, ErrNotFound
	}
	if err != nil {
		return LeadDocument{}, fmt.Errorf("update lead document status: %w", err)
	}
	return d, nil
}

// DeleteLeadDocument removes a document record.
func (r *PostgresRepository) DeleteLeadDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lead_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lead document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
