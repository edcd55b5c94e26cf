package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadcrm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a pipeline repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const leadColumns = `id, first_name, last_name, email, phone, status,
	current_process_id, current_stage_id, version,
	portal_token, portal_token_expires_at,
	created_at, updated_at, deleted_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.Status,
		&l.CurrentProcessID, &l.CurrentStageID, &l.Version,
		&l.PortalToken, &l.PortalTokenExpiresAt,
		&l.CreatedAt, &l.UpdatedAt, &l.DeletedAt,
	)
	return l, err
}

// CreateLead inserts a lead in the received state.
func (r *PostgresRepository) CreateLead(ctx context.Context, params CreateLeadParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (first_name, last_name, email, phone, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+leadColumns,
		params.FirstName, params.LastName, params.Email, params.Phone, domain.StatusReceived,
	)
	l, err := scanLead(row)
	if isUniqueViolation(err, "leads_phone_key") {
		return Lead{}, ErrDuplicatePhone
	}
	if err != nil {
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}
	return l, nil
}

// GetLead fetches a live lead by ID.
func (r *PostgresRepository) GetLead(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1 AND deleted_at IS NULL`, id)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

// GetLeadByPhone fetches a live lead by normalized phone number.
func (r *PostgresRepository) GetLeadByPhone(ctx context.Context, phone string) (Lead, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE phone = $1 AND deleted_at IS NULL`, phone)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, fmt.Errorf("get lead by phone: %w", err)
	}
	return l, nil
}

// ListLeads returns live leads matching the filters, newest first.
func (r *PostgresRepository) ListLeads(ctx context.Context, params ListLeadsParams) ([]Lead, error) {
	conditions := []string{"deleted_at IS NULL"}
	args := []any{}
	idx := 1

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", idx))
		args = append(args, *params.Status)
		idx++
	}
	if params.ProcessID != nil {
		conditions = append(conditions, fmt.Sprintf("current_process_id = $%d", idx))
		args = append(args, *params.ProcessID)
		idx++
	}
	if params.Search != nil && *params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)",
			idx, idx, idx, idx))
		args = append(args, "%"+*params.Search+"%")
		idx++
	}

	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM leads
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		leadColumns, strings.Join(conditions, " AND "), idx, idx+1)
	args = append(args, limit, params.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// UpdateLead applies a partial contact update.
func (r *PostgresRepository) UpdateLead(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	setClauses := []string{"updated_at = NOW()"}
	args := []any{id}
	idx := 2

	if params.FirstName != nil {
		setClauses = append(setClauses, fmt.Sprintf("first_name = $%d", idx))
		args = append(args, *params.FirstName)
		idx++
	}
	if params.LastName != nil {
		setClauses = append(setClauses, fmt.Sprintf("last_name = $%d", idx))
		args = append(args, *params.LastName)
		idx++
	}
	if params.Email != nil {
		setClauses = append(setClauses, fmt.Sprintf("email = $%d", idx))
		args = append(args, *params.Email)
		idx++
	}
	if params.Phone != nil {
		setClauses = append(setClauses, fmt.Sprintf("phone = $%d", idx))
		args = append(args, *params.Phone)
		idx++
	}

	query := fmt.Sprintf(`
		UPDATE leads SET %s
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+leadColumns,
		strings.Join(setClauses, ", "),
	)

	row := r.pool.QueryRow(ctx, query, args...)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if isUniqueViolation(err, "leads_phone_key") {
		return Lead{}, ErrDuplicatePhone
	}
	if err != nil {
		return Lead{}, fmt.Errorf("update lead: %w", err)
	}
	return l, nil
}

// SoftDeleteLead marks a lead deleted. History and enrollments stay.
func (r *PostgresRepository) SoftDeleteLead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE leads SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListLeadIDs pages over live lead IDs in stable order for batch jobs.
func (r *PostgresRepository) ListLeadIDs(ctx context.Context, limit int, afterID *uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT id FROM leads WHERE deleted_at IS NULL`
	args := []any{}
	if afterID != nil {
		query += ` AND id > $1`
		args = append(args, *afterID)
	}
	query += fmt.Sprintf(` ORDER BY id ASC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lead ids: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan lead id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListEnrollments returns a lead's process memberships, oldest first.
func (r *PostgresRepository) ListEnrollments(ctx context.Context, leadID uuid.UUID) ([]Enrollment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, process_id, enrolled_at
		FROM lead_processes
		WHERE lead_id = $1
		ORDER BY enrolled_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := make([]Enrollment, 0)
	for rows.Next() {
		var e Enrollment
		if err := rows.Scan(&e.ID, &e.LeadID, &e.ProcessID, &e.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

// AddEnrollment inserts a membership row; already enrolled is a no-op.
func (r *PostgresRepository) AddEnrollment(ctx context.Context, leadID, processID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_processes (lead_id, process_id)
		VALUES ($1, $2)
		ON CONFLICT (lead_id, process_id) DO NOTHING`,
		leadID, processID,
	)
	if err != nil {
		return fmt.Errorf("add enrollment: %w", err)
	}
	return nil
}

// RemoveEnrollment deletes a membership row.
func (r *PostgresRepository) RemoveEnrollment(ctx context.Context, leadID, processID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM lead_processes WHERE lead_id = $1 AND process_id = $2`, leadID, processID)
	if err != nil {
		return fmt.Errorf("remove enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Transition appends the history row and moves the current pointers in
// one transaction. History is insert-only, so two racing transitions
// both keep their log entries even though only one wins the pointer
// update per version.
func (r *PostgresRepository) Transition(ctx context.Context, params TransitionParams) (Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	setClauses := []string{
		"current_process_id = $3",
		"current_stage_id = $4",
		"version = version + 1",
		"updated_at = NOW()",
	}
	args := []any{params.LeadID, params.ExpectedVersion, params.ProcessID, params.StageID}
	if params.NewStatus != nil {
		setClauses = append(setClauses, "status = $5")
		args = append(args, *params.NewStatus)
	}

	row := tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE leads SET %s
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL
		RETURNING `+leadColumns,
		strings.Join(setClauses, ", "),
	), args...)

	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrVersionMismatch
	}
	if err != nil {
		return Lead{}, fmt.Errorf("transition pointer update: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO lead_stage_history
			(lead_id, process_id, stage_id, stage_name, from_stage_id, actor_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		params.LeadID, params.ProcessID, params.StageID, params.StageName,
		params.FromStageID, params.ActorID, params.Note,
	)
	if err != nil {
		return Lead{}, fmt.Errorf("transition history insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, fmt.Errorf("commit transition: %w", err)
	}
	return l, nil
}

// SetPosition moves the current pointers without recording history.
func (r *PostgresRepository) SetPosition(ctx context.Context, params SetPositionParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET
			current_process_id = $3,
			current_stage_id = $4,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL
		RETURNING `+leadColumns,
		params.LeadID, params.ExpectedVersion, params.ProcessID, params.StageID,
	)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrVersionMismatch
	}
	if err != nil {
		return Lead{}, fmt.Errorf("set position: %w", err)
	}
	return l, nil
}

// ListStageHistory returns the transition log, newest first.
func (r *PostgresRepository) ListStageHistory(ctx context.Context, leadID uuid.UUID) ([]StageHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, process_id, stage_id, stage_name, from_stage_id, actor_id, note, created_at
		FROM lead_stage_history
		WHERE lead_id = $1
		ORDER BY created_at DESC, id DESC`,
		leadID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stage history: %w", err)
	}
	defer rows.Close()

	entries := make([]StageHistoryEntry, 0)
	for rows.Next() {
		var e StageHistoryEntry
		if err := rows.Scan(&e.ID, &e.LeadID, &e.ProcessID, &e.StageID, &e.StageName,
			&e.FromStageID, &e.ActorID, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SetPortalToken stores a fresh portal token and expiry on the lead.
func (r *PostgresRepository) SetPortalToken(ctx context.Context, leadID uuid.UUID, token string, expiresAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET portal_token = $2, portal_token_expires_at = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		leadID, token, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("set portal token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokePortalToken clears the lead's portal token.
func (r *PostgresRepository) RevokePortalToken(ctx context.Context, leadID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET portal_token = NULL, portal_token_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		leadID,
	)
	if err != nil {
		return fmt.Errorf("revoke portal token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetLeadByPortalToken resolves an unexpired portal token to its lead.
func (r *PostgresRepository) GetLeadByPortalToken(ctx context.Context, token string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE portal_token = $1
		  AND portal_token_expires_at > NOW()
		  AND deleted_at IS NULL`,
		token,
	)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, fmt.Errorf("get lead by portal token: %w", err)
	}
	return l, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}
