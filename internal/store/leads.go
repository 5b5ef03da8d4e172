package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LeadRepo persists leads and their notes.
type LeadRepo struct {
	db *sql.DB
}

// NewLeadRepo creates a new lead repository
func NewLeadRepo(db *sql.DB) *LeadRepo {
	return &LeadRepo{db: db}
}

const leadColumns = `id, user_id, phone, COALESCE(name, ''), source, status, follow_up_at, follow_up_count, converted_at, created_at, updated_at`

func scanLead(row *sql.Row) (*Lead, error) {
	var l Lead
	var followUpAt, convertedAt sql.NullTime
	err := row.Scan(&l.ID, &l.UserID, &l.Phone, &l.Name, &l.Source, &l.Status, &followUpAt, &l.FollowUpCount, &convertedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if followUpAt.Valid {
		l.FollowUpAt = &followUpAt.Time
	}
	if convertedAt.Valid {
		l.ConvertedAt = &convertedAt.Time
	}
	return &l, nil
}

// FindByID returns the lead with the given id, or nil.
func (r *LeadRepo) FindByID(ctx context.Context, id int64) (*Lead, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query lead: %w", err)
	}
	return l, nil
}

// FindByUser returns the user's lead, or nil when none exists yet.
func (r *LeadRepo) FindByUser(ctx context.Context, userID int64) (*Lead, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE user_id = $1`, userID)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query lead by user: %w", err)
	}
	return l, nil
}

// Create inserts a new lead in status new.
func (r *LeadRepo) Create(ctx context.Context, userID int64, phone, name, source string) (*Lead, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO leads (user_id, phone, name, source)
		VALUES ($1, $2, $3, $4)
		RETURNING `+leadColumns, userID, phone, name, source)
	l, err := scanLead(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert lead: %w", err)
	}
	return l, nil
}

// UpdateStatus writes a new status; when the lead enters converted the
// conversion timestamp is stamped once.
func (r *LeadRepo) UpdateStatus(ctx context.Context, id int64, status LeadStatus) error {
	var err error
	if status == LeadConverted {
		_, err = r.db.ExecContext(ctx, `
			UPDATE leads SET status = $2, converted_at = now(), updated_at = now() WHERE id = $1`, id, status)
	} else {
		_, err = r.db.ExecContext(ctx, `
			UPDATE leads SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	}
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}
	return nil
}

// SetFollowUpAt records when the next follow-up is due.
func (r *LeadRepo) SetFollowUpAt(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE leads SET follow_up_at = $2, updated_at = now() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to set follow-up time: %w", err)
	}
	return nil
}

// IncrementFollowUp bumps the follow-up counter and clears the scheduled
// marker in one atomic statement.
func (r *LeadRepo) IncrementFollowUp(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE leads
		SET follow_up_count = follow_up_count + 1, follow_up_at = NULL, updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment follow-up count: %w", err)
	}
	return nil
}

// AddNote appends a note to a lead.
func (r *LeadRepo) AddNote(ctx context.Context, leadID int64, note, addedBy string) (*LeadNote, error) {
	var n LeadNote
	n.LeadID = leadID
	n.Note = note
	n.AddedBy = addedBy
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO lead_notes (lead_id, note, added_by)
		VALUES ($1, $2, $3)
		RETURNING id, added_at`, leadID, note, addedBy).Scan(&n.ID, &n.AddedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert lead note: %w", err)
	}
	return &n, nil
}

// ListLeadsParams filters and pages the lead list.
type ListLeadsParams struct {
	Page      int
	Limit     int
	Status    LeadStatus
	SortBy    string
	SortOrder string
}

var leadSortColumns = map[string]string{
	"created_at":      "created_at",
	"updated_at":      "updated_at",
	"status":          "status",
	"follow_up_at":    "follow_up_at",
	"follow_up_count": "follow_up_count",
}

// List returns one page of leads plus the total matching count.
func (r *LeadRepo) List(ctx context.Context, params ListLeadsParams) ([]Lead, int, error) {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 20
	}

	sortCol, ok := leadSortColumns[params.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	order := "DESC"
	if params.SortOrder == "asc" {
		order = "ASC"
	}

	where := ""
	args := []interface{}{params.Limit, (params.Page - 1) * params.Limit}
	if params.Status != "" {
		where = "WHERE status = $3"
		args = append(args, params.Status)
	}

	query := fmt.Sprintf(`
		SELECT `+leadColumns+`
		FROM leads
		%s
		ORDER BY %s %s
		LIMIT $1 OFFSET $2`, where, sortCol, order)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		var l Lead
		var followUpAt, convertedAt sql.NullTime
		if err := rows.Scan(&l.ID, &l.UserID, &l.Phone, &l.Name, &l.Source, &l.Status, &followUpAt, &l.FollowUpCount, &convertedAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan lead: %w", err)
		}
		if followUpAt.Valid {
			l.FollowUpAt = &followUpAt.Time
		}
		if convertedAt.Valid {
			l.ConvertedAt = &convertedAt.Time
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM leads`
	countArgs := []interface{}{}
	if params.Status != "" {
		countQuery += ` WHERE status = $1`
		countArgs = append(countArgs, params.Status)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count leads: %w", err)
	}

	return leads, total, nil
}
