package store

import (
	"context"
	"database/sql"
	"fmt"
)

// UserRepo persists users.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new user repository
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, phone, name, COALESCE(email, ''), language, lead_status, opted_out, last_interaction_at, created_at, updated_at`

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Phone, &u.Name, &u.Email, &u.Language, &u.LeadStatus, &u.OptedOut, &u.LastInteractionAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByPhone returns the user for a phone number, or nil when none exists.
func (r *UserRepo) FindByPhone(ctx context.Context, phone string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by phone: %w", err)
	}
	return u, nil
}

// Create inserts a new user with defaults.
func (r *UserRepo) Create(ctx context.Context, phone, name string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (phone, name)
		VALUES ($1, $2)
		RETURNING `+userColumns, phone, name)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

// Touch updates the user's display name and stamps the last interaction.
func (r *UserRepo) Touch(ctx context.Context, id int64, name string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET name = $2, last_interaction_at = now(), updated_at = now()
		WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("failed to touch user: %w", err)
	}
	return nil
}

// UpdateLeadStatus mirrors the lead's status onto the user record.
func (r *UserRepo) UpdateLeadStatus(ctx context.Context, id int64, status LeadStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET lead_status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update user lead status: %w", err)
	}
	return nil
}

// SetOptedOut flips the opt-out flag.
func (r *UserRepo) SetOptedOut(ctx context.Context, id int64, optedOut bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET opted_out = $2, updated_at = now() WHERE id = $1`, id, optedOut)
	if err != nil {
		return fmt.Errorf("failed to set opt-out flag: %w", err)
	}
	return nil
}
