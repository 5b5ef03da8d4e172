package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AdminRepo persists dashboard operator accounts.
type AdminRepo struct {
	db *sql.DB
}

// NewAdminRepo creates a new admin repository
func NewAdminRepo(db *sql.DB) *AdminRepo {
	return &AdminRepo{db: db}
}

// FindByEmail returns the admin with the given email, or nil.
func (r *AdminRepo) FindByEmail(ctx context.Context, email string) (*Admin, error) {
	var a Admin
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at
		FROM admins WHERE email = $1`, email,
	).Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query admin: %w", err)
	}
	return &a, nil
}

// Create inserts a new admin account.
func (r *AdminRepo) Create(ctx context.Context, email, name, passwordHash string) (*Admin, error) {
	a := Admin{Email: email, Name: name, PasswordHash: passwordHash}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO admins (email, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`, email, name, passwordHash,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert admin: %w", err)
	}
	return &a, nil
}
