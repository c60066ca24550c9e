package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepo handles database operations for users and their roles
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
        SELECT email, full_name, enabled, user_type, created_at, updated_at
        FROM users
        WHERE email = $1
    `

	var u User
	err := r.db.GetContext(ctx, &u, query, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM users WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}

	return n > 0, nil
}

// Roles returns the role set of a user. Unknown users yield an empty set,
// not an error.
func (r *UserRepo) Roles(ctx context.Context, email string) ([]string, error) {
	var roles []string
	err := r.db.SelectContext(ctx, &roles, `SELECT role FROM user_roles WHERE user_email = $1`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}

	return roles, nil
}

func (r *UserRepo) AddRole(ctx context.Context, email, role string) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO user_roles (user_email, role)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING
    `, email, role)
	if err != nil {
		return fmt.Errorf("failed to add role: %w", err)
	}

	return nil
}

// GrantPermission records an explicit document-level grant. Re-granting is
// a no-op.
func (r *UserRepo) GrantPermission(ctx context.Context, email, allow, forValue string) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO user_permissions (user_email, allow, for_value)
        VALUES ($1, $2, $3)
        ON CONFLICT DO NOTHING
    `, email, allow, forValue)
	if err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}

	return nil
}

func (r *UserRepo) Create(ctx context.Context, u *User) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO users (email, full_name, enabled, user_type)
        VALUES ($1, $2, $3, $4)
    `, u.Email, u.FullName, u.Enabled, u.UserType)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}
