package verification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrVerificationNotFound = errors.New("verification not found")

type VerificationRepo struct {
	db *sqlx.DB
}

func NewVerificationRepo(db *sqlx.DB) *VerificationRepo {
	return &VerificationRepo{db: db}
}

// ExpirePending retires every outstanding pending code for the chat/email
// pair so only the newest issued code is ever confirmable.
func (r *VerificationRepo) ExpirePending(ctx context.Context, email string, chatID int64) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE email_verifications
        SET status = $1, updated_at = NOW()
        WHERE email = $2 AND chat_id = $3 AND purpose = $4 AND status = $5
    `, StatusExpired, email, chatID, PurposeRegistration, StatusPending)
	if err != nil {
		return fmt.Errorf("failed to expire pending verifications: %w", err)
	}

	return nil
}

func (r *VerificationRepo) Create(ctx context.Context, v *Verification) error {
	err := r.db.GetContext(ctx, &v.Name, `
        INSERT INTO email_verifications
            (email, chat_id, telegram_username, purpose, status, code_hash, code_salt, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING name
    `, v.Email, v.ChatID, v.TelegramUsername, v.Purpose, v.Status, v.CodeHash, v.CodeSalt, v.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create verification: %w", err)
	}

	return nil
}

func (r *VerificationRepo) GetLatestPending(ctx context.Context, email string, chatID int64) (*Verification, error) {
	var v Verification

	err := r.db.GetContext(ctx, &v, `
        SELECT name, email, chat_id, telegram_username, purpose, status,
               code_hash, code_salt, attempts, erp_user, expires_at,
               verified_at, created_at, updated_at
        FROM email_verifications
        WHERE email = $1 AND chat_id = $2 AND purpose = $3 AND status = $4
        ORDER BY created_at DESC
        LIMIT 1
    `, email, chatID, PurposeRegistration, StatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVerificationNotFound
		}
		return nil, fmt.Errorf("failed to get pending verification: %w", err)
	}

	return &v, nil
}

// IncrementAttempts bumps the wrong-code counter and returns the new value.
func (r *VerificationRepo) IncrementAttempts(ctx context.Context, name string) (int, error) {
	var attempts int

	err := r.db.GetContext(ctx, &attempts, `
        UPDATE email_verifications
        SET attempts = attempts + 1, updated_at = NOW()
        WHERE name = $1
        RETURNING attempts
    `, name)
	if err != nil {
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}

	return attempts, nil
}

func (r *VerificationRepo) SetStatus(ctx context.Context, name, status string) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE email_verifications SET status = $2, updated_at = NOW()
        WHERE name = $1
    `, name, status)
	if err != nil {
		return fmt.Errorf("failed to set verification status: %w", err)
	}

	return nil
}

// MarkVerified consumes the code. The status guard makes the Pending to
// Verified flip a single conditional write: of two simultaneous
// confirmations only one can claim the row, the other gets
// ErrVerificationNotFound.
func (r *VerificationRepo) MarkVerified(ctx context.Context, name, erpUser string) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE email_verifications
        SET status = $2, erp_user = $3, verified_at = NOW(), updated_at = NOW()
        WHERE name = $1 AND status = $4
    `, name, StatusVerified, erpUser, StatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark verification verified: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark verification verified: %w", err)
	}
	if affected == 0 {
		return ErrVerificationNotFound
	}

	return nil
}
