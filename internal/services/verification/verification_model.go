package verification

import (
	"database/sql"
	"time"
)

const (
	StatusPending  = "Pending"
	StatusVerified = "Verified"
	StatusExpired  = "Expired"
	StatusLocked   = "Locked"
)

const PurposeRegistration = "registration"

const (
	// CodeTTL is how long an issued code stays confirmable.
	CodeTTL = 10 * time.Minute

	// ReissueWindow throttles repeated code requests per chat and per email.
	ReissueWindow = 60 * time.Second

	// MaxAttempts bounds wrong-code submissions before the code locks.
	MaxAttempts = 5
)

// Verification is one issued email code. Only the salted hash of the code
// is stored, never the code itself.
type Verification struct {
	Name             string       `db:"name"`
	Email            string       `db:"email"`
	ChatID           int64        `db:"chat_id"`
	TelegramUsername string       `db:"telegram_username"`
	Purpose          string       `db:"purpose"`
	Status           string       `db:"status"`
	CodeHash         string       `db:"code_hash"`
	CodeSalt         string       `db:"code_salt"`
	Attempts         int          `db:"attempts"`
	ERPUser          string       `db:"erp_user"`
	ExpiresAt        time.Time    `db:"expires_at"`
	VerifiedAt       sql.NullTime `db:"verified_at"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
}
