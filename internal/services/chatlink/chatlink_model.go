package chatlink

import (
	"database/sql"
	"time"
)

// ChatLink binds a Telegram chat to a verified ERP user. One chat maps to
// at most one user; re-verifying re-points the existing row.
type ChatLink struct {
	Name             string         `db:"name" json:"name"`
	ChatID           int64          `db:"chat_id" json:"chat_id"`
	UserEmail        string         `db:"user_email" json:"user_email"`
	TelegramUsername string         `db:"telegram_username" json:"telegram_username"`
	ActiveProject    sql.NullString `db:"active_project" json:"-"`
	Notes            string         `db:"notes" json:"notes"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// ActiveProjectName returns the selected project or "" when none is set.
func (l *ChatLink) ActiveProjectName() string {
	if l == nil || !l.ActiveProject.Valid {
		return ""
	}
	return l.ActiveProject.String
}
