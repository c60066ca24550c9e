package chatlink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrChatLinkNotFound = errors.New("chat link not found")

type ChatLinkRepo struct {
	db *sqlx.DB
}

func NewChatLinkRepo(db *sqlx.DB) *ChatLinkRepo {
	return &ChatLinkRepo{db: db}
}

func (r *ChatLinkRepo) GetByChatID(ctx context.Context, chatID int64) (*ChatLink, error) {
	var link ChatLink

	err := r.db.GetContext(ctx, &link, `
        SELECT name, chat_id, user_email, telegram_username, active_project,
               notes, created_at, updated_at
        FROM chat_links
        WHERE chat_id = $1
    `, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChatLinkNotFound
		}
		return nil, fmt.Errorf("failed to get chat link: %w", err)
	}

	return &link, nil
}

func (r *ChatLinkRepo) ListByUser(ctx context.Context, userEmail string) ([]ChatLink, error) {
	var links []ChatLink

	err := r.db.SelectContext(ctx, &links, `
        SELECT name, chat_id, user_email, telegram_username, active_project,
               notes, created_at, updated_at
        FROM chat_links
        WHERE user_email = $1
    `, userEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat links: %w", err)
	}

	return links, nil
}

// Upsert points the chat at the user, creating the link row on first
// verification and re-pointing it on later ones.
func (r *ChatLinkRepo) Upsert(ctx context.Context, chatID int64, userEmail, telegramUsername string) (*ChatLink, error) {
	var link ChatLink

	err := r.db.GetContext(ctx, &link, `
        INSERT INTO chat_links (chat_id, user_email, telegram_username)
        VALUES ($1, $2, $3)
        ON CONFLICT (chat_id) DO UPDATE SET
            user_email = EXCLUDED.user_email,
            telegram_username = EXCLUDED.telegram_username,
            updated_at = NOW()
        RETURNING name, chat_id, user_email, telegram_username, active_project,
                  notes, created_at, updated_at
    `, chatID, userEmail, telegramUsername)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert chat link: %w", err)
	}

	return &link, nil
}

func (r *ChatLinkRepo) SetActiveProject(ctx context.Context, chatID int64, project string) error {
	var value any
	if project != "" {
		value = project
	}

	res, err := r.db.ExecContext(ctx, `
        UPDATE chat_links SET active_project = $2, updated_at = NOW()
        WHERE chat_id = $1
    `, chatID, value)
	if err != nil {
		return fmt.Errorf("failed to set active project: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set active project: %w", err)
	}
	if rows == 0 {
		return ErrChatLinkNotFound
	}

	return nil
}

func (r *ChatLinkRepo) AppendNote(ctx context.Context, chatID int64, note string) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE chat_links
        SET notes = CASE WHEN notes = '' THEN $2 ELSE notes || E'\n' || $2 END,
            updated_at = NOW()
        WHERE chat_id = $1
    `, chatID, note)
	if err != nil {
		return fmt.Errorf("failed to append note: %w", err)
	}

	return nil
}
