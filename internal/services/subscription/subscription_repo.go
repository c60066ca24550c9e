package subscription

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type SubscriptionRepo struct {
	db *sqlx.DB
}

func NewSubscriptionRepo(db *sqlx.DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

// Add subscribes the chat link to the project. Re-subscribing is a no-op.
func (r *SubscriptionRepo) Add(ctx context.Context, projectName, chatLinkName string) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO project_subscriptions (project, chat_link)
        VALUES ($1, $2)
        ON CONFLICT (project, chat_link) DO NOTHING
    `, projectName, chatLinkName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	return nil
}

func (r *SubscriptionRepo) Remove(ctx context.Context, projectName, chatLinkName string) error {
	_, err := r.db.ExecContext(ctx, `
        DELETE FROM project_subscriptions
        WHERE project = $1 AND chat_link = $2
    `, projectName, chatLinkName)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}

	return nil
}

// ChatIDs returns the Telegram chat ids subscribed to the project.
func (r *SubscriptionRepo) ChatIDs(ctx context.Context, projectName string) ([]int64, error) {
	var ids []int64

	err := r.db.SelectContext(ctx, &ids, `
        SELECT cl.chat_id
        FROM project_subscriptions ps
        JOIN chat_links cl ON cl.name = ps.chat_link
        WHERE ps.project = $1
    `, projectName)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribed chats: %w", err)
	}

	return ids, nil
}

func (r *SubscriptionRepo) Projects(ctx context.Context, chatLinkName string) ([]string, error) {
	var names []string

	err := r.db.SelectContext(ctx, &names, `
        SELECT project FROM project_subscriptions WHERE chat_link = $1
    `, chatLinkName)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	return names, nil
}
