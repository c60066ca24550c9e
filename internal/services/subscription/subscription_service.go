package subscription

import "context"

// SubscriptionService manages per-chat project notification subscriptions.
type SubscriptionService struct {
	repo *SubscriptionRepo
}

func NewSubscriptionService(repo *SubscriptionRepo) *SubscriptionService {
	return &SubscriptionService{repo: repo}
}

func (s *SubscriptionService) Subscribe(ctx context.Context, projectName, chatLinkName string) error {
	return s.repo.Add(ctx, projectName, chatLinkName)
}

func (s *SubscriptionService) Unsubscribe(ctx context.Context, projectName, chatLinkName string) error {
	return s.repo.Remove(ctx, projectName, chatLinkName)
}

func (s *SubscriptionService) ChatIDs(ctx context.Context, projectName string) ([]int64, error) {
	return s.repo.ChatIDs(ctx, projectName)
}

func (s *SubscriptionService) Projects(ctx context.Context, chatLinkName string) ([]string, error) {
	return s.repo.Projects(ctx, chatLinkName)
}
