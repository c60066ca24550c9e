package chatlink

import (
	"context"
	"errors"
	"strings"
)

type ChatLinkService struct {
	repo *ChatLinkRepo
}

func NewChatLinkService(repo *ChatLinkRepo) *ChatLinkService {
	return &ChatLinkService{repo: repo}
}

func (s *ChatLinkService) GetByChatID(ctx context.Context, chatID int64) (*ChatLink, error) {
	return s.repo.GetByChatID(ctx, chatID)
}

// ResolveUser returns the ERP user the chat is linked to, or "" when the
// chat has never completed verification.
func (s *ChatLinkService) ResolveUser(ctx context.Context, chatID int64) (string, error) {
	link, err := s.repo.GetByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, ErrChatLinkNotFound) {
			return "", nil
		}
		return "", err
	}

	return link.UserEmail, nil
}

func (s *ChatLinkService) Link(ctx context.Context, chatID int64, userEmail, telegramUsername string) (*ChatLink, error) {
	userEmail = strings.ToLower(strings.TrimSpace(userEmail))
	return s.repo.Upsert(ctx, chatID, userEmail, telegramUsername)
}

func (s *ChatLinkService) ActiveProject(ctx context.Context, chatID int64) (string, error) {
	link, err := s.repo.GetByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, ErrChatLinkNotFound) {
			return "", nil
		}
		return "", err
	}

	return link.ActiveProjectName(), nil
}

func (s *ChatLinkService) SetActiveProject(ctx context.Context, chatID int64, project string) error {
	return s.repo.SetActiveProject(ctx, chatID, strings.TrimSpace(project))
}

func (s *ChatLinkService) ClearActiveProject(ctx context.Context, chatID int64) error {
	return s.repo.SetActiveProject(ctx, chatID, "")
}

func (s *ChatLinkService) ListByUser(ctx context.Context, userEmail string) ([]ChatLink, error) {
	return s.repo.ListByUser(ctx, userEmail)
}
