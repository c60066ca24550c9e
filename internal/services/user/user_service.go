package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// UserService contains business logic for ERP user accounts
type UserService struct {
	repo *UserRepo
}

func NewUserService(repo *UserRepo) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// ResolveByEmail returns the account email when a user with this address
// exists, or "" when none does.
func (s *UserService) ResolveByEmail(ctx context.Context, email string) (string, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve user: %w", err)
	}

	return u.Email, nil
}

func (s *UserService) Roles(ctx context.Context, email string) ([]string, error) {
	roles, err := s.repo.Roles(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	return roles, nil
}

func (s *UserService) HasRole(ctx context.Context, email, role string) (bool, error) {
	roles, err := s.repo.Roles(ctx, email)
	if err != nil {
		return false, err
	}

	for _, r := range roles {
		if r == role {
			return true, nil
		}
	}

	return false, nil
}

// GrantProjectPermission gives the user an explicit grant on one project.
func (s *UserService) GrantProjectPermission(ctx context.Context, email, projectName string) error {
	return s.repo.GrantPermission(ctx, email, "Project", projectName)
}

// EnsurePortalUser auto-provisions a restricted portal account for a verified
// customer contact. Existing accounts are returned as-is.
func (s *UserService) EnsurePortalUser(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("email is required")
	}

	exists, err := s.repo.Exists(ctx, email)
	if err != nil {
		return "", err
	}
	if exists {
		return email, nil
	}

	firstName := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		firstName = email[:at]
	}
	if len(firstName) > 50 {
		firstName = firstName[:50]
	}

	u := &User{
		Email:    email,
		FullName: firstName,
		Enabled:  true,
		UserType: "Website User",
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return "", fmt.Errorf("failed to create portal user: %w", err)
	}

	if err := s.repo.AddRole(ctx, email, RoleClient); err != nil {
		// Keep the portal user even if the role grant fails.
		slog.Error("Failed to assign Client role to portal user", slog.String("user", email), slog.Any("error", err))
	}

	return email, nil
}
