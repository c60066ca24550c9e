package verification

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/ferumlab/ferum-hub/internal/cache"
	"github.com/ferumlab/ferum-hub/internal/mailer"
	"github.com/ferumlab/ferum-hub/internal/perrors"
	"github.com/ferumlab/ferum-hub/internal/services/chatlink"
)

// Store is the persistence surface the service needs. *VerificationRepo
// implements it.
type Store interface {
	ExpirePending(ctx context.Context, email string, chatID int64) error
	Create(ctx context.Context, v *Verification) error
	GetLatestPending(ctx context.Context, email string, chatID int64) (*Verification, error)
	IncrementAttempts(ctx context.Context, name string) (int, error)
	SetStatus(ctx context.Context, name, status string) error
	MarkVerified(ctx context.Context, name, erpUser string) error
}

type userDirectory interface {
	ResolveByEmail(ctx context.Context, email string) (string, error)
	EnsurePortalUser(ctx context.Context, email string) (string, error)
	GrantProjectPermission(ctx context.Context, email, projectName string) error
}

type contactReader interface {
	VerifiedContactProjects(ctx context.Context, email string) ([]string, error)
}

type chatLinker interface {
	Link(ctx context.Context, chatID int64, userEmail, telegramUsername string) (*chatlink.ChatLink, error)
	ActiveProject(ctx context.Context, chatID int64) (string, error)
	SetActiveProject(ctx context.Context, chatID int64, projectName string) error
}

type rateLimiter interface {
	AnySet(ctx context.Context, keys ...string) bool
	Set(ctx context.Context, ttl time.Duration, keys ...string)
}

// Result is what a successful confirmation hands back to the chat layer.
type Result struct {
	User            string   `json:"user"`
	GrantedProjects []string `json:"granted_projects"`
	ActiveProject   string   `json:"active_project"`
}

// VerificationService implements the email-code handshake that links a
// Telegram chat to an ERP account.
type VerificationService struct {
	store    Store
	mailer   mailer.Mailer
	limiter  rateLimiter
	users    userDirectory
	contacts contactReader
	links    chatLinker

	now func() time.Time
}

func NewVerificationService(store Store, m mailer.Mailer, limiter rateLimiter, users userDirectory, contacts contactReader, links chatLinker) *VerificationService {
	return &VerificationService{
		store:    store,
		mailer:   m,
		limiter:  limiter,
		users:    users,
		contacts: contacts,
		links:    links,
		now:      time.Now,
	}
}

// Start issues a one-time code to the address and records only its salted
// hash. The mail goes out before the row is written, so a failed send
// leaves nothing behind to confirm against.
func (s *VerificationService) Start(ctx context.Context, email string, chatID int64, telegramUsername string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return perrors.NewErrValidation(fmt.Errorf("invalid email address"))
	}

	// The address must be a known account or a verified project contact.
	// One message for both misses, so the reply does not reveal which.
	erpUser, err := s.users.ResolveByEmail(ctx, email)
	if err != nil {
		return err
	}
	if erpUser == "" {
		contactProjects, err := s.contacts.VerifiedContactProjects(ctx, email)
		if err != nil {
			return err
		}
		if len(contactProjects) == 0 {
			return perrors.NewErrValidation(fmt.Errorf("email not found"))
		}
	}

	chatKey := cache.RegistrationChatKey(chatID, email)
	emailKey := cache.RegistrationEmailKey(email)
	if s.limiter.AnySet(ctx, chatKey, emailKey) {
		return perrors.NewErrTooManyRequests(fmt.Errorf("code already sent, try again in a minute"))
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	salt, err := generateSalt()
	if err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	subject := "Ferum: код подтверждения"
	body := fmt.Sprintf("Ваш код подтверждения: %s\n\nКод действителен %d минут.", code, int(CodeTTL.Minutes()))
	if err := s.mailer.Send(email, subject, body); err != nil {
		return perrors.NewErrTransport(fmt.Errorf("failed to send verification email"))
	}

	if err := s.store.ExpirePending(ctx, email, chatID); err != nil {
		return err
	}

	v := &Verification{
		Email:            email,
		ChatID:           chatID,
		TelegramUsername: telegramUsername,
		Purpose:          PurposeRegistration,
		Status:           StatusPending,
		CodeHash:         hashCode(salt, email, chatID, code),
		CodeSalt:         salt,
		ERPUser:          erpUser,
		ExpiresAt:        s.now().Add(CodeTTL),
	}
	if err := s.store.Create(ctx, v); err != nil {
		return err
	}

	s.limiter.Set(ctx, ReissueWindow, chatKey, emailKey)

	slog.Info("Verification code issued",
		slog.String("email", email), slog.Int64("chat_id", chatID))

	return nil
}

// Confirm checks the submitted code and, on success, resolves or provisions
// the account, grants contact-derived project permissions and links the
// chat. Every failure mode returns the same error so the reply does not
// leak which part was wrong.
func (s *VerificationService) Confirm(ctx context.Context, email string, chatID int64, telegramUsername, code string) (*Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)

	v, err := s.store.GetLatestPending(ctx, email, chatID)
	if err != nil {
		if errors.Is(err, ErrVerificationNotFound) {
			return nil, errInvalidCode()
		}
		return nil, err
	}

	if s.now().After(v.ExpiresAt) {
		if err := s.store.SetStatus(ctx, v.Name, StatusExpired); err != nil {
			return nil, err
		}
		return nil, errInvalidCode()
	}

	if v.Attempts >= MaxAttempts {
		if err := s.store.SetStatus(ctx, v.Name, StatusLocked); err != nil {
			return nil, err
		}
		return nil, errInvalidCode()
	}

	submitted := hashCode(v.CodeSalt, email, chatID, code)
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(v.CodeHash)) != 1 {
		attempts, err := s.store.IncrementAttempts(ctx, v.Name)
		if err != nil {
			return nil, err
		}
		if attempts >= MaxAttempts {
			if err := s.store.SetStatus(ctx, v.Name, StatusLocked); err != nil {
				return nil, err
			}
		}
		return nil, errInvalidCode()
	}

	userEmail := v.ERPUser
	if userEmail == "" {
		userEmail, err = s.users.EnsurePortalUser(ctx, email)
		if err != nil {
			return nil, err
		}
	}

	// Consuming the code is a conditional flip of the pending status. A
	// confirmation that lost the race to a concurrent duplicate fails
	// here, before any grants or chat linking.
	if err := s.store.MarkVerified(ctx, v.Name, userEmail); err != nil {
		if errors.Is(err, ErrVerificationNotFound) {
			return nil, errInvalidCode()
		}
		return nil, err
	}

	granted, err := s.contacts.VerifiedContactProjects(ctx, email)
	if err != nil {
		return nil, err
	}
	for _, projectName := range granted {
		if err := s.users.GrantProjectPermission(ctx, userEmail, projectName); err != nil {
			return nil, err
		}
	}

	if _, err := s.links.Link(ctx, chatID, userEmail, telegramUsername); err != nil {
		return nil, err
	}

	result := &Result{User: userEmail, GrantedProjects: granted}

	// Single granted project and no selection yet: preselect it. A UX
	// default only, access still goes through the resolver.
	active, err := s.links.ActiveProject(ctx, chatID)
	if err == nil && active == "" && len(granted) == 1 {
		if err := s.links.SetActiveProject(ctx, chatID, granted[0]); err == nil {
			result.ActiveProject = granted[0]
		}
	} else {
		result.ActiveProject = active
	}

	slog.Info("Chat verified",
		slog.String("user", userEmail), slog.Int64("chat_id", chatID))

	return result, nil
}

func errInvalidCode() error {
	return perrors.NewErrVerification(fmt.Errorf("invalid or expired code"))
}

func hashCode(salt, email string, chatID int64, code string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%s:%d:%s", salt, email, chatID, code))
	return hex.EncodeToString(sum[:])
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func generateSalt() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
