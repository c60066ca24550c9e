package verification

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ferumlab/ferum-hub/internal/services/chatlink"
)

type memStore struct {
	rows []*Verification
	seq  int
}

func (s *memStore) ExpirePending(_ context.Context, email string, chatID int64) error {
	for _, v := range s.rows {
		if v.Email == email && v.ChatID == chatID && v.Status == StatusPending {
			v.Status = StatusExpired
		}
	}
	return nil
}

func (s *memStore) Create(_ context.Context, v *Verification) error {
	s.seq++
	v.Name = fmt.Sprintf("ver-%d", s.seq)
	v.CreatedAt = time.Now()
	s.rows = append(s.rows, v)
	return nil
}

func (s *memStore) GetLatestPending(_ context.Context, email string, chatID int64) (*Verification, error) {
	for i := len(s.rows) - 1; i >= 0; i-- {
		v := s.rows[i]
		if v.Email == email && v.ChatID == chatID && v.Status == StatusPending {
			return v, nil
		}
	}
	return nil, ErrVerificationNotFound
}

func (s *memStore) find(name string) *Verification {
	for _, v := range s.rows {
		if v.Name == name {
			return v
		}
	}
	return nil
}

func (s *memStore) IncrementAttempts(_ context.Context, name string) (int, error) {
	v := s.find(name)
	v.Attempts++
	return v.Attempts, nil
}

func (s *memStore) SetStatus(_ context.Context, name, status string) error {
	s.find(name).Status = status
	return nil
}

func (s *memStore) MarkVerified(_ context.Context, name, erpUser string) error {
	v := s.find(name)
	if v == nil || v.Status != StatusPending {
		return ErrVerificationNotFound
	}
	v.Status = StatusVerified
	v.ERPUser = erpUser
	return nil
}

// staleStore serves reads from a snapshot that still shows the row as
// pending after it was consumed, the way a second confirmation that read
// the row before the first one flipped it would see it.
type staleStore struct {
	*memStore
}

func (s *staleStore) GetLatestPending(_ context.Context, email string, chatID int64) (*Verification, error) {
	for i := len(s.rows) - 1; i >= 0; i-- {
		v := s.rows[i]
		if v.Email == email && v.ChatID == chatID && v.Status != StatusExpired {
			snapshot := *v
			snapshot.Status = StatusPending
			return &snapshot, nil
		}
	}
	return nil, ErrVerificationNotFound
}

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

type memMailer struct {
	sent     []string
	lastCode string
	fail     bool
}

func (m *memMailer) Send(to, subject, body string) error {
	if m.fail {
		return errors.New("smtp unreachable")
	}
	m.sent = append(m.sent, to)
	if match := codePattern.FindStringSubmatch(body); match != nil {
		m.lastCode = match[1]
	}
	return nil
}

type memLimiter struct {
	marked map[string]bool
}

func (l *memLimiter) AnySet(_ context.Context, keys ...string) bool {
	for _, k := range keys {
		if l.marked[k] {
			return true
		}
	}
	return false
}

func (l *memLimiter) Set(_ context.Context, _ time.Duration, keys ...string) {
	if l.marked == nil {
		l.marked = map[string]bool{}
	}
	for _, k := range keys {
		l.marked[k] = true
	}
}

type memUsers struct {
	existing    map[string]bool
	provisioned []string
	grants      map[string][]string
}

func (u *memUsers) ResolveByEmail(_ context.Context, email string) (string, error) {
	if u.existing[email] {
		return email, nil
	}
	return "", nil
}

func (u *memUsers) EnsurePortalUser(_ context.Context, email string) (string, error) {
	u.provisioned = append(u.provisioned, email)
	return email, nil
}

func (u *memUsers) GrantProjectPermission(_ context.Context, email, projectName string) error {
	if u.grants == nil {
		u.grants = map[string][]string{}
	}
	u.grants[email] = append(u.grants[email], projectName)
	return nil
}

type memContacts map[string][]string

func (c memContacts) VerifiedContactProjects(_ context.Context, email string) ([]string, error) {
	return c[email], nil
}

type memLinks struct {
	linked map[int64]string
	active map[int64]string
}

func (l *memLinks) Link(_ context.Context, chatID int64, userEmail, telegramUsername string) (*chatlink.ChatLink, error) {
	if l.linked == nil {
		l.linked = map[int64]string{}
	}
	l.linked[chatID] = userEmail
	return &chatlink.ChatLink{ChatID: chatID, UserEmail: userEmail, TelegramUsername: telegramUsername}, nil
}

func (l *memLinks) ActiveProject(_ context.Context, chatID int64) (string, error) {
	return l.active[chatID], nil
}

func (l *memLinks) SetActiveProject(_ context.Context, chatID int64, projectName string) error {
	if l.active == nil {
		l.active = map[int64]string{}
	}
	l.active[chatID] = projectName
	return nil
}

type fixture struct {
	svc      *VerificationService
	store    *memStore
	mail     *memMailer
	limiter  *memLimiter
	users    *memUsers
	contacts memContacts
	links    *memLinks
}

func newFixture() *fixture {
	f := &fixture{
		store:   &memStore{},
		mail:    &memMailer{},
		limiter: &memLimiter{},
		users: &memUsers{existing: map[string]bool{
			"ivan@corp.ru": true,
		}},
		contacts: memContacts{
			"alice@example.com": {"PRJ-001"},
			"bob@example.com":   {"PRJ-001", "PRJ-002"},
		},
		links: &memLinks{},
	}
	f.svc = NewVerificationService(f.store, f.mail, f.limiter, f.users, f.contacts, f.links)
	return f
}

func TestStartAndConfirmExistingUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.svc.Start(ctx, "Ivan@Corp.ru", 42, "ivan_tg"))
	require.Equal(t, []string{"ivan@corp.ru"}, f.mail.sent)
	require.Len(t, f.store.rows, 1)
	require.Equal(t, StatusPending, f.store.rows[0].Status)
	require.NotContains(t, f.store.rows[0].CodeHash, f.mail.lastCode,
		"stored hash must not contain the plain code")

	res, err := f.svc.Confirm(ctx, "ivan@corp.ru", 42, "ivan_tg", f.mail.lastCode)
	require.NoError(t, err)
	require.Equal(t, "ivan@corp.ru", res.User)
	require.Equal(t, "ivan@corp.ru", f.links.linked[42])
	require.Equal(t, StatusVerified, f.store.rows[0].Status)
	require.Empty(t, f.users.provisioned, "existing accounts are not re-provisioned")
}

func TestConfirmProvisionsContactUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.svc.Start(ctx, "alice@example.com", 7, "alice"))

	res, err := f.svc.Confirm(ctx, "alice@example.com", 7, "alice", f.mail.lastCode)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", res.User)
	require.Equal(t, []string{"alice@example.com"}, f.users.provisioned)
	require.Equal(t, []string{"PRJ-001"}, f.users.grants["alice@example.com"])

	// Exactly one granted project becomes the active one.
	require.Equal(t, "PRJ-001", res.ActiveProject)
	require.Equal(t, "PRJ-001", f.links.active[7])
}

func TestConfirmManyGrantsNoAutoSelect(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.svc.Start(ctx, "bob@example.com", 8, "bob"))

	res, err := f.svc.Confirm(ctx, "bob@example.com", 8, "bob", f.mail.lastCode)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"PRJ-001", "PRJ-002"}, res.GrantedProjects)
	require.Empty(t, res.ActiveProject)
	require.Empty(t, f.links.active[8])
}

func TestStartRejectsBadEmail(t *testing.T) {
	f := newFixture()

	err := f.svc.Start(context.Background(), "not-an-email", 42, "")
	require.Error(t, err)
	require.Empty(t, f.store.rows)
}

func TestStartRejectsUnknownEmail(t *testing.T) {
	f := newFixture()

	err := f.svc.Start(context.Background(), "nobody@nowhere.ru", 42, "")
	require.Error(t, err)
	require.Empty(t, f.store.rows)
	require.Empty(t, f.mail.sent)
}

func TestStartRateLimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.svc.Start(ctx, "ivan@corp.ru", 42, ""))
	err := f.svc.Start(ctx, "ivan@corp.ru", 42, "")
	require.Error(t, err)
	require.Len(t, f.store.rows, 1, "throttled request must not issue a new code")
}

func TestStartMailFailureLeavesNothing(t *testing.T) {
	f := newFixture()
	f.mail.fail = true

	err := f.svc.Start(context.Background(), "ivan@corp.ru", 42, "")
	require.Error(t, err)
	require.Empty(t, f.store.rows)
	require.Empty(t, f.limiter.marked, "failed send must not start the throttle window")
}

func TestStartSupersedesOlderCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.svc.Start(ctx, "ivan@corp.ru", 42, ""))
	first := f.mail.lastCode

	f.limiter.marked = map[string]bool{}
	require.NoError(t, f.svc.Start(ctx, "ivan@corp.ru", 42, ""))

	require.Equal(t, StatusExpired, f.store.rows[0].Status)
	require.Equal(t, StatusPending, f.store.rows[1].Status)

	if first != f.mail.lastCode {
		_, err := f.svc.Confirm(ctx, "ivan@corp.ru", 42, "", first)
		require.Error(t, err, "superseded code must not confirm")
	}
}

func TestConfirmWrongCodeLocksOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.svc.Start(ctx, "ivan@corp.ru", 42, ""))

	wrong := "000000"
	if wrong == f.mail.lastCode {
		wrong = "000001"
	}

	var lastErr error
	for i := 0; i < MaxAttempts; i++ {
		_, lastErr = f.svc.Confirm(ctx, "ivan@corp.ru", 42, "", wrong)
		require.Error(t, lastErr)
	}
	require.Equal(t, StatusLocked, f.store.rows[0].Status)

	// Even the right code is dead once the attempt budget is spent.
	_, err := f.svc.Confirm(ctx, "ivan@corp.ru", 42, "", f.mail.lastCode)
	require.Error(t, err)
	require.Equal(t, lastErr.Error(), err.Error(),
		"lockout must not be distinguishable from a wrong code")
}

func TestConfirmExpiredCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.svc.Start(ctx, "ivan@corp.ru", 42, ""))

	f.svc.now = func() time.Time { return time.Now().Add(CodeTTL + time.Minute) }

	_, err := f.svc.Confirm(ctx, "ivan@corp.ru", 42, "", f.mail.lastCode)
	require.Error(t, err)
	require.Equal(t, StatusExpired, f.store.rows[0].Status)
}

func TestConfirmCodeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.svc.Start(ctx, "ivan@corp.ru", 42, ""))

	_, err := f.svc.Confirm(ctx, "ivan@corp.ru", 42, "", f.mail.lastCode)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, "ivan@corp.ru", 42, "", f.mail.lastCode)
	require.Error(t, err, "a consumed code must not confirm again")
}

func TestConfirmDuplicateLosesClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	stale := &staleStore{f.store}
	svc := NewVerificationService(stale, f.mail, f.limiter, f.users, f.contacts, f.links)

	require.NoError(t, svc.Start(ctx, "alice@example.com", 7, "alice"))

	res, err := svc.Confirm(ctx, "alice@example.com", 7, "alice", f.mail.lastCode)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", res.User)

	// The duplicate read the row as still pending; the conditional flip
	// is what rejects it.
	_, err = svc.Confirm(ctx, "alice@example.com", 7, "alice", f.mail.lastCode)
	require.Error(t, err)
	require.Equal(t, errInvalidCode().Error(), err.Error(),
		"lost claim must not be distinguishable from a wrong code")
	require.Equal(t, []string{"PRJ-001"}, f.users.grants["alice@example.com"],
		"permissions must be granted exactly once")
}

func TestConfirmWithoutStart(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Confirm(context.Background(), "ivan@corp.ru", 42, "", "123456")
	require.Error(t, err)
}
