package request

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

type fakeRoles map[string][]string

func (f fakeRoles) Roles(_ context.Context, email string) ([]string, error) {
	return f[email], nil
}

type fakeCustomers struct {
	permitted map[string][]string
	contacts  map[string][]string
}

func (f fakeCustomers) PermittedCustomers(_ context.Context, user string) ([]string, error) {
	return f.permitted[user], nil
}

func (f fakeCustomers) ContactCustomers(_ context.Context, user string) ([]string, error) {
	return f.contacts[user], nil
}

func TestScopeFor(t *testing.T) {
	ctx := context.Background()

	roles := fakeRoles{
		"pm@ferum.ru":     {"Project Manager"},
		"eng@ferum.ru":    {"Service Engineer"},
		"client@corp.ru":  {"Client"},
		"orphan@corp.ru":  {"Client"},
		"nobody@corp.ru":  {},
		"engmgr@ferum.ru": {"Service Engineer", "Office Manager"},
	}
	customers := fakeCustomers{
		permitted: map[string][]string{"client@corp.ru": {"ACME"}},
		contacts:  map[string][]string{"client@corp.ru": {"ACME", "Globex"}},
	}

	svc := NewRequestService(nil, nil, roles, customers)

	t.Run("administrator unrestricted", func(t *testing.T) {
		scope, err := svc.scopeFor(ctx, "Administrator", "PRJ-001", 10)
		require.NoError(t, err)
		require.Equal(t, ListScope{Project: "PRJ-001", Limit: 10}, scope)
	})

	t.Run("privileged role unrestricted", func(t *testing.T) {
		scope, err := svc.scopeFor(ctx, "pm@ferum.ru", "PRJ-001", 10)
		require.NoError(t, err)
		require.Empty(t, scope.Engineer)
		require.Empty(t, scope.Customers)
		require.Empty(t, scope.Owner)
	})

	t.Run("engineer narrowed to own work", func(t *testing.T) {
		scope, err := svc.scopeFor(ctx, "eng@ferum.ru", "", 10)
		require.NoError(t, err)
		require.Equal(t, "eng@ferum.ru", scope.Engineer)
	})

	t.Run("engineer with managerial role sees all", func(t *testing.T) {
		scope, err := svc.scopeFor(ctx, "engmgr@ferum.ru", "", 10)
		require.NoError(t, err)
		require.Empty(t, scope.Engineer)
	})

	t.Run("client scoped to customers", func(t *testing.T) {
		scope, err := svc.scopeFor(ctx, "client@corp.ru", "", 10)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"ACME", "Globex"}, scope.Customers)
		require.Empty(t, scope.Owner)
	})

	t.Run("client without customers falls back to own", func(t *testing.T) {
		scope, err := svc.scopeFor(ctx, "orphan@corp.ru", "", 10)
		require.NoError(t, err)
		require.Empty(t, scope.Customers)
		require.Equal(t, "orphan@corp.ru", scope.Owner)
	})

	t.Run("unknown role falls back to own", func(t *testing.T) {
		scope, err := svc.scopeFor(ctx, "nobody@corp.ru", "", 10)
		require.NoError(t, err)
		require.Equal(t, "nobody@corp.ru", scope.Owner)
	})
}

func TestTruncateTitle(t *testing.T) {
	require.Equal(t, "Протечка", truncateTitle("Протечка"))

	long := strings.Repeat("ё", 150)
	got := truncateTitle(long)
	require.Equal(t, 140, utf8.RuneCountInString(got))
	require.True(t, utf8.ValidString(got))
	require.Equal(t, strings.Repeat("ё", 140), got)
}

func TestSectionFolderName(t *testing.T) {
	require.Equal(t, "01_Control_Panel", SectionFolderName("Control Panel", 1))
	require.Equal(t, "06_Documentation_Wiring", SectionFolderName("Documentation & Wiring", 6))
	require.Equal(t, "03_Газ", SectionFolderName("Газ", 3))
	require.Equal(t, "02_ППКП_АРМ", SectionFolderName("ППКП/АРМ", 2))
}
