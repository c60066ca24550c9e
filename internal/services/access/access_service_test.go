package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	roles         map[string][]string
	projects      map[string]string // project -> customer
	managers      map[string]string // project -> manager
	members       map[string][]string
	siteEngineers map[string][]string // project -> engineers
	projectPerms  map[string][]string // user -> projects
	customerPerms map[string][]string // user -> customers
	contacts      map[string][]string // user -> customers
}

func (f *fakeStore) Roles(_ context.Context, user string) ([]string, error) {
	return f.roles[user], nil
}

func (f *fakeStore) ProjectExists(_ context.Context, project string) (bool, error) {
	_, ok := f.projects[project]
	return ok, nil
}

func (f *fakeStore) AllProjects(_ context.Context) ([]string, error) {
	var names []string
	for name := range f.projects {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeStore) IsManager(_ context.Context, user, project string) (bool, error) {
	return f.managers[project] == user, nil
}

func (f *fakeStore) ManagedProjects(_ context.Context, user string) ([]string, error) {
	var names []string
	for project, manager := range f.managers {
		if manager == user {
			names = append(names, project)
		}
	}
	return names, nil
}

func (f *fakeStore) IsMember(_ context.Context, user, project string) (bool, error) {
	for _, member := range f.members[project] {
		if member == user {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) MemberProjects(_ context.Context, user string) ([]string, error) {
	var names []string
	for project, members := range f.members {
		for _, member := range members {
			if member == user {
				names = append(names, project)
			}
		}
	}
	return names, nil
}

func (f *fakeStore) IsSiteEngineer(_ context.Context, user, project string) (bool, error) {
	for _, eng := range f.siteEngineers[project] {
		if eng == user {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) EngineerProjects(_ context.Context, user string) ([]string, error) {
	var names []string
	for project, engineers := range f.siteEngineers {
		for _, eng := range engineers {
			if eng == user {
				names = append(names, project)
			}
		}
	}
	return names, nil
}

func (f *fakeStore) HasProjectPermission(_ context.Context, user, project string) (bool, error) {
	for _, name := range f.projectPerms[user] {
		if name == project {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) PermittedProjects(_ context.Context, user string) ([]string, error) {
	return f.projectPerms[user], nil
}

func (f *fakeStore) PermittedCustomers(_ context.Context, user string) ([]string, error) {
	return f.customerPerms[user], nil
}

func (f *fakeStore) ContactCustomers(_ context.Context, user string) ([]string, error) {
	return f.contacts[user], nil
}

func (f *fakeStore) ProjectCustomer(_ context.Context, project string) (string, error) {
	return f.projects[project], nil
}

func (f *fakeStore) ProjectsByCustomers(_ context.Context, customers []string) ([]string, error) {
	set := map[string]struct{}{}
	for _, c := range customers {
		set[c] = struct{}{}
	}
	var names []string
	for project, customer := range f.projects {
		if _, ok := set[customer]; ok {
			names = append(names, project)
		}
	}
	return names, nil
}

func newFixture() *fakeStore {
	return &fakeStore{
		roles: map[string][]string{
			"sysmgr@ferum.ru":   {"System Manager"},
			"pm@ferum.ru":       {"Project Manager"},
			"eng@ferum.ru":      {"Service Engineer"},
			"client@corp.ru":    {"Client"},
			"stranger@mail.ru":  {"Client"},
			"permuser@ferum.ru": {"Client"},
		},
		projects: map[string]string{
			"PRJ-001": "ACME",
			"PRJ-002": "ACME",
			"PRJ-003": "Globex",
			"PRJ-004": "",
		},
		managers: map[string]string{
			"PRJ-001": "pm@ferum.ru",
		},
		members: map[string][]string{
			"PRJ-003": {"pm@ferum.ru"},
		},
		siteEngineers: map[string][]string{
			"PRJ-002": {"eng@ferum.ru"},
		},
		projectPerms: map[string][]string{
			"permuser@ferum.ru": {"PRJ-004"},
		},
		customerPerms: map[string][]string{
			"client@corp.ru": {"ACME"},
		},
		contacts: map[string][]string{
			"client@corp.ru": {"Globex"},
		},
	}
}

func TestHasAccessGrantSources(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newFixture())

	cases := []struct {
		name    string
		user    string
		project string
		want    bool
	}{
		{"manager of project", "pm@ferum.ru", "PRJ-001", true},
		{"member of project", "pm@ferum.ru", "PRJ-003", true},
		{"manager not elsewhere", "pm@ferum.ru", "PRJ-002", false},
		{"site engineer", "eng@ferum.ru", "PRJ-002", true},
		{"engineer not elsewhere", "eng@ferum.ru", "PRJ-001", false},
		{"explicit project permission", "permuser@ferum.ru", "PRJ-004", true},
		{"customer permission", "client@corp.ru", "PRJ-001", true},
		{"customer permission sibling", "client@corp.ru", "PRJ-002", true},
		{"contact derived customer", "client@corp.ru", "PRJ-003", true},
		{"customer does not reach blank", "client@corp.ru", "PRJ-004", false},
		{"no grants at all", "stranger@mail.ru", "PRJ-001", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.HasAccess(ctx, tc.user, tc.project)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestHasAccessAdminOverride(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newFixture())

	for _, user := range []string{"Administrator", "sysmgr@ferum.ru"} {
		ok, err := r.HasAccess(ctx, user, "PRJ-001")
		require.NoError(t, err)
		require.True(t, ok)

		// Global access does not even look at the project table.
		ok, err = r.HasAccess(ctx, user, "NO-SUCH-PROJECT")
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestHasAccessUnknownInputs(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newFixture())

	ok, err := r.HasAccess(ctx, "nobody@nowhere.ru", "PRJ-001")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = r.HasAccess(ctx, "pm@ferum.ru", "NO-SUCH-PROJECT")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = r.HasAccess(ctx, "", "PRJ-001")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = r.HasAccess(ctx, "pm@ferum.ru", "  ")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAccessibleProjectsMatchesHasAccess(t *testing.T) {
	ctx := context.Background()
	store := newFixture()
	r := NewResolver(store)

	users := []string{
		"sysmgr@ferum.ru", "pm@ferum.ru", "eng@ferum.ru",
		"client@corp.ru", "stranger@mail.ru", "permuser@ferum.ru",
	}

	for _, user := range users {
		set, err := r.AccessibleProjects(ctx, user)
		require.NoError(t, err)

		for project := range store.projects {
			has, err := r.HasAccess(ctx, user, project)
			require.NoError(t, err)

			_, listed := set[project]
			require.Equal(t, has, listed,
				"user %s project %s: HasAccess=%v but listed=%v", user, project, has, listed)
		}
	}
}

func TestAccessibleProjectsGlobal(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newFixture())

	set, err := r.AccessibleProjects(ctx, "sysmgr@ferum.ru")
	require.NoError(t, err)
	require.Len(t, set, 4)
}

func TestAssertAccessForbidden(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newFixture())

	require.NoError(t, r.AssertAccess(ctx, "pm@ferum.ru", "PRJ-001"))

	err := r.AssertAccess(ctx, "stranger@mail.ru", "PRJ-001")
	require.Error(t, err)
}
