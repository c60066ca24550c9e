package access

import "context"

// Store is the read surface the resolver needs from the document store.
// It is deliberately narrow so tests can run against an in-memory fixture.
type Store interface {
	Roles(ctx context.Context, user string) ([]string, error)
	ProjectExists(ctx context.Context, project string) (bool, error)
	AllProjects(ctx context.Context) ([]string, error)

	IsManager(ctx context.Context, user, project string) (bool, error)
	ManagedProjects(ctx context.Context, user string) ([]string, error)

	IsMember(ctx context.Context, user, project string) (bool, error)
	MemberProjects(ctx context.Context, user string) ([]string, error)

	IsSiteEngineer(ctx context.Context, user, project string) (bool, error)
	EngineerProjects(ctx context.Context, user string) ([]string, error)

	HasProjectPermission(ctx context.Context, user, project string) (bool, error)
	PermittedProjects(ctx context.Context, user string) ([]string, error)

	// Customer-derived access: explicit Customer permissions unioned with
	// customers reachable through the user's contact records.
	PermittedCustomers(ctx context.Context, user string) ([]string, error)
	ContactCustomers(ctx context.Context, user string) ([]string, error)
	ProjectCustomer(ctx context.Context, project string) (string, error)
	ProjectsByCustomers(ctx context.Context, customers []string) ([]string, error)
}

// grantSource is one independent reason a user may see a project. Both
// resolver entry points walk the same source list, which is what keeps
// HasAccess and AccessibleProjects consistent with each other.
type grantSource interface {
	contains(ctx context.Context, store Store, user, project string) (bool, error)
	projects(ctx context.Context, store Store, user string) ([]string, error)
}

type managerSource struct{}

func (managerSource) contains(ctx context.Context, store Store, user, project string) (bool, error) {
	return store.IsManager(ctx, user, project)
}

func (managerSource) projects(ctx context.Context, store Store, user string) ([]string, error) {
	return store.ManagedProjects(ctx, user)
}

type memberSource struct{}

func (memberSource) contains(ctx context.Context, store Store, user, project string) (bool, error) {
	return store.IsMember(ctx, user, project)
}

func (memberSource) projects(ctx context.Context, store Store, user string) ([]string, error) {
	return store.MemberProjects(ctx, user)
}

type siteEngineerSource struct{}

func (siteEngineerSource) contains(ctx context.Context, store Store, user, project string) (bool, error) {
	return store.IsSiteEngineer(ctx, user, project)
}

func (siteEngineerSource) projects(ctx context.Context, store Store, user string) ([]string, error) {
	return store.EngineerProjects(ctx, user)
}

type permissionSource struct{}

func (permissionSource) contains(ctx context.Context, store Store, user, project string) (bool, error) {
	return store.HasProjectPermission(ctx, user, project)
}

func (permissionSource) projects(ctx context.Context, store Store, user string) ([]string, error) {
	return store.PermittedProjects(ctx, user)
}

type customerSource struct{}

func (customerSource) customerSet(ctx context.Context, store Store, user string) (map[string]struct{}, error) {
	permitted, err := store.PermittedCustomers(ctx, user)
	if err != nil {
		return nil, err
	}
	derived, err := store.ContactCustomers(ctx, user)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(permitted)+len(derived))
	for _, c := range permitted {
		set[c] = struct{}{}
	}
	for _, c := range derived {
		set[c] = struct{}{}
	}

	return set, nil
}

func (s customerSource) contains(ctx context.Context, store Store, user, project string) (bool, error) {
	customers, err := s.customerSet(ctx, store, user)
	if err != nil {
		return false, err
	}
	if len(customers) == 0 {
		return false, nil
	}

	customer, err := store.ProjectCustomer(ctx, project)
	if err != nil {
		return false, err
	}
	if customer == "" {
		return false, nil
	}

	_, ok := customers[customer]
	return ok, nil
}

func (s customerSource) projects(ctx context.Context, store Store, user string) ([]string, error) {
	customers, err := s.customerSet(ctx, store, user)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(customers))
	for c := range customers {
		names = append(names, c)
	}

	return store.ProjectsByCustomers(ctx, names)
}
