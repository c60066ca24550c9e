package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/ferumlab/ferum-hub/internal/perrors"
	"github.com/ferumlab/ferum-hub/internal/services/user"
)

// Resolver decides which projects a user may see. The answer is the union
// of every grant source; administrators bypass the sources entirely.
type Resolver struct {
	store   Store
	sources []grantSource
}

func NewResolver(store Store) *Resolver {
	return &Resolver{
		store: store,
		sources: []grantSource{
			managerSource{},
			memberSource{},
			siteEngineerSource{},
			permissionSource{},
			customerSource{},
		},
	}
}

// HasGlobalAccess reports whether the user sees every project regardless
// of grants. True for the built-in Administrator account and for anyone
// holding the System Manager role.
func (r *Resolver) HasGlobalAccess(ctx context.Context, userEmail string) (bool, error) {
	if userEmail == user.Administrator {
		return true, nil
	}

	roles, err := r.store.Roles(ctx, userEmail)
	if err != nil {
		return false, err
	}

	for _, role := range roles {
		if role == user.RoleSystemManager {
			return true, nil
		}
	}

	return false, nil
}

// HasAccess reports whether the user may see the project. Unknown users
// and unknown projects yield false, not an error.
func (r *Resolver) HasAccess(ctx context.Context, userEmail, project string) (bool, error) {
	userEmail = strings.TrimSpace(userEmail)
	project = strings.TrimSpace(project)
	if userEmail == "" || project == "" {
		return false, nil
	}

	global, err := r.HasGlobalAccess(ctx, userEmail)
	if err != nil {
		return false, err
	}
	if global {
		return true, nil
	}

	exists, err := r.store.ProjectExists(ctx, project)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	for _, src := range r.sources {
		ok, err := src.contains(ctx, r.store, userEmail, project)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}

	return false, nil
}

// AccessibleProjects returns the set of project names the user may see,
// built from the same grant sources HasAccess consults.
func (r *Resolver) AccessibleProjects(ctx context.Context, userEmail string) (map[string]struct{}, error) {
	userEmail = strings.TrimSpace(userEmail)
	if userEmail == "" {
		return map[string]struct{}{}, nil
	}

	global, err := r.HasGlobalAccess(ctx, userEmail)
	if err != nil {
		return nil, err
	}
	if global {
		all, err := r.store.AllProjects(ctx)
		if err != nil {
			return nil, err
		}
		return toSet(all), nil
	}

	set := map[string]struct{}{}
	for _, src := range r.sources {
		names, err := src.projects(ctx, r.store, userEmail)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			set[name] = struct{}{}
		}
	}

	return set, nil
}

// AssertAccess is HasAccess shaped for request handlers: it maps the
// negative answer to a forbidden error.
func (r *Resolver) AssertAccess(ctx context.Context, userEmail, project string) error {
	ok, err := r.HasAccess(ctx, userEmail, project)
	if err != nil {
		return err
	}
	if !ok {
		return perrors.NewErrForbidden(fmt.Errorf("no access to project %s", project))
	}

	return nil
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}
