package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// AccessRepo answers grant-source queries straight from Postgres. It
// implements Store.
type AccessRepo struct {
	db *sqlx.DB
}

func NewAccessRepo(db *sqlx.DB) *AccessRepo {
	return &AccessRepo{db: db}
}

func (r *AccessRepo) Roles(ctx context.Context, user string) ([]string, error) {
	var roles []string

	err := r.db.SelectContext(ctx, &roles, `
        SELECT role FROM user_roles WHERE user_email = $1
    `, user)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}

	return roles, nil
}

func (r *AccessRepo) ProjectExists(ctx context.Context, project string) (bool, error) {
	var exists bool

	err := r.db.GetContext(ctx, &exists, `
        SELECT EXISTS (SELECT 1 FROM projects WHERE name = $1)
    `, project)
	if err != nil {
		return false, fmt.Errorf("failed to check project: %w", err)
	}

	return exists, nil
}

func (r *AccessRepo) AllProjects(ctx context.Context) ([]string, error) {
	var names []string

	err := r.db.SelectContext(ctx, &names, `
        SELECT name FROM projects ORDER BY name
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	return names, nil
}

func (r *AccessRepo) IsManager(ctx context.Context, user, project string) (bool, error) {
	var ok bool

	err := r.db.GetContext(ctx, &ok, `
        SELECT EXISTS (
            SELECT 1 FROM projects WHERE name = $1 AND project_manager = $2
        )
    `, project, user)
	if err != nil {
		return false, fmt.Errorf("failed to check manager: %w", err)
	}

	return ok, nil
}

func (r *AccessRepo) ManagedProjects(ctx context.Context, user string) ([]string, error) {
	var names []string

	err := r.db.SelectContext(ctx, &names, `
        SELECT name FROM projects WHERE project_manager = $1
    `, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list managed projects: %w", err)
	}

	return names, nil
}

func (r *AccessRepo) IsMember(ctx context.Context, user, project string) (bool, error) {
	var ok bool

	err := r.db.GetContext(ctx, &ok, `
        SELECT EXISTS (
            SELECT 1 FROM project_members WHERE project = $1 AND user_email = $2
        )
    `, project, user)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}

	return ok, nil
}

func (r *AccessRepo) MemberProjects(ctx context.Context, user string) ([]string, error) {
	var names []string

	err := r.db.SelectContext(ctx, &names, `
        SELECT project FROM project_members WHERE user_email = $1
    `, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list member projects: %w", err)
	}

	return names, nil
}

func (r *AccessRepo) IsSiteEngineer(ctx context.Context, user, project string) (bool, error) {
	var ok bool

	err := r.db.GetContext(ctx, &ok, `
        SELECT EXISTS (
            SELECT 1 FROM project_sites WHERE project = $1 AND default_engineer = $2
        )
    `, project, user)
	if err != nil {
		return false, fmt.Errorf("failed to check site engineer: %w", err)
	}

	return ok, nil
}

func (r *AccessRepo) EngineerProjects(ctx context.Context, user string) ([]string, error) {
	var names []string

	err := r.db.SelectContext(ctx, &names, `
        SELECT DISTINCT project FROM project_sites WHERE default_engineer = $1
    `, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list engineer projects: %w", err)
	}

	return names, nil
}

func (r *AccessRepo) HasProjectPermission(ctx context.Context, user, project string) (bool, error) {
	var ok bool

	err := r.db.GetContext(ctx, &ok, `
        SELECT EXISTS (
            SELECT 1 FROM user_permissions
            WHERE user_email = $1 AND allow = 'Project' AND for_value = $2
        )
    `, user, project)
	if err != nil {
		return false, fmt.Errorf("failed to check project permission: %w", err)
	}

	return ok, nil
}

func (r *AccessRepo) PermittedProjects(ctx context.Context, user string) ([]string, error) {
	var names []string

	err := r.db.SelectContext(ctx, &names, `
        SELECT for_value FROM user_permissions
        WHERE user_email = $1 AND allow = 'Project'
    `, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list permitted projects: %w", err)
	}

	return names, nil
}

func (r *AccessRepo) PermittedCustomers(ctx context.Context, user string) ([]string, error) {
	var names []string

	err := r.db.SelectContext(ctx, &names, `
        SELECT for_value FROM user_permissions
        WHERE user_email = $1 AND allow = 'Customer'
    `, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list permitted customers: %w", err)
	}

	return names, nil
}

func (r *AccessRepo) ContactCustomers(ctx context.Context, user string) ([]string, error) {
	var names []string

	err := r.db.SelectContext(ctx, &names, `
        SELECT DISTINCT customer FROM contacts WHERE user_email = $1
    `, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact customers: %w", err)
	}

	return names, nil
}

func (r *AccessRepo) ProjectCustomer(ctx context.Context, project string) (string, error) {
	var customer sql.NullString

	err := r.db.GetContext(ctx, &customer, `
        SELECT customer FROM projects WHERE name = $1
    `, project)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get project customer: %w", err)
	}

	return customer.String, nil
}

func (r *AccessRepo) ProjectsByCustomers(ctx context.Context, customers []string) ([]string, error) {
	if len(customers) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT name FROM projects WHERE customer IN (?)`, customers)
	if err != nil {
		return nil, fmt.Errorf("failed to build customer projects query: %w", err)
	}

	var names []string

	err = r.db.SelectContext(ctx, &names, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list customer projects: %w", err)
	}

	return names, nil
}
