package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrSiteNotFound    = errors.New("project site not found")
)

// ProjectRepo handles database operations for projects and their sites
type ProjectRepo struct {
	db *sqlx.DB
}

func NewProjectRepo(db *sqlx.DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

func (r *ProjectRepo) GetByName(ctx context.Context, name string) (*Project, error) {
	query := `
        SELECT name, project_name, company, customer, project_manager, stage, status,
               drive_folder_url, drive_folder_id, created_at, updated_at
        FROM projects
        WHERE name = $1
    `

	var p Project
	err := r.db.GetContext(ctx, &p, query, name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &p, nil
}

func (r *ProjectRepo) Exists(ctx context.Context, name string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM projects WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("failed to check project: %w", err)
	}

	return n > 0, nil
}

// ListAll returns every project ordered by last modification, newest first.
// Used for administrative users only.
func (r *ProjectRepo) ListAll(ctx context.Context, limit int) ([]*Summary, error) {
	query := `
        SELECT name, project_name, company, customer, project_manager, stage, status
        FROM projects
        ORDER BY updated_at DESC
        LIMIT $1
    `

	var projects []*Summary
	err := r.db.SelectContext(ctx, &projects, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	return projects, nil
}

// ListByNames returns summaries for a name set, newest first.
func (r *ProjectRepo) ListByNames(ctx context.Context, names []string) ([]*Summary, error) {
	if len(names) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
        SELECT name, project_name, company, customer, project_manager, stage, status
        FROM projects
        WHERE name IN (?)
        ORDER BY updated_at DESC
    `, names)
	if err != nil {
		return nil, fmt.Errorf("failed to build project query: %w", err)
	}

	var projects []*Summary
	err = r.db.SelectContext(ctx, &projects, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	return projects, nil
}

func (r *ProjectRepo) SetDriveFolder(ctx context.Context, name, url, id string) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE projects
        SET drive_folder_url = $2, drive_folder_id = $3, updated_at = NOW()
        WHERE name = $1
    `, name, url, id)
	if err != nil {
		return fmt.Errorf("failed to set project drive folder: %w", err)
	}

	return nil
}

func (r *ProjectRepo) GetSite(ctx context.Context, name string) (*Site, error) {
	query := `
        SELECT name, project, site_name, address, default_engineer, idx,
               drive_folder_url, drive_folder_id, created_at, updated_at
        FROM project_sites
        WHERE name = $1
    `

	var s Site
	err := r.db.GetContext(ctx, &s, query, name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSiteNotFound
		}
		return nil, fmt.Errorf("failed to get project site: %w", err)
	}

	return &s, nil
}

// ListSites returns the sites of a project in idx order, optionally narrowed
// to one default engineer.
func (r *ProjectRepo) ListSites(ctx context.Context, project, engineer string) ([]*Site, error) {
	query := `
        SELECT name, project, site_name, address, default_engineer, idx,
               drive_folder_url, drive_folder_id, created_at, updated_at
        FROM project_sites
        WHERE project = $1
    `
	args := []interface{}{project}

	if engineer != "" {
		query += ` AND default_engineer = $2`
		args = append(args, engineer)
	}
	query += ` ORDER BY idx ASC`

	var sites []*Site
	err := r.db.SelectContext(ctx, &sites, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list project sites: %w", err)
	}

	return sites, nil
}

func (r *ProjectRepo) SetSiteDriveFolder(ctx context.Context, name, url, id string) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE project_sites
        SET drive_folder_url = $2, drive_folder_id = $3, updated_at = NOW()
        WHERE name = $1
    `, name, url, id)
	if err != nil {
		return fmt.Errorf("failed to set site drive folder: %w", err)
	}

	return nil
}

// VerifiedContactProjects returns projects where the email appears as a
// verified official contact.
func (r *ProjectRepo) VerifiedContactProjects(ctx context.Context, email string) ([]string, error) {
	var projects []string
	err := r.db.SelectContext(ctx, &projects, `
        SELECT project FROM project_contacts
        WHERE email = $1 AND verified = TRUE
        ORDER BY project
    `, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact projects: %w", err)
	}

	return projects, nil
}
