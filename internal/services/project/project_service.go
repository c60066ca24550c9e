package project

import (
	"context"
	"errors"
	"fmt"
)

// ProjectService contains read-side business logic for projects and sites.
// Project records themselves are authored in the Desk UI; the self-service
// surface only reads them and maintains drive folder references.
type ProjectService struct {
	repo *ProjectRepo
}

func NewProjectService(repo *ProjectRepo) *ProjectService {
	return &ProjectService{repo: repo}
}

func (s *ProjectService) GetByName(ctx context.Context, name string) (*Project, error) {
	p, err := s.repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return p, nil
}

func (s *ProjectService) Exists(ctx context.Context, name string) (bool, error) {
	return s.repo.Exists(ctx, name)
}

func (s *ProjectService) ListAll(ctx context.Context) ([]*Summary, error) {
	return s.repo.ListAll(ctx, 500)
}

func (s *ProjectService) ListByNames(ctx context.Context, names []string) ([]*Summary, error) {
	return s.repo.ListByNames(ctx, names)
}

func (s *ProjectService) GetSite(ctx context.Context, name string) (*Site, error) {
	site, err := s.repo.GetSite(ctx, name)
	if err != nil {
		if errors.Is(err, ErrSiteNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, fmt.Errorf("failed to get site: %w", err)
	}

	return site, nil
}

// ListSites returns the sites of a project. When engineer is non-empty the
// result is narrowed to sites assigned to that engineer.
func (s *ProjectService) ListSites(ctx context.Context, project, engineer string) ([]*Site, error) {
	return s.repo.ListSites(ctx, project, engineer)
}

// SiteBelongsToProject verifies the site/project pairing claimed by a caller.
func (s *ProjectService) SiteBelongsToProject(ctx context.Context, site, project string) (bool, error) {
	row, err := s.repo.GetSite(ctx, site)
	if err != nil {
		if errors.Is(err, ErrSiteNotFound) {
			return false, nil
		}
		return false, err
	}

	return row.Project == project, nil
}

func (s *ProjectService) VerifiedContactProjects(ctx context.Context, email string) ([]string, error) {
	return s.repo.VerifiedContactProjects(ctx, email)
}

func (s *ProjectService) SetDriveFolder(ctx context.Context, name, url, id string) error {
	return s.repo.SetDriveFolder(ctx, name, url, id)
}

func (s *ProjectService) SetSiteDriveFolder(ctx context.Context, name, url, id string) error {
	return s.repo.SetSiteDriveFolder(ctx, name, url, id)
}
