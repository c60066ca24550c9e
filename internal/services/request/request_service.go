package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ferumlab/ferum-hub/internal/perrors"
	"github.com/ferumlab/ferum-hub/internal/services/project"
	"github.com/ferumlab/ferum-hub/internal/services/user"
)

type projectReader interface {
	GetByName(ctx context.Context, name string) (*project.Project, error)
	GetSite(ctx context.Context, name string) (*project.Site, error)
}

type roleReader interface {
	Roles(ctx context.Context, email string) ([]string, error)
}

type customerReader interface {
	PermittedCustomers(ctx context.Context, user string) ([]string, error)
	ContactCustomers(ctx context.Context, user string) ([]string, error)
}

// RequestService owns service requests and the per-project survey checklist.
type RequestService struct {
	repo      *RequestRepo
	projects  projectReader
	roles     roleReader
	customers customerReader
}

func NewRequestService(repo *RequestRepo, projects projectReader, roles roleReader, customers customerReader) *RequestService {
	return &RequestService{
		repo:      repo,
		projects:  projects,
		roles:     roles,
		customers: customers,
	}
}

func (s *RequestService) GetByName(ctx context.Context, name string) (*Request, error) {
	return s.repo.GetByName(ctx, name)
}

// Create inserts a new open request. Customer, company and the assignee are
// denormalized from the project and its site at creation time.
func (s *RequestService) Create(ctx context.Context, params CreateParams) (*Request, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, perrors.NewErrValidation(fmt.Errorf("missing title"))
	}
	title = truncateTitle(title)

	siteName := strings.TrimSpace(params.ProjectSite)
	if siteName == "" {
		return nil, perrors.NewErrValidation(fmt.Errorf("missing project_site"))
	}

	site, err := s.projects.GetSite(ctx, siteName)
	if err != nil {
		if errors.Is(err, project.ErrSiteNotFound) {
			return nil, perrors.NewErrValidation(fmt.Errorf("project site not found"))
		}
		return nil, err
	}
	if site.Project != params.Project {
		return nil, perrors.NewErrValidation(fmt.Errorf("project site does not belong to selected project"))
	}

	proj, err := s.projects.GetByName(ctx, params.Project)
	if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(params.Description)
	if description == "" {
		description = title
	}

	priority := params.Priority
	if priority == "" {
		priority = DefaultPriority
	}

	requestType := params.RequestType
	if requestType == "" {
		requestType = DefaultRequestType
	}

	req := &Request{
		Title:       title,
		Status:      StatusOpen,
		Priority:    priority,
		RequestType: requestType,
		Description: description,
		Project:     params.Project,
		ProjectSite: sql.NullString{String: site.Name, Valid: true},
		Company:     proj.Company,
		OwnerEmail:  params.Owner,
	}
	if proj.Customer != nil && *proj.Customer != "" {
		req.Customer = sql.NullString{String: *proj.Customer, Valid: true}
	}
	if site.DefaultEngineer != nil && *site.DefaultEngineer != "" {
		req.AssignedTo = sql.NullString{String: *site.DefaultEngineer, Valid: true}
	}

	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}

	return req, nil
}

// truncateTitle caps the title at maxTitleLen runes. Cutting on runes
// keeps multibyte titles valid UTF-8.
func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= maxTitleLen {
		return title
	}
	return string(runes[:maxTitleLen])
}

// List returns requests visible to the user, newest first. Privileged roles
// see everything in scope; engineers are narrowed to their sites and
// assignments; clients to their customers, or their own requests when no
// customer can be inferred.
func (s *RequestService) List(ctx context.Context, userEmail, projectName string, limit int) ([]Request, error) {
	scope, err := s.scopeFor(ctx, userEmail, projectName, limit)
	if err != nil {
		return nil, err
	}

	return s.repo.List(ctx, scope)
}

func (s *RequestService) scopeFor(ctx context.Context, userEmail, projectName string, limit int) (ListScope, error) {
	scope := ListScope{Project: projectName, Limit: limit}

	if userEmail == user.Administrator {
		return scope, nil
	}

	roles, err := s.roles.Roles(ctx, userEmail)
	if err != nil {
		return ListScope{}, err
	}

	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}
	for _, r := range user.PrivilegedRoles {
		if _, ok := roleSet[r]; ok {
			return scope, nil
		}
	}

	if _, ok := roleSet[user.RoleServiceEngineer]; ok {
		scope.Engineer = userEmail
		return scope, nil
	}

	if _, ok := roleSet[user.RoleClient]; ok {
		permitted, err := s.customers.PermittedCustomers(ctx, userEmail)
		if err != nil {
			return ListScope{}, err
		}
		derived, err := s.customers.ContactCustomers(ctx, userEmail)
		if err != nil {
			return ListScope{}, err
		}

		seen := map[string]struct{}{}
		for _, c := range append(permitted, derived...) {
			if c == "" {
				continue
			}
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			scope.Customers = append(scope.Customers, c)
		}
		if len(scope.Customers) == 0 {
			scope.Owner = userEmail
		}
		return scope, nil
	}

	scope.Owner = userEmail
	return scope, nil
}

// EnsureDefaultChecklist inserts the default survey sections that the
// project is still missing and reports how many were created.
func (s *RequestService) EnsureDefaultChecklist(ctx context.Context, projectName string) (int, error) {
	existing, err := s.repo.ListChecklist(ctx, projectName)
	if err != nil {
		return 0, err
	}

	maxIdx := 0
	for _, item := range existing {
		if item.Idx > maxIdx {
			maxIdx = item.Idx
		}
	}

	created := 0
	for _, section := range DefaultSurveySections {
		maxIdx++
		inserted, err := s.repo.InsertChecklistItem(ctx, &ChecklistItem{
			Project:  projectName,
			Section:  section,
			Idx:      maxIdx,
			Required: true,
		})
		if err != nil {
			return created, err
		}
		if inserted {
			created++
		} else {
			maxIdx--
		}
	}

	return created, nil
}

func (s *RequestService) Checklist(ctx context.Context, projectName string) ([]ChecklistItem, error) {
	return s.repo.ListChecklist(ctx, projectName)
}

func (s *RequestService) RecordEvidence(ctx context.Context, projectName, section, link string) error {
	return s.repo.SetChecklistEvidence(ctx, projectName, section, link)
}

func (s *RequestService) AddAttachment(ctx context.Context, a *Attachment) error {
	return s.repo.InsertAttachment(ctx, a)
}

func (s *RequestService) Attachments(ctx context.Context, attachedToType, attachedToName string) ([]Attachment, error) {
	return s.repo.ListAttachments(ctx, attachedToType, attachedToName)
}

// SectionFolderName keys the remote evidence folder for a section: a stable
// two-digit position prefix plus a sanitized section slug.
func SectionFolderName(section string, idx int) string {
	parts := strings.FieldsFunc(section, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	return fmt.Sprintf("%02d_%s", idx, strings.Join(parts, "_"))
}
