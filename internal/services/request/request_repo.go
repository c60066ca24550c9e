package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

var ErrRequestNotFound = errors.New("service request not found")

type RequestRepo struct {
	db *sqlx.DB
}

func NewRequestRepo(db *sqlx.DB) *RequestRepo {
	return &RequestRepo{db: db}
}

const requestColumns = `name, title, status, priority, request_type, description,
       project, project_site, customer, company, assigned_to, owner_email,
       created_at, updated_at`

func (r *RequestRepo) GetByName(ctx context.Context, name string) (*Request, error) {
	var req Request

	err := r.db.GetContext(ctx, &req, `
        SELECT `+requestColumns+`
        FROM service_requests
        WHERE name = $1
    `, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get service request: %w", err)
	}

	return &req, nil
}

// List applies the caller's scope. Conditions are ANDed except the
// engineer/client disjunctions, which widen within their own clause.
func (r *RequestRepo) List(ctx context.Context, scope ListScope) ([]Request, error) {
	var (
		conds []string
		args  []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if scope.Project != "" {
		conds = append(conds, "project = "+arg(scope.Project))
	}

	if scope.Engineer != "" {
		e := arg(scope.Engineer)
		conds = append(conds, fmt.Sprintf(`(assigned_to = %s OR project_site IN (
            SELECT name FROM project_sites WHERE default_engineer = %s
        ))`, e, e))
	}

	if len(scope.Customers) > 0 {
		placeholders := make([]string, 0, len(scope.Customers))
		for _, c := range scope.Customers {
			placeholders = append(placeholders, arg(c))
		}
		conds = append(conds, "customer IN ("+strings.Join(placeholders, ", ")+")")
	} else if scope.Owner != "" {
		conds = append(conds, "owner_email = "+arg(scope.Owner))
	}

	query := `SELECT ` + requestColumns + ` FROM service_requests`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := scope.Limit
	if limit <= 0 {
		limit = 10
	}
	query += " ORDER BY updated_at DESC LIMIT " + arg(limit)

	var requests []Request
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list service requests: %w", err)
	}

	return requests, nil
}

func (r *RequestRepo) Create(ctx context.Context, req *Request) error {
	err := r.db.GetContext(ctx, req, `
        INSERT INTO service_requests
            (title, status, priority, request_type, description,
             project, project_site, customer, company, assigned_to, owner_email)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING `+requestColumns+`
    `,
		req.Title, req.Status, req.Priority, req.RequestType, req.Description,
		req.Project, req.ProjectSite, req.Customer, req.Company, req.AssignedTo, req.OwnerEmail)
	if err != nil {
		return fmt.Errorf("failed to create service request: %w", err)
	}

	return nil
}

func (r *RequestRepo) ListChecklist(ctx context.Context, project string) ([]ChecklistItem, error) {
	var items []ChecklistItem

	err := r.db.SelectContext(ctx, &items, `
        SELECT name, project, section, idx, required, done, evidence_link
        FROM survey_checklist_items
        WHERE project = $1
        ORDER BY idx ASC
    `, project)
	if err != nil {
		return nil, fmt.Errorf("failed to list checklist: %w", err)
	}

	return items, nil
}

// InsertChecklistItem is a no-op when the section already exists, which
// keeps checklist seeding idempotent. Returns whether a row was created.
func (r *RequestRepo) InsertChecklistItem(ctx context.Context, item *ChecklistItem) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO survey_checklist_items (project, section, idx, required, done, evidence_link)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (project, section) DO NOTHING
    `, item.Project, item.Section, item.Idx, item.Required, item.Done, item.EvidenceLink)
	if err != nil {
		return false, fmt.Errorf("failed to insert checklist item: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert checklist item: %w", err)
	}

	return rows > 0, nil
}

func (r *RequestRepo) InsertAttachment(ctx context.Context, a *Attachment) error {
	err := r.db.GetContext(ctx, &a.Name, `
        INSERT INTO attachments
            (file_name, file_url, drive_file_id, attached_to_type, attached_to_name, category, uploaded_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING name
    `, a.FileName, a.FileURL, a.DriveFileID, a.AttachedToType, a.AttachedToName, a.Category, a.UploadedBy)
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}

	return nil
}

func (r *RequestRepo) ListAttachments(ctx context.Context, attachedToType, attachedToName string) ([]Attachment, error) {
	var rows []Attachment

	err := r.db.SelectContext(ctx, &rows, `
        SELECT name, file_name, file_url, drive_file_id, attached_to_type,
               attached_to_name, category, uploaded_by, created_at
        FROM attachments
        WHERE attached_to_type = $1 AND attached_to_name = $2
        ORDER BY created_at DESC
    `, attachedToType, attachedToName)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}

	return rows, nil
}

// SetChecklistEvidence marks the section done and records the evidence link.
func (r *RequestRepo) SetChecklistEvidence(ctx context.Context, project, section, link string) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE survey_checklist_items
        SET done = TRUE, evidence_link = $3
        WHERE project = $1 AND section = $2
    `, project, section, link)
	if err != nil {
		return fmt.Errorf("failed to set checklist evidence: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set checklist evidence: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("checklist section %s not found", section)
	}

	return nil
}
