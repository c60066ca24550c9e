package request

import (
	"database/sql"
	"time"
)

const (
	StatusOpen = "Open"

	DefaultPriority    = "Medium"
	DefaultRequestType = "Routine Maintenance"

	// Titles are trimmed to this many runes before insert.
	maxTitleLen = 140
)

// Attachment target kinds.
const (
	AttachedToProjectSite    = "Project Site"
	AttachedToServiceRequest = "Service Request"
)

// DefaultSurveySections seeds a project's survey checklist. Order matters:
// the numbered prefix of the remote evidence folder comes from the position
// here.
var DefaultSurveySections = []string{
	"Control Panel",
	"Detectors",
	"Gas Suppression",
	"Powder Suppression",
	"Pump Station",
	"Documentation & Wiring",
}

type Request struct {
	Name        string         `db:"name" json:"name"`
	Title       string         `db:"title" json:"title"`
	Status      string         `db:"status" json:"status"`
	Priority    string         `db:"priority" json:"priority"`
	RequestType string         `db:"request_type" json:"request_type"`
	Description string         `db:"description" json:"description"`
	Project     string         `db:"project" json:"project"`
	ProjectSite sql.NullString `db:"project_site" json:"-"`
	Customer    sql.NullString `db:"customer" json:"-"`
	Company     string         `db:"company" json:"company"`
	AssignedTo  sql.NullString `db:"assigned_to" json:"-"`
	OwnerEmail  string         `db:"owner_email" json:"owner_email"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

func (r *Request) SiteName() string {
	if !r.ProjectSite.Valid {
		return ""
	}
	return r.ProjectSite.String
}

func (r *Request) Assignee() string {
	if !r.AssignedTo.Valid {
		return ""
	}
	return r.AssignedTo.String
}

// ChecklistItem is one survey section of a project.
type ChecklistItem struct {
	Name         string `db:"name" json:"name"`
	Project      string `db:"project" json:"project"`
	Section      string `db:"section" json:"section"`
	Idx          int    `db:"idx" json:"idx"`
	Required     bool   `db:"required" json:"required"`
	Done         bool   `db:"done" json:"done"`
	EvidenceLink string `db:"evidence_link" json:"evidence_link"`
}

// Attachment is an immutable pointer to an uploaded remote file. Replacing
// a file creates a new row, never overwrites one.
type Attachment struct {
	Name           string    `db:"name" json:"name"`
	FileName       string    `db:"file_name" json:"file_name"`
	FileURL        string    `db:"file_url" json:"file_url"`
	DriveFileID    string    `db:"drive_file_id" json:"drive_file_id"`
	AttachedToType string    `db:"attached_to_type" json:"attached_to_type"`
	AttachedToName string    `db:"attached_to_name" json:"attached_to_name"`
	Category       string    `db:"category" json:"category"`
	UploadedBy     string    `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// CreateParams is the bot-facing input for a new service request.
type CreateParams struct {
	Project     string
	ProjectSite string
	Title       string
	Description string
	Priority    string
	RequestType string
	Owner       string
}

// ListScope narrows request reads for non-privileged callers.
type ListScope struct {
	// Projects the caller may see; nil means no project restriction.
	Project string

	// Engineer-scoped callers only see requests assigned to them or on
	// their sites.
	Engineer string

	// Client-scoped callers see requests for their customers, or their
	// own when no customer is known.
	Customers []string
	Owner     string

	Limit int
}
