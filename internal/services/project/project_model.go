package project

import "time"

// Project is the tenant-visible unit of work. The drive folder reference is
// stable: the remote folder id never changes once created, even when the
// folder is renamed.
type Project struct {
	Name           string    `db:"name" json:"name"`
	ProjectName    string    `db:"project_name" json:"project_name"`
	Company        string    `db:"company" json:"company"`
	Customer       *string   `db:"customer" json:"customer,omitempty"`
	ProjectManager *string   `db:"project_manager" json:"project_manager,omitempty"`
	Stage          string    `db:"stage" json:"stage"`
	Status         string    `db:"status" json:"status"`
	DriveFolderURL string    `db:"drive_folder_url" json:"drive_folder_url"`
	DriveFolderID  string    `db:"drive_folder_id" json:"drive_folder_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Site belongs to exactly one Project. Its remote folder is always nested
// under the project folder and is keyed by the site's stable name, never by
// the user-editable display name.
type Site struct {
	Name            string    `db:"name" json:"name"`
	Project         string    `db:"project" json:"project"`
	SiteName        string    `db:"site_name" json:"site_name"`
	Address         string    `db:"address" json:"address"`
	DefaultEngineer *string   `db:"default_engineer" json:"default_engineer,omitempty"`
	Idx             int       `db:"idx" json:"idx"`
	DriveFolderURL  string    `db:"drive_folder_url" json:"drive_folder_url"`
	DriveFolderID   string    `db:"drive_folder_id" json:"drive_folder_id"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Summary is the list row shape returned to the bot.
type Summary struct {
	Name           string  `db:"name" json:"name"`
	ProjectName    string  `db:"project_name" json:"project_name"`
	Company        string  `db:"company" json:"company"`
	Customer       *string `db:"customer" json:"customer,omitempty"`
	ProjectManager *string `db:"project_manager" json:"project_manager,omitempty"`
	Stage          string  `db:"stage" json:"stage"`
	Status         string  `db:"status" json:"status"`
}
