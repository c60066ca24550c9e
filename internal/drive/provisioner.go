package drive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ferumlab/ferum-hub/internal/services/project"
)

// snapshotVersion tags the project.json layout written into Meta.
const snapshotVersion = "2"

// folderSpec drives one tree level: the current canonical name plus the
// historical names it may still carry on the remote side. A legacy match is
// renamed in place so stored folder ids stay valid.
type folderSpec struct {
	Name   string
	Legacy []string
}

var (
	projectsBucket = folderSpec{Name: "Projects", Legacy: []string{"Проекты", "PROJECTS"}}

	projectSubfolders = []folderSpec{
		{Name: "Meta", Legacy: []string{"META", "Мета"}},
		{Name: "Documents", Legacy: []string{"DOCUMENTS", "Документы"}},
		{Name: "Objects", Legacy: []string{"OBJECTS", "Объекты"}},
		{Name: "Archive", Legacy: []string{"ARCHIVE", "Архив"}},
	}

	documentCategories = []folderSpec{
		{Name: "01_Customer_Contracts", Legacy: []string{"01_Договоры с заказчиком"}},
		{Name: "02_Contractor_Contracts", Legacy: []string{"02_Договоры с подрядчиками"}},
		{Name: "03_Compliance", Legacy: []string{"03_Разрешительная документация"}},
		{Name: "04_Closing_Documents", Legacy: []string{"04_Закрывающие документы"}},
		{Name: "05_Correspondence_Inbound", Legacy: []string{"05_Входящая корреспонденция"}},
		{Name: "06_Correspondence_Outbound", Legacy: []string{"06_Исходящая корреспонденция"}},
		{Name: "07_Correspondence_Internal", Legacy: []string{"07_Внутренняя переписка"}},
		{Name: "08_Misc", Legacy: []string{"08_Прочее"}},
	}

	siteSubfolders = []folderSpec{
		{Name: "Survey", Legacy: []string{"01_ОБСЛЕДОВАНИЕ", "Обследование"}},
		{Name: "Requests", Legacy: []string{"02_ЗАЯВКИ", "Заявки"}},
	}
)

func organizationSpec(company string) folderSpec {
	if company == "" {
		company = "Unassigned"
	}
	return folderSpec{Name: "Organization:" + company, Legacy: []string{company}}
}

type projectStore interface {
	GetByName(ctx context.Context, name string) (*project.Project, error)
	ListSites(ctx context.Context, projectName, engineer string) ([]*project.Site, error)
	SetDriveFolder(ctx context.Context, name, url, id string) error
	SetSiteDriveFolder(ctx context.Context, name, url, id string) error
}

type SiteResult struct {
	Site       string `json:"site"`
	SiteName   string `json:"site_name"`
	FolderID   string `json:"folder_id"`
	FolderURL  string `json:"folder_url"`
	SurveyID   string `json:"survey_id"`
	RequestsID string `json:"requests_id"`
}

type TreeResult struct {
	ProjectFolderID  string `json:"project_folder_id"`
	ProjectFolderURL string `json:"project_folder_url"`

	MetaID      string `json:"meta_id"`
	DocumentsID string `json:"documents_id"`
	ObjectsID   string `json:"objects_id"`
	ArchiveID   string `json:"archive_id"`

	Sites []SiteResult `json:"sites"`
}

// Provisioner builds and migrates the remote folder tree of a project.
// Every level goes through the same ensure-or-migrate step, so repeated
// runs converge on the same folder ids.
type Provisioner struct {
	client   Client
	rootID   string
	projects projectStore
}

func NewProvisioner(client Client, rootID string, projects projectStore) *Provisioner {
	return &Provisioner{client: client, rootID: rootID, projects: projects}
}

// ensureFolder finds the folder by its canonical name, renames a legacy
// match in place, or creates it.
func (p *Provisioner) ensureFolder(ctx context.Context, spec folderSpec, parentID string) (*Folder, error) {
	found, err := p.client.FindFolder(ctx, spec.Name, parentID)
	if err != nil {
		return nil, err
	}
	if found != nil {
		return found, nil
	}

	for _, legacy := range spec.Legacy {
		old, err := p.client.FindFolder(ctx, legacy, parentID)
		if err != nil {
			return nil, err
		}
		if old == nil {
			continue
		}

		renamed, err := p.client.UpdateFolder(ctx, old.ID, FolderUpdate{Name: spec.Name})
		if err != nil {
			return nil, err
		}
		slog.Info("Migrated legacy folder name",
			slog.String("from", legacy), slog.String("to", spec.Name), slog.String("id", old.ID))
		return renamed, nil
	}

	return p.client.CreateFolder(ctx, spec.Name, parentID)
}

// EnsureNamedFolder is ensureFolder without legacy aliases, for dynamic
// levels like request ids and year-month buckets.
func (p *Provisioner) EnsureNamedFolder(ctx context.Context, name, parentID string) (*Folder, error) {
	return p.ensureFolder(ctx, folderSpec{Name: name}, parentID)
}

// EnsureProjectTree builds the full tree for a project and persists folder
// urls/ids back onto the project and site rows.
func (p *Provisioner) EnsureProjectTree(ctx context.Context, projectName string) (*TreeResult, error) {
	if p.rootID == "" {
		return nil, fmt.Errorf("drive root folder is not configured")
	}

	proj, err := p.projects.GetByName(ctx, projectName)
	if err != nil {
		return nil, err
	}

	org, err := p.ensureFolder(ctx, organizationSpec(proj.Company), p.rootID)
	if err != nil {
		return nil, err
	}

	bucket, err := p.ensureFolder(ctx, projectsBucket, org.ID)
	if err != nil {
		return nil, err
	}

	projFolder, err := p.ensureProjectRoot(ctx, proj, bucket.ID)
	if err != nil {
		return nil, err
	}

	result := &TreeResult{
		ProjectFolderID:  projFolder.ID,
		ProjectFolderURL: projFolder.WebLink,
	}

	subIDs := map[string]string{}
	for _, spec := range projectSubfolders {
		sub, err := p.ensureFolder(ctx, spec, projFolder.ID)
		if err != nil {
			return nil, err
		}
		subIDs[spec.Name] = sub.ID
	}
	result.MetaID = subIDs["Meta"]
	result.DocumentsID = subIDs["Documents"]
	result.ObjectsID = subIDs["Objects"]
	result.ArchiveID = subIDs["Archive"]

	for _, spec := range documentCategories {
		if _, err := p.ensureFolder(ctx, spec, result.DocumentsID); err != nil {
			return nil, err
		}
	}

	sites, err := p.projects.ListSites(ctx, projectName, "")
	if err != nil {
		return nil, err
	}

	for _, site := range sites {
		siteFolder, err := p.ensureFolder(ctx, folderSpec{Name: site.Name}, result.ObjectsID)
		if err != nil {
			return nil, err
		}

		sr := SiteResult{
			Site:      site.Name,
			SiteName:  site.SiteName,
			FolderID:  siteFolder.ID,
			FolderURL: siteFolder.WebLink,
		}

		for _, spec := range siteSubfolders {
			sub, err := p.ensureFolder(ctx, spec, siteFolder.ID)
			if err != nil {
				return nil, err
			}
			switch spec.Name {
			case "Survey":
				sr.SurveyID = sub.ID
			case "Requests":
				sr.RequestsID = sub.ID
			}
		}

		if err := p.projects.SetSiteDriveFolder(ctx, site.Name, siteFolder.WebLink, siteFolder.ID); err != nil {
			return nil, err
		}

		result.Sites = append(result.Sites, sr)
	}

	if err := p.projects.SetDriveFolder(ctx, projectName, projFolder.WebLink, projFolder.ID); err != nil {
		return nil, err
	}

	p.writeSnapshot(ctx, proj, result)

	return result, nil
}

// ensureProjectRoot revalidates the stored folder id, re-parents it when it
// drifted, and only falls back to by-name lookup when the id is gone.
func (p *Provisioner) ensureProjectRoot(ctx context.Context, proj *project.Project, bucketID string) (*Folder, error) {
	if proj.DriveFolderID != "" {
		existing, err := p.client.GetFileMetadata(ctx, proj.DriveFolderID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			parented := false
			for _, parent := range existing.Parents {
				if parent == bucketID {
					parented = true
					break
				}
			}
			if !parented {
				moved, err := p.client.UpdateFolder(ctx, existing.ID, FolderUpdate{
					AddParents:    []string{bucketID},
					RemoveParents: existing.Parents,
				})
				if err != nil {
					return nil, err
				}
				slog.Info("Re-parented project folder",
					slog.String("project", proj.Name), slog.String("id", existing.ID))
				existing = moved
			}
			if existing.Name != proj.Name {
				renamed, err := p.client.UpdateFolder(ctx, existing.ID, FolderUpdate{Name: proj.Name})
				if err != nil {
					return nil, err
				}
				existing = renamed
			}
			return existing, nil
		}

		slog.Warn("Stored project folder id no longer resolves, falling back to lookup",
			slog.String("project", proj.Name), slog.String("id", proj.DriveFolderID))
	}

	return p.ensureFolder(ctx, folderSpec{Name: proj.Name}, bucketID)
}

// writeSnapshot drops a denormalized project.json into Meta. Best-effort:
// a failed write is logged and the tree result stands.
func (p *Provisioner) writeSnapshot(ctx context.Context, proj *project.Project, result *TreeResult) {
	customer := ""
	if proj.Customer != nil {
		customer = *proj.Customer
	}

	payload := map[string]any{
		"version":      snapshotVersion,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"project":      proj.Name,
		"title":        proj.ProjectName,
		"company":      proj.Company,
		"customer":     customer,
		"folder_url":   result.ProjectFolderURL,
		"sites":        result.Sites,
	}

	if _, err := p.client.UpsertJSONFile(ctx, result.MetaID, "project.json", payload); err != nil {
		slog.Warn("Failed to write project snapshot",
			slog.String("project", proj.Name), slog.Any("error", err))
	}
}
