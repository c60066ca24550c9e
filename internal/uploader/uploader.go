package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ferumlab/ferum-hub/internal/drive"
	"github.com/ferumlab/ferum-hub/internal/perrors"
	"github.com/ferumlab/ferum-hub/internal/services/project"
	"github.com/ferumlab/ferum-hub/internal/services/request"
)

type accessChecker interface {
	AssertAccess(ctx context.Context, userEmail, projectName string) error
}

type siteReader interface {
	GetSite(ctx context.Context, name string) (*project.Site, error)
}

type requestStore interface {
	GetByName(ctx context.Context, name string) (*request.Request, error)
	Checklist(ctx context.Context, projectName string) ([]request.ChecklistItem, error)
	RecordEvidence(ctx context.Context, projectName, section, link string) error
	AddAttachment(ctx context.Context, a *request.Attachment) error
}

type treeProvisioner interface {
	EnsureProjectTree(ctx context.Context, projectName string) (*drive.TreeResult, error)
	EnsureNamedFolder(ctx context.Context, name, parentID string) (*drive.Folder, error)
}

type Result struct {
	FileURL   string `json:"file_url"`
	FolderURL string `json:"folder_url"`
}

// Uploader moves a chat-transport file into the provisioned remote tree and
// records a pointer back into the document store. Authorization happens
// before any remote call.
type Uploader struct {
	source   FileSource
	client   drive.Client
	trees    treeProvisioner
	access   accessChecker
	sites    siteReader
	requests requestStore
}

func New(source FileSource, client drive.Client, trees treeProvisioner, access accessChecker, sites siteReader, requests requestStore) *Uploader {
	return &Uploader{
		source:   source,
		client:   client,
		trees:    trees,
		access:   access,
		sites:    sites,
		requests: requests,
	}
}

// UploadSurveyEvidence stores a survey photo under the site's
// Survey/<NN_section> folder, marks the checklist row done and records an
// attachment row.
func (u *Uploader) UploadSurveyEvidence(ctx context.Context, userEmail, projectName, siteName, section, fileRef, title string) (*Result, error) {
	if err := u.access.AssertAccess(ctx, userEmail, projectName); err != nil {
		return nil, err
	}

	site, err := u.sites.GetSite(ctx, siteName)
	if err != nil {
		if errors.Is(err, project.ErrSiteNotFound) {
			return nil, perrors.NewErrValidation(fmt.Errorf("project site not found"))
		}
		return nil, err
	}
	if site.Project != projectName {
		return nil, perrors.NewErrValidation(fmt.Errorf("project site does not belong to selected project"))
	}

	items, err := u.requests.Checklist(ctx, projectName)
	if err != nil {
		return nil, err
	}
	var item *request.ChecklistItem
	for i := range items {
		if items[i].Section == section {
			item = &items[i]
			break
		}
	}
	if item == nil {
		return nil, perrors.NewErrValidation(fmt.Errorf("unknown checklist section"))
	}

	localPath, originalName, cleanup, err := u.source.Download(ctx, fileRef)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	tree, err := u.trees.EnsureProjectTree(ctx, projectName)
	if err != nil {
		return nil, err
	}

	var surveyID, siteFolderURL string
	for _, sr := range tree.Sites {
		if sr.Site == site.Name {
			surveyID = sr.SurveyID
			siteFolderURL = sr.FolderURL
			break
		}
	}
	if surveyID == "" {
		return nil, perrors.NewErrValidation(fmt.Errorf("site folder is not provisioned"))
	}

	sectionFolder, err := u.trees.EnsureNamedFolder(ctx, request.SectionFolderName(section, item.Idx), surveyID)
	if err != nil {
		return nil, err
	}

	fileName := SanitizeFilename(title, originalName)
	uploaded, err := u.client.UploadFile(ctx, localPath, fileName, sectionFolder.ID)
	if err != nil {
		return nil, err
	}

	if err := u.requests.RecordEvidence(ctx, projectName, section, uploaded.WebLink); err != nil {
		return nil, err
	}

	if err := u.requests.AddAttachment(ctx, &request.Attachment{
		FileName:       fileName,
		FileURL:        uploaded.WebLink,
		DriveFileID:    uploaded.ID,
		AttachedToType: request.AttachedToProjectSite,
		AttachedToName: site.Name,
		Category:       section,
		UploadedBy:     userEmail,
	}); err != nil {
		// The evidence link is already on the checklist row, keep going.
		slog.Error("Failed to record survey attachment row",
			slog.String("site", site.Name), slog.Any("error", err))
	}

	return &Result{FileURL: uploaded.WebLink, FolderURL: siteFolderURL}, nil
}

// UploadRequestAttachment stores a file under the request's
// Requests/<request-id> folder and records an attachment row.
func (u *Uploader) UploadRequestAttachment(ctx context.Context, userEmail, requestName, fileRef, title string) (*Result, error) {
	req, err := u.requests.GetByName(ctx, requestName)
	if err != nil {
		if errors.Is(err, request.ErrRequestNotFound) {
			return nil, perrors.NewErrValidation(fmt.Errorf("service request not found"))
		}
		return nil, err
	}

	if err := u.access.AssertAccess(ctx, userEmail, req.Project); err != nil {
		return nil, err
	}

	siteName := req.SiteName()
	if siteName == "" {
		return nil, perrors.NewErrValidation(fmt.Errorf("service request has no project site"))
	}

	localPath, originalName, cleanup, err := u.source.Download(ctx, fileRef)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	tree, err := u.trees.EnsureProjectTree(ctx, req.Project)
	if err != nil {
		return nil, err
	}

	var requestsID string
	for _, sr := range tree.Sites {
		if sr.Site == siteName {
			requestsID = sr.RequestsID
			break
		}
	}
	if requestsID == "" {
		return nil, perrors.NewErrValidation(fmt.Errorf("site folder is not provisioned"))
	}

	requestFolder, err := u.trees.EnsureNamedFolder(ctx, req.Name, requestsID)
	if err != nil {
		return nil, err
	}

	fileName := SanitizeFilename(title, originalName)
	uploaded, err := u.client.UploadFile(ctx, localPath, fileName, requestFolder.ID)
	if err != nil {
		return nil, err
	}

	if err := u.requests.AddAttachment(ctx, &request.Attachment{
		FileName:       fileName,
		FileURL:        uploaded.WebLink,
		DriveFileID:    uploaded.ID,
		AttachedToType: request.AttachedToServiceRequest,
		AttachedToName: req.Name,
		UploadedBy:     userEmail,
	}); err != nil {
		return nil, err
	}

	return &Result{FileURL: uploaded.WebLink, FolderURL: requestFolder.WebLink}, nil
}

func errTransferFailed() error {
	return perrors.NewErrTransport(fmt.Errorf("file transfer failed, try again"))
}
