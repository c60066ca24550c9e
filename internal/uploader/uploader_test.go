package uploader

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ferumlab/ferum-hub/internal/drive"
	"github.com/ferumlab/ferum-hub/internal/perrors"
	"github.com/ferumlab/ferum-hub/internal/services/project"
	"github.com/ferumlab/ferum-hub/internal/services/request"
)

type fakeAccess struct {
	allowed map[string]bool
	calls   int
}

func (a *fakeAccess) AssertAccess(_ context.Context, userEmail, projectName string) error {
	a.calls++
	if a.allowed[userEmail+"|"+projectName] {
		return nil
	}
	return perrors.NewErrForbidden(fmt.Errorf("no access to project %s", projectName))
}

type fakeSource struct {
	downloads int
	cleanups  int
}

func (s *fakeSource) Download(_ context.Context, _ string) (string, string, func(), error) {
	s.downloads++
	return "/tmp/fake-upload.jpg", "photo_0042.jpg", func() { s.cleanups++ }, nil
}

type fakeDrive struct {
	uploads []string
}

func (d *fakeDrive) FindFolder(context.Context, string, string) (*drive.Folder, error) {
	return nil, nil
}

func (d *fakeDrive) CreateFolder(context.Context, string, string) (*drive.Folder, error) {
	return nil, nil
}

func (d *fakeDrive) UpdateFolder(context.Context, string, drive.FolderUpdate) (*drive.Folder, error) {
	return nil, nil
}

func (d *fakeDrive) GetFileMetadata(context.Context, string) (*drive.Folder, error) {
	return nil, nil
}

func (d *fakeDrive) UploadFile(_ context.Context, _, name, parentID string) (*drive.File, error) {
	d.uploads = append(d.uploads, parentID+"/"+name)
	return &drive.File{ID: "file-1", WebLink: "https://drive.example/file-1"}, nil
}

func (d *fakeDrive) UpsertJSONFile(context.Context, string, string, any) (*drive.File, error) {
	return nil, nil
}

type fakeTrees struct {
	ensured int
	tree    *drive.TreeResult
}

func (t *fakeTrees) EnsureProjectTree(context.Context, string) (*drive.TreeResult, error) {
	t.ensured++
	return t.tree, nil
}

func (t *fakeTrees) EnsureNamedFolder(_ context.Context, name, parentID string) (*drive.Folder, error) {
	return &drive.Folder{ID: parentID + ":" + name, Name: name, WebLink: drive.FolderWebLink(name)}, nil
}

type fakeSites map[string]*project.Site

func (s fakeSites) GetSite(_ context.Context, name string) (*project.Site, error) {
	site, ok := s[name]
	if !ok {
		return nil, project.ErrSiteNotFound
	}
	return site, nil
}

type fakeRequests struct {
	requests    map[string]*request.Request
	checklist   []request.ChecklistItem
	evidence    map[string]string
	attachments []*request.Attachment
}

func (r *fakeRequests) GetByName(_ context.Context, name string) (*request.Request, error) {
	req, ok := r.requests[name]
	if !ok {
		return nil, request.ErrRequestNotFound
	}
	return req, nil
}

func (r *fakeRequests) Checklist(context.Context, string) ([]request.ChecklistItem, error) {
	return r.checklist, nil
}

func (r *fakeRequests) RecordEvidence(_ context.Context, _, section, link string) error {
	if r.evidence == nil {
		r.evidence = map[string]string{}
	}
	r.evidence[section] = link
	return nil
}

func (r *fakeRequests) AddAttachment(_ context.Context, a *request.Attachment) error {
	r.attachments = append(r.attachments, a)
	return nil
}

type uploadFixture struct {
	up       *Uploader
	access   *fakeAccess
	source   *fakeSource
	client   *fakeDrive
	trees    *fakeTrees
	requests *fakeRequests
}

func newUploadFixture() *uploadFixture {
	eng := "eng@ferum.ru"
	f := &uploadFixture{
		access: &fakeAccess{allowed: map[string]bool{
			"eng@ferum.ru|P-001": true,
		}},
		source: &fakeSource{},
		client: &fakeDrive{},
		trees: &fakeTrees{tree: &drive.TreeResult{
			ProjectFolderID: "proj",
			Sites: []drive.SiteResult{{
				Site:       "S-1",
				FolderID:   "site-folder",
				FolderURL:  "https://drive.example/site",
				SurveyID:   "survey",
				RequestsID: "requests",
			}},
		}},
		requests: &fakeRequests{
			requests: map[string]*request.Request{
				"SR-000001": {
					Name:        "SR-000001",
					Project:     "P-001",
					ProjectSite: sql.NullString{String: "S-1", Valid: true},
				},
			},
			checklist: []request.ChecklistItem{
				{Project: "P-001", Section: "Detectors", Idx: 2},
			},
		},
	}

	sites := fakeSites{
		"S-1": {Name: "S-1", Project: "P-001", SiteName: "Warehouse", DefaultEngineer: &eng},
		"S-9": {Name: "S-9", Project: "P-777", SiteName: "Elsewhere"},
	}

	f.up = New(f.source, f.client, f.trees, f.access, sites, f.requests)
	return f
}

func TestUploadSurveyEvidence(t *testing.T) {
	ctx := context.Background()
	f := newUploadFixture()

	res, err := f.up.UploadSurveyEvidence(ctx, "eng@ferum.ru", "P-001", "S-1", "Detectors", "tg-file-1", "smoke detector hall 3")
	require.NoError(t, err)
	require.Equal(t, "https://drive.example/file-1", res.FileURL)

	// Evidence pointer and attachment row both recorded.
	require.Equal(t, "https://drive.example/file-1", f.requests.evidence["Detectors"])
	require.Len(t, f.requests.attachments, 1)
	require.Equal(t, request.AttachedToProjectSite, f.requests.attachments[0].AttachedToType)
	require.Equal(t, "S-1", f.requests.attachments[0].AttachedToName)

	// Uploaded into the numbered section folder under Survey.
	require.Equal(t, []string{"survey:02_Detectors/smoke detector hall 3.jpg"}, f.client.uploads)

	require.Equal(t, 1, f.source.cleanups, "temp file must be removed")
}

func TestUploadSurveyEvidenceWrongSiteFailsBeforeRemoteCalls(t *testing.T) {
	ctx := context.Background()
	f := newUploadFixture()

	// S-9 belongs to another project.
	_, err := f.up.UploadSurveyEvidence(ctx, "eng@ferum.ru", "P-001", "S-9", "Detectors", "tg-file-1", "x")
	require.Error(t, err)

	require.Zero(t, f.source.downloads, "no transport call after failed ownership check")
	require.Zero(t, f.trees.ensured)
	require.Empty(t, f.client.uploads)
}

func TestUploadSurveyEvidenceForbiddenBeforeRemoteCalls(t *testing.T) {
	ctx := context.Background()
	f := newUploadFixture()

	_, err := f.up.UploadSurveyEvidence(ctx, "stranger@mail.ru", "P-001", "S-1", "Detectors", "tg-file-1", "x")
	require.Error(t, err)
	require.Zero(t, f.source.downloads)
	require.Empty(t, f.client.uploads)
}

func TestUploadSurveyEvidenceUnknownSection(t *testing.T) {
	ctx := context.Background()
	f := newUploadFixture()

	_, err := f.up.UploadSurveyEvidence(ctx, "eng@ferum.ru", "P-001", "S-1", "Nonexistent", "tg-file-1", "x")
	require.Error(t, err)
	require.Zero(t, f.source.downloads)
}

func TestUploadRequestAttachment(t *testing.T) {
	ctx := context.Background()
	f := newUploadFixture()

	res, err := f.up.UploadRequestAttachment(ctx, "eng@ferum.ru", "SR-000001", "tg-file-2", "invoice scan")
	require.NoError(t, err)
	require.Equal(t, "https://drive.example/file-1", res.FileURL)

	// Nested under Requests/<request-id>.
	require.Equal(t, []string{"requests:SR-000001/invoice scan.jpg"}, f.client.uploads)

	require.Len(t, f.requests.attachments, 1)
	require.Equal(t, request.AttachedToServiceRequest, f.requests.attachments[0].AttachedToType)
	require.Equal(t, "SR-000001", f.requests.attachments[0].AttachedToName)
	require.Equal(t, 1, f.source.cleanups)
}

func TestUploadRequestAttachmentUnknownRequest(t *testing.T) {
	ctx := context.Background()
	f := newUploadFixture()

	_, err := f.up.UploadRequestAttachment(ctx, "eng@ferum.ru", "SR-999999", "tg-file-2", "x")
	require.Error(t, err)
	require.Zero(t, f.access.calls, "no access check for unknown request")
	require.Zero(t, f.source.downloads)
}
