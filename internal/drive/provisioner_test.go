package drive

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ferumlab/ferum-hub/internal/services/project"
)

// fakeClient models a remote folder tree in memory.
type fakeClient struct {
	seq     int
	folders map[string]*Folder // id -> folder

	creates int
	renames int
}

func newFakeClient() *fakeClient {
	return &fakeClient{folders: map[string]*Folder{
		"root": {ID: "root", Name: "root"},
	}}
}

func (c *fakeClient) FindFolder(_ context.Context, name, parentID string) (*Folder, error) {
	for _, f := range c.folders {
		if f.Name != name {
			continue
		}
		for _, p := range f.Parents {
			if p == parentID {
				cp := *f
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (c *fakeClient) CreateFolder(_ context.Context, name, parentID string) (*Folder, error) {
	c.seq++
	c.creates++
	f := &Folder{
		ID:      fmt.Sprintf("f%03d", c.seq),
		Name:    name,
		Parents: []string{parentID},
	}
	f.WebLink = FolderWebLink(f.ID)
	c.folders[f.ID] = f
	cp := *f
	return &cp, nil
}

func (c *fakeClient) UpdateFolder(_ context.Context, folderID string, upd FolderUpdate) (*Folder, error) {
	f, ok := c.folders[folderID]
	if !ok {
		return nil, ErrNotFoundOrDenied
	}
	if upd.Name != "" && upd.Name != f.Name {
		f.Name = upd.Name
		c.renames++
	}
	if len(upd.AddParents) > 0 || len(upd.RemoveParents) > 0 {
		remove := map[string]bool{}
		for _, p := range upd.RemoveParents {
			remove[p] = true
		}
		var parents []string
		for _, p := range f.Parents {
			if !remove[p] {
				parents = append(parents, p)
			}
		}
		f.Parents = append(parents, upd.AddParents...)
	}
	cp := *f
	return &cp, nil
}

func (c *fakeClient) GetFileMetadata(_ context.Context, fileID string) (*Folder, error) {
	f, ok := c.folders[fileID]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (c *fakeClient) UploadFile(_ context.Context, _, name, parentID string) (*File, error) {
	c.seq++
	return &File{ID: fmt.Sprintf("u%03d", c.seq), WebLink: "https://drive.example/" + name}, nil
}

func (c *fakeClient) UpsertJSONFile(_ context.Context, parentID, name string, _ any) (*File, error) {
	c.seq++
	return &File{ID: fmt.Sprintf("j%03d", c.seq), WebLink: "https://drive.example/" + name}, nil
}

// pathOf walks parents up to the root and returns the name chain.
func (c *fakeClient) pathOf(id string) []string {
	var segments []string
	for id != "" {
		f, ok := c.folders[id]
		if !ok {
			break
		}
		segments = append([]string{f.Name}, segments...)
		if len(f.Parents) == 0 {
			break
		}
		id = f.Parents[0]
	}
	return segments
}

func (c *fakeClient) childNames(parentID string) []string {
	var names []string
	for _, f := range c.folders {
		for _, p := range f.Parents {
			if p == parentID {
				names = append(names, f.Name)
			}
		}
	}
	return names
}

type fakeProjects struct {
	projects map[string]*project.Project
	sites    map[string][]*project.Site

	projectFolders map[string][2]string
	siteFolders    map[string][2]string
}

func (s *fakeProjects) GetByName(_ context.Context, name string) (*project.Project, error) {
	p, ok := s.projects[name]
	if !ok {
		return nil, project.ErrProjectNotFound
	}
	return p, nil
}

func (s *fakeProjects) ListSites(_ context.Context, projectName, _ string) ([]*project.Site, error) {
	return s.sites[projectName], nil
}

func (s *fakeProjects) SetDriveFolder(_ context.Context, name, url, id string) error {
	if s.projectFolders == nil {
		s.projectFolders = map[string][2]string{}
	}
	s.projectFolders[name] = [2]string{url, id}
	s.projects[name].DriveFolderURL = url
	s.projects[name].DriveFolderID = id
	return nil
}

func (s *fakeProjects) SetSiteDriveFolder(_ context.Context, name, url, id string) error {
	if s.siteFolders == nil {
		s.siteFolders = map[string][2]string{}
	}
	s.siteFolders[name] = [2]string{url, id}
	return nil
}

func newProjectFixture() *fakeProjects {
	return &fakeProjects{
		projects: map[string]*project.Project{
			"P-001": {Name: "P-001", ProjectName: "Fire Safety Retrofit", Company: "ACME"},
		},
		sites: map[string][]*project.Site{
			"P-001": {
				{Name: "S-1", Project: "P-001", SiteName: "Warehouse", Idx: 1},
			},
		},
	}
}

func TestEnsureProjectTreeBuildsDeterministicPath(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := newProjectFixture()
	p := NewProvisioner(client, "root", store)

	result, err := p.EnsureProjectTree(ctx, "P-001")
	require.NoError(t, err)
	require.NotEmpty(t, result.ProjectFolderID)

	require.Equal(t,
		[]string{"root", "Organization:ACME", "Projects", "P-001"},
		client.pathOf(result.ProjectFolderID))

	require.ElementsMatch(t,
		[]string{"Meta", "Documents", "Objects", "Archive"},
		client.childNames(result.ProjectFolderID))

	categories := client.childNames(result.DocumentsID)
	require.Len(t, categories, len(documentCategories))
	for _, spec := range documentCategories {
		require.Contains(t, categories, spec.Name)
	}

	require.Len(t, result.Sites, 1)
	require.ElementsMatch(t, []string{"Survey", "Requests"}, client.childNames(result.Sites[0].FolderID))

	// Folder references are persisted back.
	require.Equal(t, result.ProjectFolderID, store.projectFolders["P-001"][1])
	require.Equal(t, result.Sites[0].FolderID, store.siteFolders["S-1"][1])
}

func TestEnsureProjectTreeIdempotent(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := newProjectFixture()
	p := NewProvisioner(client, "root", store)

	first, err := p.EnsureProjectTree(ctx, "P-001")
	require.NoError(t, err)
	creates := client.creates

	second, err := p.EnsureProjectTree(ctx, "P-001")
	require.NoError(t, err)

	require.Equal(t, first.ProjectFolderID, second.ProjectFolderID)
	require.Equal(t, first.Sites[0].FolderID, second.Sites[0].FolderID)
	require.Equal(t, creates, client.creates, "second run must not create any folder")

	// Each category folder exists exactly once.
	seen := map[string]int{}
	for _, name := range client.childNames(second.DocumentsID) {
		seen[name]++
	}
	for name, n := range seen {
		require.Equal(t, 1, n, "duplicate folder %s", name)
	}
}

func TestEnsureFolderRenamesLegacyInPlace(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := newProjectFixture()
	p := NewProvisioner(client, "root", store)

	result, err := p.EnsureProjectTree(ctx, "P-001")
	require.NoError(t, err)

	// Simulate an old deployment: rename Survey back to its Russian name.
	surveyID := result.Sites[0].SurveyID
	client.folders[surveyID].Name = "01_ОБСЛЕДОВАНИЕ"

	again, err := p.EnsureProjectTree(ctx, "P-001")
	require.NoError(t, err)

	require.Equal(t, surveyID, again.Sites[0].SurveyID, "legacy folder keeps its id")
	require.Equal(t, "Survey", client.folders[surveyID].Name)
}

func TestEnsureProjectRootReparentsDriftedFolder(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := newProjectFixture()
	p := NewProvisioner(client, "root", store)

	result, err := p.EnsureProjectTree(ctx, "P-001")
	require.NoError(t, err)

	// Move the project folder somewhere else by hand.
	stray, err := client.CreateFolder(ctx, "Scratch", "root")
	require.NoError(t, err)
	client.folders[result.ProjectFolderID].Parents = []string{stray.ID}

	again, err := p.EnsureProjectTree(ctx, "P-001")
	require.NoError(t, err)

	require.Equal(t, result.ProjectFolderID, again.ProjectFolderID)
	require.Equal(t,
		[]string{"root", "Organization:ACME", "Projects", "P-001"},
		client.pathOf(again.ProjectFolderID))
}

func TestEnsureProjectRootFallsBackWhenIDGone(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := newProjectFixture()
	p := NewProvisioner(client, "root", store)

	result, err := p.EnsureProjectTree(ctx, "P-001")
	require.NoError(t, err)

	// The stored id stops resolving (folder deleted remotely).
	delete(client.folders, result.ProjectFolderID)

	again, err := p.EnsureProjectTree(ctx, "P-001")
	require.NoError(t, err)
	require.NotEqual(t, result.ProjectFolderID, again.ProjectFolderID)
	require.Equal(t,
		[]string{"root", "Organization:ACME", "Projects", "P-001"},
		client.pathOf(again.ProjectFolderID))
}
