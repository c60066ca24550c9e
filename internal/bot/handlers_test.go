package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/ferumlab/ferum-hub/internal/drive"
	"github.com/ferumlab/ferum-hub/internal/erpclient"
	"github.com/ferumlab/ferum-hub/internal/services/project"
	"github.com/ferumlab/ferum-hub/internal/services/request"
	"github.com/ferumlab/ferum-hub/internal/services/verification"
	"github.com/ferumlab/ferum-hub/internal/uploader"
)

type memSessions struct {
	m map[int64][]byte
}

func (s *memSessions) Get(_ context.Context, chatID int64) *Session {
	return decodeSession(s.m[chatID])
}

func (s *memSessions) Put(_ context.Context, chatID int64, sess *Session) {
	raw, err := encodeSession(sess)
	if err != nil {
		panic(err)
	}
	s.m[chatID] = raw
}

func (s *memSessions) Clear(_ context.Context, chatID int64) {
	delete(s.m, chatID)
}

type fakeAPI struct {
	sent []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) texts() []string {
	var out []string
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (f *fakeAPI) lastText() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type fakeERP struct {
	projects  []project.Summary
	sites     []project.Site
	checklist []request.ChecklistItem
	requests  []request.Request
	active    string

	created      []erpclient.CreateRequestParams
	startCalls   int
	lastCode     string
	listCalls    int
	subscribed   []string
	uploads      []string
	unauthorized bool
}

func (f *fakeERP) err() error {
	return &erpclient.APIError{Status: 401, Message: "chat is not registered"}
}

func (f *fakeERP) StartRegistration(int64, string, string) error {
	f.startCalls++
	return nil
}

func (f *fakeERP) ConfirmRegistration(_ int64, email, _, code string) (*verification.Result, error) {
	f.lastCode = code
	if code != "123456" {
		return nil, &erpclient.APIError{Status: 400, Message: "invalid or expired code"}
	}
	return &verification.Result{User: email, GrantedProjects: []string{"P-001"}, ActiveProject: "P-001"}, nil
}

func (f *fakeERP) ListProjects(int64) ([]project.Summary, error) {
	if f.unauthorized {
		return nil, f.err()
	}
	f.listCalls++
	return f.projects, nil
}

func (f *fakeERP) GetActiveProject(int64) (*erpclient.ActiveProject, error) {
	if f.unauthorized {
		return nil, f.err()
	}
	return &erpclient.ActiveProject{Project: f.active, User: "user@corp.ru"}, nil
}

func (f *fakeERP) SetActiveProject(_ int64, projectName string) error {
	f.active = projectName
	return nil
}

func (f *fakeERP) ListObjects(int64, string) ([]project.Site, error) {
	return f.sites, nil
}

func (f *fakeERP) ListRequests(int64, string, int) ([]request.Request, error) {
	return f.requests, nil
}

func (f *fakeERP) CreateServiceRequest(_ int64, params erpclient.CreateRequestParams) (*request.Request, error) {
	f.created = append(f.created, params)
	return &request.Request{
		Name:     fmt.Sprintf("SR-%06d", len(f.created)),
		Title:    params.Title,
		Status:   "Open",
		Priority: params.Priority,
		Project:  params.Project,
	}, nil
}

func (f *fakeERP) GetServiceRequest(_ int64, name string) (*erpclient.RequestDetail, error) {
	for _, r := range f.requests {
		if r.Name == name {
			return &erpclient.RequestDetail{Request: r}, nil
		}
	}
	return nil, &erpclient.APIError{Status: 404, Message: "service request not found"}
}

func (f *fakeERP) SubscribeProject(_ int64, projectName string) error {
	f.subscribed = append(f.subscribed, projectName)
	return nil
}

func (f *fakeERP) UnsubscribeProject(int64, string) error { return nil }

func (f *fakeERP) EnsureDefaultChecklist(int64, string) (int, error) { return 0, nil }

func (f *fakeERP) GetChecklist(int64, string) ([]request.ChecklistItem, error) {
	return f.checklist, nil
}

func (f *fakeERP) UploadSurveyEvidence(_ int64, projectName, site, section, fileID, _ string) (*uploader.Result, error) {
	f.uploads = append(f.uploads, fmt.Sprintf("survey:%s/%s/%s/%s", projectName, site, section, fileID))
	return &uploader.Result{FileURL: "https://drive/file"}, nil
}

func (f *fakeERP) UploadRequestAttachment(_ int64, requestName, fileID, _ string) (*uploader.Result, error) {
	f.uploads = append(f.uploads, fmt.Sprintf("request:%s/%s", requestName, fileID))
	return &uploader.Result{FileURL: "https://drive/file"}, nil
}

func (f *fakeERP) EnsureDriveFolders(int64, string) (*drive.TreeResult, error) {
	return &drive.TreeResult{}, nil
}

func newTestBot(erp *fakeERP) (*Bot, *fakeAPI) {
	api := &fakeAPI{}
	b := &Bot{
		api:        api,
		erp:        erp,
		sessions:   &memSessions{m: make(map[int64][]byte)},
		registered: newRegisteredCache(time.Minute),
		queues:     make(map[int64]chan tgbotapi.Update),
	}
	return b, api
}

const testChat int64 = 42

func commandUpdate(text string) tgbotapi.Update {
	cmdLen := len(strings.Fields(text)[0])
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: testChat},
		From: &tgbotapi.User{UserName: "tester"},
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: cmdLen},
		},
	}}
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: testChat},
		From: &tgbotapi.User{UserName: "tester"},
	}}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: testChat}},
	}}
}

func photoUpdate(fileID, caption string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: testChat},
		From:    &tgbotapi.User{UserName: "tester"},
		Caption: caption,
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small"},
			{FileID: fileID},
		},
	}}
}

func TestNewRequestDialog(t *testing.T) {
	erp := &fakeERP{
		projects: []project.Summary{{Name: "P-001", ProjectName: "Котельная"}},
		sites:    []project.Site{{Name: "S-1", Project: "P-001", SiteName: "Насосная"}},
	}
	b, api := newTestBot(erp)

	b.handleUpdate(commandUpdate("/new_request"))
	b.handleUpdate(callbackUpdate("pick:project:0"))
	b.handleUpdate(callbackUpdate("pick:site:0"))
	b.handleUpdate(textUpdate("Leaking pipe"))
	b.handleUpdate(callbackUpdate("pick:priority:1"))
	b.handleUpdate(textUpdate("пропустить"))
	b.handleUpdate(callbackUpdate("pick:confirm:0"))

	require.Len(t, erp.created, 1)
	created := erp.created[0]
	require.Equal(t, "P-001", created.Project)
	require.Equal(t, "S-1", created.ProjectSite)
	require.Equal(t, "Leaking pipe", created.Title)
	require.Equal(t, "Medium", created.Priority)
	require.Empty(t, created.Description)

	require.Contains(t, api.lastText(), "SR-000001")

	// dialog is over; stray text is no longer request input
	b.handleUpdate(textUpdate("hello"))
	require.Equal(t, msgUnknownCommand, api.lastText())
}

func TestRegistrationDialog(t *testing.T) {
	erp := &fakeERP{}
	b, api := newTestBot(erp)

	b.handleUpdate(commandUpdate("/register alice@example.com"))
	require.Equal(t, 1, erp.startCalls)
	require.Equal(t, msgCodeSent, api.lastText())

	// wrong code keeps the dialog alive
	b.handleUpdate(textUpdate("000000"))
	require.Contains(t, api.lastText(), "invalid or expired")

	b.handleUpdate(textUpdate("123456"))
	require.Contains(t, api.lastText(), "alice@example.com")
	require.Contains(t, api.lastText(), "P-001")
}

func TestRegistrationAsksForEmail(t *testing.T) {
	erp := &fakeERP{}
	b, api := newTestBot(erp)

	b.handleUpdate(commandUpdate("/register"))
	require.Equal(t, msgAskEmail, api.lastText())

	b.handleUpdate(textUpdate("not-an-email"))
	require.Equal(t, 0, erp.startCalls)

	b.handleUpdate(textUpdate("alice@example.com"))
	require.Equal(t, 1, erp.startCalls)
}

func TestUnregisteredChatIsPrompted(t *testing.T) {
	erp := &fakeERP{unauthorized: true}
	b, api := newTestBot(erp)

	b.handleUpdate(commandUpdate("/projects"))
	require.Equal(t, msgNeedRegister, api.lastText())

	// the cached negative answer short-circuits the next attempt
	b.handleUpdate(commandUpdate("/new_request"))
	require.Equal(t, msgNeedRegister, api.lastText())
	require.Equal(t, 0, erp.listCalls)
}

func TestMenuButtonResetsState(t *testing.T) {
	erp := &fakeERP{
		projects: []project.Summary{{Name: "P-001"}},
		sites:    []project.Site{{Name: "S-1", Project: "P-001"}},
	}
	b, api := newTestBot(erp)

	b.handleUpdate(commandUpdate("/new_request"))
	b.handleUpdate(callbackUpdate("pick:project:0"))
	b.handleUpdate(callbackUpdate("pick:site:0"))

	// mid-dialog the user taps a main-menu button; the draft is dropped
	b.handleUpdate(textUpdate(BtnHelp))
	require.Equal(t, msgHelp, api.lastText())

	b.handleUpdate(textUpdate("this is not a title anymore"))
	require.Equal(t, msgUnknownCommand, api.lastText())
	require.Empty(t, erp.created)
}

func TestStaleCallbackRefetches(t *testing.T) {
	erp := &fakeERP{
		projects: []project.Summary{{Name: "P-001"}},
	}
	b, api := newTestBot(erp)

	b.handleUpdate(commandUpdate("/projects"))
	require.Equal(t, 1, erp.listCalls)

	// index beyond the snapshot: one refetch, then a fresh keyboard
	b.handleUpdate(callbackUpdate("pick:project:5"))
	require.Equal(t, 2, erp.listCalls)
	require.Equal(t, msgStaleList, api.lastText())

	// a valid pick still works afterwards
	b.handleUpdate(callbackUpdate("pick:project:0"))
	require.Equal(t, "P-001", erp.active)
}

func TestSurveyUploadDialog(t *testing.T) {
	erp := &fakeERP{
		projects: []project.Summary{{Name: "P-001"}},
		sites:    []project.Site{{Name: "S-1", Project: "P-001"}},
		checklist: []request.ChecklistItem{
			{Section: "Control Panel", Idx: 1},
			{Section: "Detectors", Idx: 2},
		},
	}
	b, api := newTestBot(erp)

	b.handleUpdate(commandUpdate("/survey"))
	b.handleUpdate(callbackUpdate("pick:project:0"))
	b.handleUpdate(callbackUpdate("pick:site:0"))
	b.handleUpdate(callbackUpdate("pick:section:1"))
	b.handleUpdate(photoUpdate("file-1", "дымовой извещатель"))

	require.Equal(t, []string{"survey:P-001/S-1/Detectors/file-1"}, erp.uploads)
	require.Contains(t, api.lastText(), "Detectors")

	b.handleUpdate(textUpdate("готово"))
	require.Contains(t, api.lastText(), "завершено")
}

func TestAttachToNamedRequest(t *testing.T) {
	erp := &fakeERP{
		requests: []request.Request{{Name: "SR-000007", Title: "Leaking pipe"}},
	}
	b, api := newTestBot(erp)

	b.handleUpdate(commandUpdate("/attach SR-000007"))
	require.Equal(t, msgAskUploads, api.lastText())

	b.handleUpdate(photoUpdate("file-9", ""))
	require.Equal(t, []string{"request:SR-000007/file-9"}, erp.uploads)
}

func TestUnknownCommand(t *testing.T) {
	b, api := newTestBot(&fakeERP{})
	b.handleUpdate(commandUpdate("/frobnicate"))
	require.Equal(t, msgUnknownCommand, api.lastText())
}
