package erpclient

import (
	"github.com/ferumlab/ferum-hub/internal/drive"
	"github.com/ferumlab/ferum-hub/internal/services/project"
	"github.com/ferumlab/ferum-hub/internal/services/request"
	"github.com/ferumlab/ferum-hub/internal/services/verification"
	"github.com/ferumlab/ferum-hub/internal/uploader"
)

type chatArgs struct {
	ChatID int64 `json:"chat_id"`
}

type projectArgs struct {
	ChatID  int64  `json:"chat_id"`
	Project string `json:"project"`
}

// ActiveProject is the get_active_project payload.
type ActiveProject struct {
	Project string `json:"project"`
	User    string `json:"user"`
}

// CreateRequestParams mirrors the create_service_request arguments.
type CreateRequestParams struct {
	Project     string `json:"project"`
	ProjectSite string `json:"project_site"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// RequestDetail is the get_service_request payload.
type RequestDetail struct {
	Request     request.Request      `json:"request"`
	Attachments []request.Attachment `json:"attachments"`
}

func (c *Client) StartRegistration(chatID int64, email, telegramUsername string) error {
	_, err := call[map[string]any](c, "/api/rpc/start_registration", map[string]any{
		"chat_id":           chatID,
		"email":             email,
		"telegram_username": telegramUsername,
	}, InteractiveTimeout)
	return err
}

func (c *Client) ConfirmRegistration(chatID int64, email, telegramUsername, code string) (*verification.Result, error) {
	result, err := call[verification.Result](c, "/api/rpc/confirm_registration", map[string]any{
		"chat_id":           chatID,
		"email":             email,
		"telegram_username": telegramUsername,
		"code":              code,
	}, InteractiveTimeout)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListProjects(chatID int64) ([]project.Summary, error) {
	return call[[]project.Summary](c, "/api/rpc/list_projects", chatArgs{ChatID: chatID}, InteractiveTimeout)
}

func (c *Client) GetActiveProject(chatID int64) (*ActiveProject, error) {
	active, err := call[ActiveProject](c, "/api/rpc/get_active_project", chatArgs{ChatID: chatID}, InteractiveTimeout)
	if err != nil {
		return nil, err
	}
	return &active, nil
}

func (c *Client) SetActiveProject(chatID int64, projectName string) error {
	_, err := call[map[string]string](c, "/api/rpc/set_active_project",
		projectArgs{ChatID: chatID, Project: projectName}, InteractiveTimeout)
	return err
}

func (c *Client) ListObjects(chatID int64, projectName string) ([]project.Site, error) {
	return call[[]project.Site](c, "/api/rpc/list_objects",
		projectArgs{ChatID: chatID, Project: projectName}, InteractiveTimeout)
}

func (c *Client) ListRequests(chatID int64, projectName string, limit int) ([]request.Request, error) {
	return call[[]request.Request](c, "/api/rpc/list_requests", map[string]any{
		"chat_id": chatID,
		"project": projectName,
		"limit":   limit,
	}, InteractiveTimeout)
}

func (c *Client) CreateServiceRequest(chatID int64, params CreateRequestParams) (*request.Request, error) {
	created, err := call[request.Request](c, "/api/rpc/create_service_request", map[string]any{
		"chat_id":      chatID,
		"project":      params.Project,
		"project_site": params.ProjectSite,
		"title":        params.Title,
		"description":  params.Description,
		"priority":     params.Priority,
	}, InteractiveTimeout)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) GetServiceRequest(chatID int64, name string) (*RequestDetail, error) {
	detail, err := call[RequestDetail](c, "/api/rpc/get_service_request", map[string]any{
		"chat_id": chatID,
		"request": name,
	}, InteractiveTimeout)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) SubscribeProject(chatID int64, projectName string) error {
	_, err := call[map[string]string](c, "/api/rpc/subscribe_project",
		projectArgs{ChatID: chatID, Project: projectName}, InteractiveTimeout)
	return err
}

func (c *Client) UnsubscribeProject(chatID int64, projectName string) error {
	_, err := call[map[string]string](c, "/api/rpc/unsubscribe_project",
		projectArgs{ChatID: chatID, Project: projectName}, InteractiveTimeout)
	return err
}

func (c *Client) EnsureDefaultChecklist(chatID int64, projectName string) (int, error) {
	data, err := call[map[string]int](c, "/api/rpc/ensure_default_survey_checklist",
		projectArgs{ChatID: chatID, Project: projectName}, InteractiveTimeout)
	if err != nil {
		return 0, err
	}
	return data["inserted"], nil
}

func (c *Client) GetChecklist(chatID int64, projectName string) ([]request.ChecklistItem, error) {
	return call[[]request.ChecklistItem](c, "/api/rpc/get_survey_checklist",
		projectArgs{ChatID: chatID, Project: projectName}, InteractiveTimeout)
}

func (c *Client) UploadSurveyEvidence(chatID int64, projectName, site, section, fileID, title string) (*uploader.Result, error) {
	result, err := call[uploader.Result](c, "/api/rpc/upload_survey_evidence", map[string]any{
		"chat_id": chatID,
		"project": projectName,
		"site":    site,
		"section": section,
		"file_id": fileID,
		"title":   title,
	}, UploadTimeout)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) UploadRequestAttachment(chatID int64, requestName, fileID, title string) (*uploader.Result, error) {
	result, err := call[uploader.Result](c, "/api/rpc/upload_service_request_attachment", map[string]any{
		"chat_id": chatID,
		"request": requestName,
		"file_id": fileID,
		"title":   title,
	}, UploadTimeout)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) EnsureDriveFolders(chatID int64, projectName string) (*drive.TreeResult, error) {
	tree, err := call[drive.TreeResult](c, "/api/rpc/ensure_drive_folders",
		projectArgs{ChatID: chatID, Project: projectName}, UploadTimeout)
	if err != nil {
		return nil, err
	}
	return &tree, nil
}
