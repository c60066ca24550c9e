package drive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"github.com/ferumlab/ferum-hub/internal/config"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Classified remote failures. Handlers translate these into user-facing
// text without leaking credentials or raw API bodies.
var (
	ErrAPINotEnabled     = errors.New("drive api is not enabled for the service account project")
	ErrNotFoundOrDenied  = errors.New("drive folder not found or access denied")
	ErrRemoteUnavailable = errors.New("drive api request failed")
)

type Folder struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Parents []string `json:"parents"`
	WebLink string   `json:"webViewLink"`
	Trashed bool     `json:"trashed"`
}

type File struct {
	ID      string `json:"id"`
	WebLink string `json:"webViewLink"`
}

// FolderUpdate renames and/or re-parents a folder in one call.
type FolderUpdate struct {
	Name          string
	AddParents    []string
	RemoveParents []string
}

// Client is the remote-storage surface the provisioner and uploader need.
type Client interface {
	FindFolder(ctx context.Context, name, parentID string) (*Folder, error)
	CreateFolder(ctx context.Context, name, parentID string) (*Folder, error)
	UpdateFolder(ctx context.Context, folderID string, upd FolderUpdate) (*Folder, error)
	GetFileMetadata(ctx context.Context, fileID string) (*Folder, error)
	UploadFile(ctx context.Context, localPath, name, parentID string) (*File, error)
	UpsertJSONFile(ctx context.Context, parentID, name string, payload any) (*File, error)
}

// HTTPClient talks to a Drive-style v3 REST API with a bearer token.
type HTTPClient struct {
	baseURL string
	token   string
	client  *fasthttp.Client
}

func NewHTTPClient(conf *config.Config) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(conf.DRIVE_API_BASE_URL, "/"),
		token:   conf.DRIVE_API_TOKEN,
		client: &fasthttp.Client{
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
	}
}

func FolderWebLink(folderID string) string {
	return "https://drive.google.com/drive/folders/" + folderID
}

type fileList struct {
	Files []Folder `json:"files"`
}

func escapeQueryValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}

func (c *HTTPClient) FindFolder(ctx context.Context, name, parentID string) (*Folder, error) {
	q := fmt.Sprintf("mimeType='%s' and trashed=false and name='%s' and '%s' in parents",
		folderMimeType, escapeQueryValue(name), escapeQueryValue(parentID))

	uri := c.baseURL + "/files?pageSize=1&fields=" + url.QueryEscape("files(id,name,parents,webViewLink)") +
		"&q=" + url.QueryEscape(q)

	var list fileList
	if err := c.do(ctx, fasthttp.MethodGet, uri, nil, "", &list); err != nil {
		return nil, err
	}
	if len(list.Files) == 0 {
		return nil, nil
	}

	f := list.Files[0]
	if f.WebLink == "" {
		f.WebLink = FolderWebLink(f.ID)
	}

	return &f, nil
}

func (c *HTTPClient) CreateFolder(ctx context.Context, name, parentID string) (*Folder, error) {
	body, err := sonic.Marshal(map[string]any{
		"name":     name,
		"mimeType": folderMimeType,
		"parents":  []string{parentID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode folder body: %w", err)
	}

	uri := c.baseURL + "/files?fields=" + url.QueryEscape("id,name,parents,webViewLink")

	var f Folder
	if err := c.do(ctx, fasthttp.MethodPost, uri, body, "application/json", &f); err != nil {
		return nil, err
	}
	if f.WebLink == "" {
		f.WebLink = FolderWebLink(f.ID)
	}

	return &f, nil
}

func (c *HTTPClient) UpdateFolder(ctx context.Context, folderID string, upd FolderUpdate) (*Folder, error) {
	uri := c.baseURL + "/files/" + url.PathEscape(folderID) +
		"?fields=" + url.QueryEscape("id,name,parents,webViewLink")
	if len(upd.AddParents) > 0 {
		uri += "&addParents=" + url.QueryEscape(strings.Join(upd.AddParents, ","))
	}
	if len(upd.RemoveParents) > 0 {
		uri += "&removeParents=" + url.QueryEscape(strings.Join(upd.RemoveParents, ","))
	}

	meta := map[string]any{}
	if upd.Name != "" {
		meta["name"] = upd.Name
	}
	body, err := sonic.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode folder update: %w", err)
	}

	var f Folder
	if err := c.do(ctx, fasthttp.MethodPatch, uri, body, "application/json", &f); err != nil {
		return nil, err
	}
	if f.WebLink == "" {
		f.WebLink = FolderWebLink(f.ID)
	}

	return &f, nil
}

// GetFileMetadata returns nil when the file id no longer resolves, letting
// the provisioner fall back to a by-name lookup.
func (c *HTTPClient) GetFileMetadata(ctx context.Context, fileID string) (*Folder, error) {
	uri := c.baseURL + "/files/" + url.PathEscape(fileID) +
		"?fields=" + url.QueryEscape("id,name,parents,webViewLink,trashed")

	var f Folder
	err := c.do(ctx, fasthttp.MethodGet, uri, nil, "", &f)
	if err != nil {
		if errors.Is(err, ErrNotFoundOrDenied) {
			return nil, nil
		}
		return nil, err
	}
	if f.Trashed {
		return nil, nil
	}

	return &f, nil
}

func (c *HTTPClient) UploadFile(ctx context.Context, localPath, name, parentID string) (*File, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload source: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return c.multipartUpload(ctx, "", map[string]any{
		"name":    name,
		"parents": []string{parentID},
	}, data, contentType)
}

// UpsertJSONFile creates or overwrites a JSON file by exact name under the
// parent folder.
func (c *HTTPClient) UpsertJSONFile(ctx context.Context, parentID, name string, payload any) (*File, error) {
	data, err := sonic.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode json payload: %w", err)
	}

	q := fmt.Sprintf("trashed=false and name='%s' and '%s' in parents",
		escapeQueryValue(name), escapeQueryValue(parentID))
	uri := c.baseURL + "/files?pageSize=1&fields=" + url.QueryEscape("files(id)") +
		"&q=" + url.QueryEscape(q)

	var list fileList
	if err := c.do(ctx, fasthttp.MethodGet, uri, nil, "", &list); err != nil {
		return nil, err
	}

	if len(list.Files) > 0 {
		return c.multipartUpload(ctx, list.Files[0].ID, map[string]any{}, data, "application/json")
	}

	return c.multipartUpload(ctx, "", map[string]any{
		"name":    name,
		"parents": []string{parentID},
	}, data, "application/json")
}

// multipartUpload sends a multipart/related create (empty fileID) or
// update request against the upload endpoint.
func (c *HTTPClient) multipartUpload(ctx context.Context, fileID string, meta map[string]any, data []byte, contentType string) (*File, error) {
	metaJSON, err := sonic.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upload metadata: %w", err)
	}

	const boundary = "ferum-drive-upload"
	var body strings.Builder
	body.WriteString("--" + boundary + "\r\n")
	body.WriteString("Content-Type: application/json; charset=UTF-8\r\n\r\n")
	body.Write(metaJSON)
	body.WriteString("\r\n--" + boundary + "\r\n")
	body.WriteString("Content-Type: " + contentType + "\r\n\r\n")
	body.Write(data)
	body.WriteString("\r\n--" + boundary + "--\r\n")

	uploadBase := strings.Replace(c.baseURL, "/drive/v3", "/upload/drive/v3", 1)

	method := fasthttp.MethodPost
	uri := uploadBase + "/files?uploadType=multipart&fields=" + url.QueryEscape("id,webViewLink")
	if fileID != "" {
		method = fasthttp.MethodPatch
		uri = uploadBase + "/files/" + url.PathEscape(fileID) +
			"?uploadType=multipart&fields=" + url.QueryEscape("id,webViewLink")
	}

	var f File
	if err := c.do(ctx, method, uri, []byte(body.String()), "multipart/related; boundary="+boundary, &f); err != nil {
		return nil, err
	}

	return &f, nil
}

func (c *HTTPClient) do(ctx context.Context, method, uri string, body []byte, contentType string, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.SetContentType(contentType)
	}
	if body != nil {
		req.SetBody(body)
	}

	deadline := time.Now().Add(60 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		slog.Error("Drive API transport failure", slog.String("method", method), slog.Any("error", err))
		return ErrRemoteUnavailable
	}

	status := resp.StatusCode()
	if status >= 400 {
		// Bodies can carry token-bearing URLs, log only the shape.
		slog.Error("Drive API error response",
			slog.String("method", method), slog.Int("status", status))
		return classifyStatus(status, resp.Body())
	}

	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode drive response: %w", err)
	}

	return nil
}

func classifyStatus(status int, body []byte) error {
	switch {
	case status == fasthttp.StatusForbidden && strings.Contains(string(body), "accessNotConfigured"):
		return ErrAPINotEnabled
	case status == fasthttp.StatusNotFound || status == fasthttp.StatusForbidden:
		return ErrNotFoundOrDenied
	default:
		return ErrRemoteUnavailable
	}
}

// FriendlyError maps a classified failure to the short operator-facing text
// sent back to the chat.
func FriendlyError(err error) string {
	switch {
	case errors.Is(err, ErrAPINotEnabled):
		return "Google Drive API отключён для сервисного аккаунта. Включите Drive API и повторите через несколько минут."
	case errors.Is(err, ErrNotFoundOrDenied):
		return "Корневая папка Google Drive не найдена или нет доступа. Проверьте ID папки и права сервисного аккаунта."
	default:
		return "Ошибка при обращении к Google Drive. Попробуйте позже."
	}
}
