package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"
)

// FileSource fetches a chat-transport file into a local temp file. The
// returned cleanup must run on every path; it removes the temp file.
type FileSource interface {
	Download(ctx context.Context, fileRef string) (localPath, originalName string, cleanup func(), err error)
}

// TelegramFileSource resolves telegram file ids through the bot file API.
// Download URLs embed the bot token, so they are never logged.
type TelegramFileSource struct {
	token  string
	client *fasthttp.Client
}

func NewTelegramFileSource(token string) *TelegramFileSource {
	return &TelegramFileSource{
		token: token,
		client: &fasthttp.Client{
			ReadTimeout:  120 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
	}
}

type getFileResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		FilePath string `json:"file_path"`
	} `json:"result"`
}

func (s *TelegramFileSource) Download(ctx context.Context, fileRef string) (string, string, func(), error) {
	filePath, err := s.resolvePath(ctx, fileRef)
	if err != nil {
		return "", "", nil, err
	}

	tmp, err := os.CreateTemp("", "ferum-upload-*"+path.Ext(filePath))
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove temp upload file", slog.Any("error", err))
		}
	}

	uri := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", s.token, filePath)
	status, body, err := s.get(ctx, uri)
	if err != nil || status != fasthttp.StatusOK {
		tmp.Close()
		cleanup()
		slog.Error("Telegram file download failed", slog.Int("status", status), slog.String("error_type", fmt.Sprintf("%T", err)))
		return "", "", nil, errTransferFailed()
	}

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		cleanup()
		return "", "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	return tmp.Name(), path.Base(filePath), cleanup, nil
}

func (s *TelegramFileSource) resolvePath(ctx context.Context, fileRef string) (string, error) {
	uri := fmt.Sprintf("https://api.telegram.org/bot%s/getFile?file_id=%s", s.token, fileRef)

	status, body, err := s.get(ctx, uri)
	if err != nil || status != fasthttp.StatusOK {
		slog.Error("Telegram getFile failed", slog.Int("status", status), slog.String("error_type", fmt.Sprintf("%T", err)))
		return "", errTransferFailed()
	}

	var parsed getFileResponse
	if err := sonic.Unmarshal(body, &parsed); err != nil || !parsed.OK || parsed.Result.FilePath == "" {
		slog.Error("Telegram getFile returned unusable payload", slog.Int("status", status))
		return "", errTransferFailed()
	}

	return parsed.Result.FilePath, nil
}

func (s *TelegramFileSource) get(ctx context.Context, uri string) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(uri)

	deadline := time.Now().Add(120 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	if err := s.client.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, err
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())

	return resp.StatusCode(), body, nil
}
