package erpclient

import (
	"fmt"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"github.com/ferumlab/ferum-hub/internal/api/authenticator"
	"github.com/ferumlab/ferum-hub/internal/config"
)

// Timeouts per call class. Uploads and cold folder provisioning make many
// remote API calls and get a much longer budget than interactive reads.
const (
	InteractiveTimeout = 15 * time.Second
	UploadTimeout      = 120 * time.Second
)

// APIError is a non-ok reply from the erp-server. The status code tells the
// caller which error class it is; the message is safe to show to the user.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("erp: %s (status %d)", e.Message, e.Status)
}

// Unauthenticated reports whether the chat has no linked ERP user yet.
func (e *APIError) Unauthenticated() bool {
	return e.Status == fasthttp.StatusUnauthorized
}

// Forbidden reports a permission failure for a resolved user.
func (e *APIError) Forbidden() bool {
	return e.Status == fasthttp.StatusForbidden
}

// Client is the bot-side RPC client of the erp-server. All user actions go
// through it; the bot process never touches the database directly.
type Client struct {
	baseURL string
	auth    *authenticator.Authenticator
	http    *fasthttp.Client
}

func New(conf *config.Config) *Client {
	return &Client{
		baseURL: conf.ERP_BASE_URL,
		auth:    authenticator.New(conf.SERVICE_TOKEN_SECRET, "ferum-bot"),
		http:    &fasthttp.Client{},
	}
}

type envelope[T any] struct {
	Ok           bool   `json:"ok"`
	Message      string `json:"message"`
	Data         T      `json:"data"`
	Status       int    `json:"status"`
	ErrorDetails struct {
		Error string `json:"error"`
	} `json:"errorDetails"`
}

// call posts one RPC and decodes the reply envelope into T.
func call[T any](c *Client, path string, body any, timeout time.Duration) (T, error) {
	var zero T

	payload, err := json.Marshal(body)
	if err != nil {
		return zero, fmt.Errorf("failed to encode rpc body: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	if c.auth.Enabled() {
		token, err := c.auth.Sign("bot", 2*time.Minute)
		if err != nil {
			return zero, fmt.Errorf("failed to sign service token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return zero, fmt.Errorf("erp call %s failed: %w", path, err)
	}

	if resp.StatusCode() == fasthttp.StatusUnauthorized && len(resp.Body()) == 0 {
		// Rejected by the service-token middleware, not by an endpoint.
		return zero, &APIError{Status: fasthttp.StatusUnauthorized, Message: "service token rejected"}
	}

	var env envelope[T]
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return zero, fmt.Errorf("failed to decode erp reply from %s: %w", path, err)
	}

	if !env.Ok {
		msg := env.ErrorDetails.Error
		if msg == "" {
			msg = env.Message
		}
		return zero, &APIError{Status: env.Status, Message: msg}
	}

	return env.Data, nil
}
