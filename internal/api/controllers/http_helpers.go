package controllers

import (
	"context"
	"errors"
	"fmt"

	json "github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"github.com/ferumlab/ferum-hub/internal/api/response"
	"github.com/ferumlab/ferum-hub/internal/drive"
	"github.com/ferumlab/ferum-hub/internal/perrors"
	"github.com/ferumlab/ferum-hub/internal/services"
	"github.com/ferumlab/ferum-hub/internal/services/chatlink"
)

// requestContext recovers the trace-propagated context stored by the
// middleware. fasthttp does not carry a standard context of its own.
func requestContext(ctx *fasthttp.RequestCtx) context.Context {
	if tc, ok := ctx.UserValue("traceCtx").(context.Context); ok {
		return tc
	}
	return context.Background()
}

func parseBody(ctx *fasthttp.RequestCtx, target any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return errors.New("request body is empty")
	}

	return json.Unmarshal(body, target)
}

func writeError(ctx *fasthttp.RequestCtx, stdCtx context.Context, message string, err error) {
	response.NewResponse[any](stdCtx, message, nil).WithError(err).Write(ctx)
}

func writeOK(ctx *fasthttp.RequestCtx, stdCtx context.Context, message string, data any) {
	response.NewResponse(stdCtx, message, data).Write(ctx)
}

// resolveCaller maps the chat id carried in a request body to the linked ERP
// user. An unlinked chat is an unauthenticated caller, not a server fault.
func resolveCaller(ctx context.Context, svc *services.Services, chatID int64) (*chatlink.ChatLink, error) {
	if chatID == 0 {
		return nil, perrors.NewErrInvalidRequest(fmt.Errorf("chat_id is required"))
	}

	link, err := svc.ChatLink.GetByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, chatlink.ErrChatLinkNotFound) {
			return nil, perrors.NewErrUnauthenticated(fmt.Errorf("chat is not registered"))
		}
		return nil, fmt.Errorf("failed to resolve chat link: %w", err)
	}

	return link, nil
}

// driveFriendly rewraps remote-folder failures with the operator-facing text
// the bot can show as-is. Other errors pass through untouched.
func driveFriendly(err error) error {
	if errors.Is(err, drive.ErrAPINotEnabled) ||
		errors.Is(err, drive.ErrNotFoundOrDenied) ||
		errors.Is(err, drive.ErrRemoteUnavailable) {
		return perrors.NewErrTransport(errors.New(drive.FriendlyError(err)))
	}
	return err
}
