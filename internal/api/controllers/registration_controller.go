package controllers

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/ferumlab/ferum-hub/internal/perrors"
	"github.com/ferumlab/ferum-hub/internal/services"
)

type startRegistrationBody struct {
	ChatID           int64  `json:"chat_id"`
	Email            string `json:"email"`
	TelegramUsername string `json:"telegram_username"`
}

type confirmRegistrationBody struct {
	ChatID           int64  `json:"chat_id"`
	Email            string `json:"email"`
	TelegramUsername string `json:"telegram_username"`
	Code             string `json:"code"`
}

func RegisterRegistrationRoutes(r *router.Router, svc *services.Services) {
	// Issue a verification code. The chat is by definition not linked yet,
	// so there is no caller resolution here.
	r.POST("/api/rpc/start_registration", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		var body startRegistrationBody
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest(err))
			return
		}

		if err := svc.Verification.Start(stdCtx, body.Email, body.ChatID, body.TelegramUsername); err != nil {
			writeError(ctx, stdCtx, "Failed to start registration", err)
			return
		}

		writeOK(ctx, stdCtx, "Verification code sent", map[string]any{"sent": true})
	})

	r.POST("/api/rpc/confirm_registration", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		var body confirmRegistrationBody
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest(err))
			return
		}

		result, err := svc.Verification.Confirm(stdCtx, body.Email, body.ChatID, body.TelegramUsername, body.Code)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to confirm registration", err)
			return
		}

		writeOK(ctx, stdCtx, "Registration confirmed", result)
	})
}
