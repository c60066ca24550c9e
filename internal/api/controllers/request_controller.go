package controllers

import (
	"errors"
	"fmt"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/ferumlab/ferum-hub/internal/perrors"
	"github.com/ferumlab/ferum-hub/internal/services"
	"github.com/ferumlab/ferum-hub/internal/services/request"
)

type listRequestsBody struct {
	ChatID  int64  `json:"chat_id"`
	Project string `json:"project"`
	Limit   int    `json:"limit"`
}

type createRequestBody struct {
	ChatID      int64  `json:"chat_id"`
	Project     string `json:"project"`
	ProjectSite string `json:"project_site"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type getRequestBody struct {
	ChatID  int64  `json:"chat_id"`
	Request string `json:"request"`
}

type requestAttachmentBody struct {
	ChatID  int64  `json:"chat_id"`
	Request string `json:"request"`
	FileID  string `json:"file_id"`
	Title   string `json:"title"`
}

func RegisterRequestRoutes(r *router.Router, svc *services.Services) {
	// Requests visible to the caller, newest first. Role scoping happens in
	// the service; project access is asserted only when a project filter is
	// given.
	r.POST("/api/rpc/list_requests", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		var body listRequestsBody
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest(err))
			return
		}

		link, err := resolveCaller(stdCtx, svc, body.ChatID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to resolve caller", err)
			return
		}

		if body.Project != "" {
			if err := svc.Access.AssertAccess(stdCtx, link.UserEmail, body.Project); err != nil {
				writeError(ctx, stdCtx, "Access denied", err)
				return
			}
		}

		requests, err := svc.Request.List(stdCtx, link.UserEmail, body.Project, body.Limit)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list requests", err)
			return
		}

		writeOK(ctx, stdCtx, "Requests retrieved", requests)
	})

	r.POST("/api/rpc/create_service_request", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		var body createRequestBody
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest(err))
			return
		}

		link, err := resolveCaller(stdCtx, svc, body.ChatID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to resolve caller", err)
			return
		}

		if err := svc.Access.AssertAccess(stdCtx, link.UserEmail, body.Project); err != nil {
			writeError(ctx, stdCtx, "Access denied", err)
			return
		}

		created, err := svc.Request.Create(stdCtx, request.CreateParams{
			Project:     body.Project,
			ProjectSite: body.ProjectSite,
			Title:       body.Title,
			Description: body.Description,
			Priority:    body.Priority,
			Owner:       link.UserEmail,
		})
		if err != nil {
			writeError(ctx, stdCtx, "Failed to create request", err)
			return
		}

		writeOK(ctx, stdCtx, "Request created", created)
	})

	r.POST("/api/rpc/get_service_request", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		var body getRequestBody
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest(err))
			return
		}

		link, err := resolveCaller(stdCtx, svc, body.ChatID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to resolve caller", err)
			return
		}

		req, err := svc.Request.GetByName(stdCtx, body.Request)
		if err != nil {
			if errors.Is(err, request.ErrRequestNotFound) {
				writeError(ctx, stdCtx, "Request not found", perrors.NewErrNotFound(fmt.Errorf("service request not found")))
				return
			}
			writeError(ctx, stdCtx, "Failed to load request", err)
			return
		}

		if err := svc.Access.AssertAccess(stdCtx, link.UserEmail, req.Project); err != nil {
			writeError(ctx, stdCtx, "Access denied", err)
			return
		}

		attachments, err := svc.Request.Attachments(stdCtx, request.AttachedToServiceRequest, req.Name)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to load attachments", err)
			return
		}

		writeOK(ctx, stdCtx, "Request retrieved", map[string]any{
			"request":     req,
			"attachments": attachments,
		})
	})

	r.POST("/api/rpc/upload_service_request_attachment", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		var body requestAttachmentBody
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest(err))
			return
		}

		link, err := resolveCaller(stdCtx, svc, body.ChatID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to resolve caller", err)
			return
		}

		result, err := svc.Uploader.UploadRequestAttachment(stdCtx, link.UserEmail, body.Request, body.FileID, body.Title)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to upload attachment", driveFriendly(err))
			return
		}

		writeOK(ctx, stdCtx, "Attachment uploaded", result)
	})
}
