package controllers

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/ferumlab/ferum-hub/internal/perrors"
	"github.com/ferumlab/ferum-hub/internal/services"
)

type surveyUploadBody struct {
	ChatID  int64  `json:"chat_id"`
	Project string `json:"project"`
	Site    string `json:"site"`
	Section string `json:"section"`
	FileID  string `json:"file_id"`
	Title   string `json:"title"`
}

func RegisterSurveyRoutes(r *router.Router, svc *services.Services) {
	// Seed missing checklist sections. Re-running never duplicates rows.
	r.POST("/api/rpc/ensure_default_survey_checklist", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		var body projectBody
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

		inserted, err := svc.Request.EnsureDefaultChecklist(stdCtx, body.Project)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to seed checklist", err)
			return
		}

		writeOK(ctx, stdCtx, "Checklist seeded", map[string]int{"inserted": inserted})
	})

	r.POST("/api/rpc/get_survey_checklist", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		var body projectBody
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

		items, err := svc.Request.Checklist(stdCtx, body.Project)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to load checklist", err)
			return
		}

		writeOK(ctx, stdCtx, "Checklist retrieved", items)
	})

	// The uploader asserts access and the site/project pairing itself,
	// before any file or folder API call.
	r.POST("/api/rpc/upload_survey_evidence", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		var body surveyUploadBody
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest(err))
			return
		}

		link, err := resolveCaller(stdCtx, svc, body.ChatID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to resolve caller", err)
			return
		}

		result, err := svc.Uploader.UploadSurveyEvidence(stdCtx,
			link.UserEmail, body.Project, body.Site, body.Section, body.FileID, body.Title)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to upload evidence", driveFriendly(err))
			return
		}

		writeOK(ctx, stdCtx, "Evidence uploaded", result)
	})
}
