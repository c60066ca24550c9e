package controllers

import (
	"fmt"
	"slices"
	"sort"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/ferumlab/ferum-hub/internal/perrors"
	"github.com/ferumlab/ferum-hub/internal/services"
	"github.com/ferumlab/ferum-hub/internal/services/user"
)

type chatBody struct {
	ChatID int64 `json:"chat_id"`
}

type projectBody struct {
	ChatID  int64  `json:"chat_id"`
	Project string `json:"project"`
}

func RegisterProjectRoutes(r *router.Router, svc *services.Services) {
	// Projects visible to the caller, sorted by id.
	r.POST("/api/rpc/list_projects", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		var body chatBody
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest(err))
			return
		}

		link, err := resolveCaller(stdCtx, svc, body.ChatID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to resolve caller", err)
			return
		}

		accessible, err := svc.Access.AccessibleProjects(stdCtx, link.UserEmail)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list projects", err)
			return
		}

		names := make([]string, 0, len(accessible))
		for name := range accessible {
			names = append(names, name)
		}
		sort.Strings(names)

		projects, err := svc.Project.ListByNames(stdCtx, names)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list projects", err)
			return
		}

		writeOK(ctx, stdCtx, "Projects retrieved", projects)
	})

	r.POST("/api/rpc/get_active_project", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		var body chatBody
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest(err))
			return
		}

		link, err := resolveCaller(stdCtx, svc, body.ChatID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to resolve caller", err)
			return
		}

		writeOK(ctx, stdCtx, "Active project retrieved", map[string]string{
			"project": link.ActiveProjectName(),
			"user":    link.UserEmail,
		})
	})

	// Selecting a project is itself access-checked; an empty project clears
	// the selection.
	r.POST("/api/rpc/set_active_project", func(ctx *fasthttp.RequestCtx) {
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

		if body.Project == "" {
			if err := svc.ChatLink.ClearActiveProject(stdCtx, body.ChatID); err != nil {
				writeError(ctx, stdCtx, "Failed to clear active project", err)
				return
			}
			writeOK(ctx, stdCtx, "Active project cleared", map[string]string{"project": ""})
			return
		}

		if err := svc.Access.AssertAccess(stdCtx, link.UserEmail, body.Project); err != nil {
			writeError(ctx, stdCtx, "Access denied", err)
			return
		}

		if err := svc.ChatLink.SetActiveProject(stdCtx, body.ChatID, body.Project); err != nil {
			writeError(ctx, stdCtx, "Failed to set active project", err)
			return
		}

		writeOK(ctx, stdCtx, "Active project set", map[string]string{"project": body.Project})
	})

	// Sites of a project. Engineers without a managerial role only see the
	// sites they are the default engineer of.
	r.POST("/api/rpc/list_objects", func(ctx *fasthttp.RequestCtx) {
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

		engineer, err := engineerFilter(ctx, svc, link.UserEmail)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list objects", err)
			return
		}

		sites, err := svc.Project.ListSites(stdCtx, body.Project, engineer)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list objects", err)
			return
		}

		writeOK(ctx, stdCtx, "Objects retrieved", sites)
	})

	r.POST("/api/rpc/subscribe_project", func(ctx *fasthttp.RequestCtx) {
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

		if err := svc.Subscription.Subscribe(stdCtx, body.Project, link.Name); err != nil {
			writeError(ctx, stdCtx, "Failed to subscribe", err)
			return
		}

		writeOK(ctx, stdCtx, "Subscribed", map[string]string{"project": body.Project})
	})

	r.POST("/api/rpc/unsubscribe_project", func(ctx *fasthttp.RequestCtx) {
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

		if err := svc.Subscription.Unsubscribe(stdCtx, body.Project, link.Name); err != nil {
			writeError(ctx, stdCtx, "Failed to unsubscribe", err)
			return
		}

		writeOK(ctx, stdCtx, "Unsubscribed", map[string]string{"project": body.Project})
	})

	// Idempotent folder provisioning for a whole project tree. Cold projects
	// can take a while; the bot calls this with its long upload timeout.
	r.POST("/api/rpc/ensure_drive_folders", func(ctx *fasthttp.RequestCtx) {
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

		tree, err := svc.Drive.EnsureProjectTree(stdCtx, body.Project)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to provision folders", driveFriendly(err))
			return
		}

		writeOK(ctx, stdCtx, "Folders provisioned", tree)
	})
}

// engineerFilter returns the email to narrow site listings by, or "" when
// the user sees every site.
func engineerFilter(ctx *fasthttp.RequestCtx, svc *services.Services, email string) (string, error) {
	if email == user.Administrator {
		return "", nil
	}

	roles, err := svc.User.Roles(requestContext(ctx), email)
	if err != nil {
		return "", fmt.Errorf("failed to load roles: %w", err)
	}

	for _, role := range roles {
		if slices.Contains(user.PrivilegedRoles, role) {
			return "", nil
		}
	}

	if slices.Contains(roles, user.RoleServiceEngineer) {
		return email, nil
	}

	return "", nil
}
