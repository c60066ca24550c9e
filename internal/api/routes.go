package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ferumlab/ferum-hub/internal/api/authenticator"
	"github.com/ferumlab/ferum-hub/internal/api/controllers"
)

var tracePropagator = propagation.TraceContext{}

func (s *Server) initRoutes() fasthttp.RequestHandler {
	r := router.New()

	r.GET("/api/health", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		_, _ = ctx.Write([]byte("OK"))
	})

	auth := authenticator.New(s.conf.SERVICE_TOKEN_SECRET, "ferum-erp")
	if !auth.Enabled() {
		slog.Warn("SERVICE_TOKEN_SECRET is empty, RPC endpoints accept unauthenticated callers")
	}

	controllers.RegisterRegistrationRoutes(r, s.services)
	controllers.RegisterProjectRoutes(r, s.services)
	controllers.RegisterRequestRoutes(r, s.services)
	controllers.RegisterSurveyRoutes(r, s.services)

	return s.withMiddlewares(r.Handler, auth)
}

func (s *Server) withMiddlewares(next fasthttp.RequestHandler, auth *authenticator.Authenticator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		method := string(ctx.Method())
		path := string(ctx.Path())
		slog.Info("Started processing", slog.String("method", method), slog.String("path", path))

		h := http.Header{}
		ctx.Request.Header.VisitAll(func(k, v []byte) {
			h[string(k)] = []string{string(v)}
		})
		traceCtx := tracePropagator.Extract(ctx, propagation.HeaderCarrier(h))
		ctx.SetUserValue("traceCtx", traceCtx)

		if auth.Enabled() && path != "/api/health" {
			raw := strings.TrimPrefix(string(ctx.Request.Header.Peek("Authorization")), "Bearer ")
			caller, err := auth.Verify(raw)
			if err != nil {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}
			ctx.SetUserValue("serviceCaller", caller)
		}

		next(ctx)

		slog.Info("Finished processing",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", ctx.Response.StatusCode()),
			slog.Duration("duration", time.Since(start)))
	}
}
