package api

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/ferumlab/ferum-hub/internal/config"
	"github.com/ferumlab/ferum-hub/internal/migrations"
	"github.com/ferumlab/ferum-hub/internal/notifier"
	"github.com/ferumlab/ferum-hub/internal/services"
)

// Server is the erp-server: the RPC endpoint layer the bot talks to.
type Server struct {
	srv      *fasthttp.Server
	addr     string
	conf     *config.Config
	services *services.Services
	notifier *notifier.Notifier
}

// New runs pending migrations and wires the full service graph.
func New(conf *config.Config) *Server {
	m, err := migrations.NewMigrator()
	if err != nil {
		panic("unable to create migrator")
	}

	if err := m.Up(0); err != nil {
		panic("unable to run migrations")
	}

	svc := services.NewServices(conf)

	s := &Server{
		srv:      &fasthttp.Server{},
		addr:     conf.ERP_LISTEN_ADDR,
		conf:     conf,
		services: svc,
		notifier: notifier.New(conf, svc),
	}

	s.srv.Handler = s.initRoutes()

	return s
}

// Start serves until SIGINT/SIGTERM, then drains connections.
func (s *Server) Start() {
	slog.Info("Starting ERP RPC server...", slog.String("addr", s.addr))
	go func() {
		if err := s.srv.ListenAndServe(s.addr); err != nil {
			slog.Error("Server shutdown", slog.Any("error", err))
		}
	}()

	notifierCtx, stopNotifier := context.WithCancel(context.Background())
	go s.notifier.Run(notifierCtx)

	slog.Info("ERP RPC server started!")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c
	slog.Info("Received interrupt...")

	stopNotifier()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	s.shutdown(ctx)
}

func (s *Server) shutdown(_ context.Context) {
	slog.Info("Gracefully shutting down ERP RPC server...")
	if err := s.srv.Shutdown(); err != nil {
		slog.Error("Failed to shutdown the server", slog.Any("error", err))
	}
	slog.Info("ERP RPC server shutdown!")
}
