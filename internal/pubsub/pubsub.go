package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/ferumlab/ferum-hub/internal/config"
)

// EventKind is the document kind prefix of a ferum_events payload.
type EventKind string

const (
	KindServiceRequest EventKind = "service_request"
)

const channel = "ferum_events"

// Event is a document change broadcast by a database trigger. The payload
// format is "<kind>:<name>".
type Event struct {
	Kind EventKind
	Name string
}

// Handler is a callback for document events.
type Handler func(event Event)

// PubSub handles PostgreSQL LISTEN/NOTIFY for document events.
type PubSub struct {
	connStr  string
	listener *pq.Listener
	handlers []Handler
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewPubSub(conf *config.Config) *PubSub {
	connStr := fmt.Sprintf("postgresql://%v:%v@%v:%v/%v",
		conf.DB_USERNAME, conf.DB_PASSWORD, conf.DB_HOST, conf.DB_PORT, conf.DB_NAME)
	if conf.DISABLE_TLS == "true" {
		connStr = connStr + "?sslmode=disable"
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &PubSub{
		connStr:  connStr,
		handlers: make([]Handler, 0),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Subscribe adds a handler for document events.
func (ps *PubSub) Subscribe(handler Handler) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.handlers = append(ps.handlers, handler)
}

// Start begins listening for notifications
func (ps *PubSub) Start() error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Error("PubSub listener error", slog.Any("error", err))
		}
		if ev == pq.ListenerEventConnectionAttemptFailed {
			slog.Warn("PubSub connection attempt failed, will retry")
		}
		if ev == pq.ListenerEventDisconnected {
			slog.Warn("PubSub disconnected, will attempt reconnect")
		}
		if ev == pq.ListenerEventReconnected {
			// Notifications sent while disconnected are lost. Event
			// consumers are best-effort, so a reconnect is just logged.
			slog.Info("PubSub reconnected")
		}
	}

	ps.listener = pq.NewListener(ps.connStr, 10*time.Second, time.Minute, reportProblem)

	if err := ps.listener.Listen(channel); err != nil {
		return fmt.Errorf("failed to listen on %s channel: %w", channel, err)
	}

	slog.Info("PubSub started listening for document events")

	go ps.processNotifications()

	return nil
}

// Stop closes the listener
func (ps *PubSub) Stop() {
	ps.cancel()
	if ps.listener != nil {
		ps.listener.Close()
	}
	slog.Info("PubSub stopped")
}

func (ps *PubSub) processNotifications() {
	for {
		select {
		case <-ps.ctx.Done():
			return
		case notification := <-ps.listener.Notify:
			if notification == nil {
				// Connection lost, will be handled by reportProblem callback
				continue
			}

			// Parse the payload: "kind:name"
			parts := strings.SplitN(notification.Extra, ":", 2)
			if len(parts) != 2 {
				slog.Warn("Invalid notification payload", slog.String("payload", notification.Extra))
				continue
			}

			event := Event{
				Kind: EventKind(parts[0]),
				Name: parts[1],
			}

			slog.Debug("Received document event",
				slog.String("kind", string(event.Kind)),
				slog.String("name", event.Name))

			ps.notifyHandlers(event)
		}
	}
}

func (ps *PubSub) notifyHandlers(event Event) {
	ps.mu.RLock()
	handlers := make([]Handler, len(ps.handlers))
	copy(handlers, ps.handlers)
	ps.mu.RUnlock()

	for _, handler := range handlers {
		// Run handlers in goroutines to avoid blocking the notification loop
		go handler(event)
	}
}
