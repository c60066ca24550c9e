package notifier

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ferumlab/ferum-hub/internal/config"
	"github.com/ferumlab/ferum-hub/internal/pubsub"
	"github.com/ferumlab/ferum-hub/internal/services"
)

// sender is the slice of the Telegram API the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier fans document events out to subscribed chats. Delivery is best
// effort: a failed send is logged and never blocks or retries.
type Notifier struct {
	ps          *pubsub.PubSub
	svc         *services.Services
	bot         sender
	deskBaseURL string
}

func New(conf *config.Config, svc *services.Services) *Notifier {
	n := &Notifier{
		ps:          pubsub.NewPubSub(conf),
		svc:         svc,
		deskBaseURL: conf.DESK_BASE_URL,
	}

	if conf.TELEGRAM_BOT_TOKEN == "" {
		slog.Warn("TELEGRAM_BOT_TOKEN is empty, event notifications are disabled")
		return n
	}

	bot, err := tgbotapi.NewBotAPI(conf.TELEGRAM_BOT_TOKEN)
	if err != nil {
		slog.Error("Failed to create notifier bot client, notifications are disabled", slog.Any("error", err))
		return n
	}
	n.bot = bot

	return n
}

// Run listens for events until the context is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	if n.bot == nil {
		return
	}

	n.ps.Subscribe(func(event pubsub.Event) {
		if event.Kind == pubsub.KindServiceRequest {
			n.notifyServiceRequest(ctx, event.Name)
		}
	})

	if err := n.ps.Start(); err != nil {
		slog.Error("Failed to start event listener, notifications are disabled", slog.Any("error", err))
		return
	}

	<-ctx.Done()
	n.ps.Stop()
}

func (n *Notifier) notifyServiceRequest(ctx context.Context, name string) {
	req, err := n.svc.Request.GetByName(ctx, name)
	if err != nil {
		slog.Error("Failed to load request for notification", slog.String("request", name), slog.Any("error", err))
		return
	}

	chatIDs, err := n.svc.Subscription.ChatIDs(ctx, req.Project)
	if err != nil {
		slog.Error("Failed to load subscribers", slog.String("project", req.Project), slog.Any("error", err))
		return
	}
	if len(chatIDs) == 0 {
		return
	}

	text := fmt.Sprintf("🆕 Новая заявка %s\nПроект: %s\nОбъект: %s\nПриоритет: %s\n%s\n%s/app/service-request/%s",
		req.Name, req.Project, req.SiteName(), req.Priority, req.Title, n.deskBaseURL, req.Name)

	for _, chatID := range chatIDs {
		if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			slog.Error("Failed to deliver notification",
				slog.Int64("chat_id", chatID),
				slog.String("request", req.Name),
				slog.Any("error", err))
		}
	}
}
