package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ferumlab/ferum-hub/internal/cache"
	"github.com/ferumlab/ferum-hub/internal/config"
	"github.com/ferumlab/ferum-hub/internal/drive"
	"github.com/ferumlab/ferum-hub/internal/erpclient"
	"github.com/ferumlab/ferum-hub/internal/services/project"
	"github.com/ferumlab/ferum-hub/internal/services/request"
	"github.com/ferumlab/ferum-hub/internal/services/verification"
	"github.com/ferumlab/ferum-hub/internal/uploader"
)

// ErrCrashed marks an abnormal end of the polling loop. The supervisor in
// cmd restarts the bot after RestartBackoff when it sees this.
var ErrCrashed = errors.New("bot polling loop crashed")

const RestartBackoff = 5 * time.Second

// chatAPI is the slice of the Telegram API the handlers use.
type chatAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// erp is the RPC surface of the erp-server, satisfied by *erpclient.Client.
type erp interface {
	StartRegistration(chatID int64, email, telegramUsername string) error
	ConfirmRegistration(chatID int64, email, telegramUsername, code string) (*verification.Result, error)
	ListProjects(chatID int64) ([]project.Summary, error)
	GetActiveProject(chatID int64) (*erpclient.ActiveProject, error)
	SetActiveProject(chatID int64, projectName string) error
	ListObjects(chatID int64, projectName string) ([]project.Site, error)
	ListRequests(chatID int64, projectName string, limit int) ([]request.Request, error)
	CreateServiceRequest(chatID int64, params erpclient.CreateRequestParams) (*request.Request, error)
	GetServiceRequest(chatID int64, name string) (*erpclient.RequestDetail, error)
	SubscribeProject(chatID int64, projectName string) error
	UnsubscribeProject(chatID int64, projectName string) error
	EnsureDefaultChecklist(chatID int64, projectName string) (int, error)
	GetChecklist(chatID int64, projectName string) ([]request.ChecklistItem, error)
	UploadSurveyEvidence(chatID int64, projectName, site, section, fileID, title string) (*uploader.Result, error)
	UploadRequestAttachment(chatID int64, requestName, fileID, title string) (*uploader.Result, error)
	EnsureDriveFolders(chatID int64, projectName string) (*drive.TreeResult, error)
}

// Bot is the Telegram front end. It holds no business logic: every user
// action becomes one or more RPC calls against the erp-server.
type Bot struct {
	tg         *tgbotapi.BotAPI
	api        chatAPI
	erp        erp
	sessions   sessionStore
	registered *registeredCache

	// per-chat dispatch queues keep in-chat ordering while different chats
	// are handled concurrently
	mu     sync.Mutex
	queues map[int64]chan tgbotapi.Update
}

func New(conf *config.Config) (*Bot, error) {
	if conf.TELEGRAM_BOT_TOKEN == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}

	tg, err := tgbotapi.NewBotAPI(conf.TELEGRAM_BOT_TOKEN)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}

	slog.Info("Telegram bot authorized", slog.String("username", tg.Self.UserName))

	return &Bot{
		tg:         tg,
		api:        tg,
		erp:        erpclient.New(conf),
		sessions:   newRedisSessions(cache.NewClient(conf)),
		registered: newRegisteredCache(60 * time.Second),
		queues:     make(map[int64]chan tgbotapi.Update),
	}, nil
}

// Run polls for updates until a signal arrives. A closed update channel is
// treated as a crash so the supervisor restarts us.
func (b *Bot) Run(stop <-chan os.Signal) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.tg.GetUpdatesChan(u)

	for {
		select {
		case <-stop:
			slog.Info("Stopping bot...")
			b.tg.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return ErrCrashed
			}
			b.dispatch(update)
		}
	}
}

// dispatch routes an update to its chat's queue. Updates of one chat are
// handled in delivery order; chats do not block each other.
func (b *Bot) dispatch(update tgbotapi.Update) {
	chatID := updateChatID(update)
	if chatID == 0 {
		return
	}

	b.mu.Lock()
	q, ok := b.queues[chatID]
	if !ok {
		q = make(chan tgbotapi.Update, 16)
		b.queues[chatID] = q
		go b.chatLoop(chatID, q)
	}
	b.mu.Unlock()

	select {
	case q <- update:
	default:
		slog.Warn("Chat queue full, dropping update", slog.Int64("chat_id", chatID))
	}
}

func (b *Bot) chatLoop(chatID int64, q <-chan tgbotapi.Update) {
	for update := range q {
		b.handleUpdateSafe(chatID, update)
	}
}

// handleUpdateSafe guarantees a bad update never kills the process and the
// user still gets a reply.
func (b *Bot) handleUpdateSafe(chatID int64, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic while handling update",
				slog.Int64("chat_id", chatID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			b.reply(chatID, msgInternalError)
		}
	}()

	b.handleUpdate(update)
}

func updateChatID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		return update.CallbackQuery.Message.Chat.ID
	default:
		return 0
	}
}

// registeredCache shadows the "is this chat linked" lookup for a short
// window. It is never authoritative: entries expire and any ERP reply
// refreshes them.
type registeredCache struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[int64]registeredEntry
}

type registeredEntry struct {
	registered bool
	expires    time.Time
}

func newRegisteredCache(ttl time.Duration) *registeredCache {
	return &registeredCache{ttl: ttl, m: make(map[int64]registeredEntry)}
}

// get returns (registered, known).
func (c *registeredCache) get(chatID int64) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[chatID]
	if !ok || time.Now().After(e.expires) {
		delete(c.m, chatID)
		return false, false
	}
	return e.registered, true
}

func (c *registeredCache) set(chatID int64, registered bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[chatID] = registeredEntry{registered: registered, expires: time.Now().Add(c.ttl)}
}
