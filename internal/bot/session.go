package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// State is the dialog position of one chat. The bot process may restart at
// any point, so state lives in redis, never in memory only.
type State string

const (
	StateIdle                  State = "idle"
	StateAwaitingEmail         State = "awaiting_email"
	StateAwaitingCode          State = "awaiting_code"
	StatePickingProject        State = "picking_project"
	StatePickingSiteForRequest State = "picking_site_for_request"
	StateEnteringTitle         State = "entering_title"
	StatePickingPriority       State = "picking_priority"
	StateEnteringDescription   State = "entering_description"
	StateConfirmingRequest     State = "confirming_request"
	StatePickingRequest        State = "picking_request"
	StateAwaitingAttachments   State = "awaiting_attachments"
	StatePickingProjectSurvey  State = "picking_project_survey"
	StatePickingSiteSurvey     State = "picking_site_survey"
	StatePickingSection        State = "picking_section"
	StateAwaitingSurveyUploads State = "awaiting_survey_uploads"
)

// Actions of the generic project picker.
const (
	ActionSetActive   = "set_active"
	ActionNewRequest  = "new_request"
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// RequestDraft accumulates the new-request dialog answers.
type RequestDraft struct {
	Project     string `json:"project"`
	Site        string `json:"site"`
	Title       string `json:"title"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
}

// SurveyCursor pins the target of survey evidence uploads.
type SurveyCursor struct {
	Project string `json:"project"`
	Site    string `json:"site"`
	Section string `json:"section"`
}

// Option is one selectable row captured at prompt time. Callbacks carry an
// index into this snapshot, never the value itself, to stay inside
// Telegram's callback-data size limit.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Session is the tagged union persisted per chat: State selects which
// payload fields are meaningful.
type Session struct {
	State   State    `json:"state"`
	Email   string   `json:"email,omitempty"`
	Action  string   `json:"action,omitempty"`
	Options []Option `json:"options,omitempty"`

	Draft    *RequestDraft `json:"draft,omitempty"`
	Survey   *SurveyCursor `json:"survey,omitempty"`
	AttachTo string        `json:"attach_to,omitempty"`
}

func idleSession() *Session {
	return &Session{State: StateIdle}
}

// decodeSession is fail-open: a missing, corrupt or unknown-state payload
// resets the dialog to Idle instead of wedging the chat.
func decodeSession(raw []byte) *Session {
	if len(raw) == 0 {
		return idleSession()
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		slog.Warn("Corrupt session payload, resetting to idle", slog.Any("error", err))
		return idleSession()
	}

	if s.State == "" {
		return idleSession()
	}

	return &s
}

func encodeSession(s *Session) ([]byte, error) {
	return json.Marshal(s)
}

// sessionStore abstracts session persistence for tests.
type sessionStore interface {
	Get(ctx context.Context, chatID int64) *Session
	Put(ctx context.Context, chatID int64, s *Session)
	Clear(ctx context.Context, chatID int64)
}

const sessionTTL = 24 * time.Hour

// redisSessions keeps one JSON session blob per chat. All failures degrade
// to an idle session; losing a dialog beats wedging it.
type redisSessions struct {
	client *redis.Client
}

func newRedisSessions(client *redis.Client) *redisSessions {
	return &redisSessions{client: client}
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("ferum:tg:session:%d", chatID)
}

func (r *redisSessions) Get(ctx context.Context, chatID int64) *Session {
	raw, err := r.client.Get(ctx, sessionKey(chatID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("Failed to load session", slog.Int64("chat_id", chatID), slog.Any("error", err))
		}
		return idleSession()
	}

	return decodeSession(raw)
}

func (r *redisSessions) Put(ctx context.Context, chatID int64, s *Session) {
	raw, err := encodeSession(s)
	if err != nil {
		slog.Error("Failed to encode session", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return
	}

	if err := r.client.Set(ctx, sessionKey(chatID), raw, sessionTTL).Err(); err != nil {
		slog.Warn("Failed to store session", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func (r *redisSessions) Clear(ctx context.Context, chatID int64) {
	if err := r.client.Del(ctx, sessionKey(chatID)).Err(); err != nil {
		slog.Warn("Failed to clear session", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}
