package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ferumlab/ferum-hub/internal/erpclient"
)

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	ctx := context.Background()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	username := ""
	if msg.From != nil {
		username = msg.From.UserName
	}

	// Commands and menu buttons always reset the dialog first, so a stuck
	// user can escape any state by tapping a button.
	if msg.IsCommand() {
		b.sessions.Clear(ctx, chatID)
		b.handleCommand(ctx, chatID, username, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
		return
	}

	if cmd, ok := menuCommands[strings.TrimSpace(msg.Text)]; ok {
		b.sessions.Clear(ctx, chatID)
		b.handleCommand(ctx, chatID, username, cmd, "")
		return
	}

	session := b.sessions.Get(ctx, chatID)
	b.handleStateInput(ctx, chatID, username, session, msg)
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, username, cmd, args string) {
	switch cmd {
	case "start":
		out := tgbotapi.NewMessage(chatID, msgStart)
		out.ReplyMarkup = mainMenu()
		b.send(out)
	case "help":
		b.reply(chatID, msgHelp)
	case "chatid":
		b.reply(chatID, fmt.Sprintf("ID этого чата: %d", chatID))
	case "cancel":
		b.reply(chatID, msgCancelled)
	case "register":
		if args == "" {
			b.sessions.Put(ctx, chatID, &Session{State: StateAwaitingEmail})
			b.reply(chatID, msgAskEmail)
			return
		}
		b.startRegistration(ctx, chatID, username, args)
	case "me":
		active, err := b.erp.GetActiveProject(chatID)
		if err != nil {
			b.replyERPError(chatID, err)
			return
		}
		b.registered.set(chatID, true)
		b.reply(chatID, formatActive(active))
	case "projects":
		b.startProjectPicker(ctx, chatID, ActionSetActive, "Выберите активный проект:")
	case "my_requests":
		b.listRequests(chatID)
	case "new_request":
		b.startProjectPicker(ctx, chatID, ActionNewRequest, "Выберите проект для заявки:")
	case "survey":
		b.startSurveyPicker(ctx, chatID)
	case "subscribe":
		b.startProjectPicker(ctx, chatID, ActionSubscribe, "Подписаться на проект:")
	case "unsubscribe":
		b.startProjectPicker(ctx, chatID, ActionUnsubscribe, "Отписаться от проекта:")
	case "attach":
		b.startAttach(ctx, chatID, args)
	default:
		b.reply(chatID, msgUnknownCommand)
	}
}

// --- registration ---

func (b *Bot) startRegistration(ctx context.Context, chatID int64, username, email string) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		b.reply(chatID, "Это не похоже на email, попробуйте ещё раз:")
		b.sessions.Put(ctx, chatID, &Session{State: StateAwaitingEmail})
		return
	}

	if err := b.erp.StartRegistration(chatID, email, username); err != nil {
		b.replyERPError(chatID, err)
		return
	}

	b.sessions.Put(ctx, chatID, &Session{State: StateAwaitingCode, Email: email})
	b.reply(chatID, msgCodeSent)
}

func (b *Bot) confirmCode(ctx context.Context, chatID int64, username string, session *Session, code string) {
	result, err := b.erp.ConfirmRegistration(chatID, session.Email, username, strings.TrimSpace(code))
	if err != nil {
		// State stays put so the user can retry or restart with /register.
		b.replyERPError(chatID, err)
		return
	}

	b.sessions.Clear(ctx, chatID)
	b.registered.set(chatID, true)
	b.reply(chatID, formatWelcome(result))
}

// --- pickers ---

func (b *Bot) startProjectPicker(ctx context.Context, chatID int64, action, prompt string) {
	if reg, known := b.registered.get(chatID); known && !reg {
		b.reply(chatID, msgNeedRegister)
		return
	}

	options, ok := b.fetchProjectOptions(chatID)
	if !ok {
		return
	}
	if len(options) == 0 {
		b.reply(chatID, "Нет доступных проектов.")
		return
	}

	b.sessions.Put(ctx, chatID, &Session{State: StatePickingProject, Action: action, Options: options})
	b.replyWithOptions(chatID, prompt, pickProject, options)
}

func (b *Bot) startSurveyPicker(ctx context.Context, chatID int64) {
	if reg, known := b.registered.get(chatID); known && !reg {
		b.reply(chatID, msgNeedRegister)
		return
	}

	options, ok := b.fetchProjectOptions(chatID)
	if !ok {
		return
	}
	if len(options) == 0 {
		b.reply(chatID, "Нет доступных проектов.")
		return
	}

	b.sessions.Put(ctx, chatID, &Session{State: StatePickingProjectSurvey, Options: options})
	b.replyWithOptions(chatID, "Выберите проект для обследования:", pickProject, options)
}

func (b *Bot) fetchProjectOptions(chatID int64) ([]Option, bool) {
	projects, err := b.erp.ListProjects(chatID)
	if err != nil {
		b.replyERPError(chatID, err)
		return nil, false
	}
	b.registered.set(chatID, true)

	options := make([]Option, 0, len(projects))
	for _, p := range projects {
		label := p.Name
		if p.ProjectName != "" && p.ProjectName != p.Name {
			label = fmt.Sprintf("%s — %s", p.Name, p.ProjectName)
		}
		options = append(options, Option{Value: p.Name, Label: label})
	}
	return options, true
}

func (b *Bot) fetchSiteOptions(chatID int64, projectName string) ([]Option, bool) {
	sites, err := b.erp.ListObjects(chatID, projectName)
	if err != nil {
		b.replyERPError(chatID, err)
		return nil, false
	}

	options := make([]Option, 0, len(sites))
	for _, s := range sites {
		label := s.Name
		if s.SiteName != "" && s.SiteName != s.Name {
			label = fmt.Sprintf("%s — %s", s.Name, s.SiteName)
		}
		options = append(options, Option{Value: s.Name, Label: label})
	}
	return options, true
}

func (b *Bot) listRequests(chatID int64) {
	active, err := b.erp.GetActiveProject(chatID)
	if err != nil {
		b.replyERPError(chatID, err)
		return
	}
	b.registered.set(chatID, true)

	requests, err := b.erp.ListRequests(chatID, active.Project, 10)
	if err != nil {
		b.replyERPError(chatID, err)
		return
	}

	b.reply(chatID, formatRequests(requests))
}

func (b *Bot) startAttach(ctx context.Context, chatID int64, requestName string) {
	if requestName != "" {
		// Validate existence and access up front so uploads cannot start
		// against a foreign request.
		if _, err := b.erp.GetServiceRequest(chatID, requestName); err != nil {
			b.replyERPError(chatID, err)
			return
		}
		b.sessions.Put(ctx, chatID, &Session{State: StateAwaitingAttachments, AttachTo: requestName})
		b.reply(chatID, msgAskUploads)
		return
	}

	active, err := b.erp.GetActiveProject(chatID)
	if err != nil {
		b.replyERPError(chatID, err)
		return
	}

	requests, err := b.erp.ListRequests(chatID, active.Project, 10)
	if err != nil {
		b.replyERPError(chatID, err)
		return
	}
	if len(requests) == 0 {
		b.reply(chatID, "Заявок не найдено. Создайте новую: /new_request")
		return
	}

	options := make([]Option, 0, len(requests))
	for i := range requests {
		r := &requests[i]
		options = append(options, Option{Value: r.Name, Label: fmt.Sprintf("%s — %s", r.Name, r.Title)})
	}

	b.sessions.Put(ctx, chatID, &Session{State: StatePickingRequest, Options: options})
	b.replyWithOptions(chatID, "Выберите заявку:", pickRequest, options)
}

// --- free-text and file input, interpreted by state ---

func (b *Bot) handleStateInput(ctx context.Context, chatID int64, username string, session *Session, msg *tgbotapi.Message) {
	switch session.State {
	case StateAwaitingEmail:
		b.startRegistration(ctx, chatID, username, msg.Text)
	case StateAwaitingCode:
		b.confirmCode(ctx, chatID, username, session, msg.Text)
	case StateEnteringTitle:
		title := strings.TrimSpace(msg.Text)
		if title == "" {
			b.reply(chatID, msgAskTitle)
			return
		}
		session.Draft.Title = title
		session.State = StatePickingPriority
		session.Options = priorityOptions
		b.sessions.Put(ctx, chatID, session)
		b.replyWithOptions(chatID, "Выберите приоритет:", pickPriority, priorityOptions)
	case StateEnteringDescription:
		if !isSkip(msg.Text) {
			session.Draft.Description = strings.TrimSpace(msg.Text)
		}
		session.State = StateConfirmingRequest
		session.Options = confirmOptions
		b.sessions.Put(ctx, chatID, session)
		b.replyWithOptions(chatID, formatDraft(session.Draft), pickConfirm, confirmOptions)
	case StateAwaitingAttachments:
		b.handleAttachmentInput(ctx, chatID, session, msg)
	case StateAwaitingSurveyUploads:
		b.handleSurveyInput(ctx, chatID, session, msg)
	case StateIdle:
		b.reply(chatID, msgUnknownCommand)
	default:
		b.reply(chatID, msgUseButtons)
	}
}

func (b *Bot) handleAttachmentInput(ctx context.Context, chatID int64, session *Session, msg *tgbotapi.Message) {
	if isDone(msg.Text) {
		b.sessions.Clear(ctx, chatID)
		b.reply(chatID, "Готово. Файлы приложены к "+session.AttachTo+".")
		return
	}

	fileID, title, ok := extractFile(msg)
	if !ok {
		b.reply(chatID, msgAskUploads)
		return
	}

	result, err := b.erp.UploadRequestAttachment(chatID, session.AttachTo, fileID, title)
	if err != nil {
		b.replyERPError(chatID, err)
		return
	}

	b.reply(chatID, "📎 Файл загружен: "+result.FileURL)
}

func (b *Bot) handleSurveyInput(ctx context.Context, chatID int64, session *Session, msg *tgbotapi.Message) {
	if isDone(msg.Text) {
		b.sessions.Clear(ctx, chatID)
		b.reply(chatID, "Обследование завершено.")
		return
	}

	fileID, title, ok := extractFile(msg)
	if !ok {
		b.reply(chatID, msgAskUploads)
		return
	}

	cur := session.Survey
	result, err := b.erp.UploadSurveyEvidence(chatID, cur.Project, cur.Site, cur.Section, fileID, title)
	if err != nil {
		b.replyERPError(chatID, err)
		return
	}

	b.reply(chatID, fmt.Sprintf("📷 Файл по разделу «%s» загружен: %s", cur.Section, result.FileURL))
}

// extractFile picks the file reference out of a message: the largest photo
// size, or the document as-is. The caption (or document name) becomes the
// title.
func extractFile(msg *tgbotapi.Message) (fileID, title string, ok bool) {
	switch {
	case len(msg.Photo) > 0:
		fileID = msg.Photo[len(msg.Photo)-1].FileID
		title = msg.Caption
		return fileID, title, true
	case msg.Document != nil:
		title = msg.Caption
		if title == "" {
			title = msg.Document.FileName
		}
		return msg.Document.FileID, title, true
	default:
		return "", "", false
	}
}

// --- inline callbacks ---

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// Always acknowledge, otherwise the client keeps the spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		slog.Warn("Failed to answer callback", slog.Any("error", err))
	}

	if cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID

	kind, index, err := parsePick(cq.Data)
	if err != nil {
		b.reply(chatID, msgUseButtons)
		return
	}

	session := b.sessions.Get(ctx, chatID)

	switch kind {
	case pickProject:
		b.pickProject(ctx, chatID, session, index)
	case pickSite:
		b.pickSite(ctx, chatID, session, index)
	case pickPriority:
		b.pickPriority(ctx, chatID, session, index)
	case pickRequest:
		b.pickRequest(ctx, chatID, session, index)
	case pickSection:
		b.pickSection(ctx, chatID, session, index)
	case pickConfirm:
		b.pickConfirm(ctx, chatID, session, index)
	default:
		b.reply(chatID, msgUseButtons)
	}
}

func parsePick(data string) (kind string, index int, err error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != "pick" {
		return "", 0, fmt.Errorf("unexpected callback payload")
	}
	if _, err := fmt.Sscanf(parts[2], "%d", &index); err != nil {
		return "", 0, fmt.Errorf("bad callback index: %w", err)
	}
	return parts[1], index, nil
}

func (b *Bot) pickProject(ctx context.Context, chatID int64, session *Session, index int) {
	if session.State != StatePickingProject && session.State != StatePickingProjectSurvey {
		b.reply(chatID, msgUseButtons)
		return
	}

	// A stale snapshot (bot restarted, list changed, duplicate tap) gets one
	// refetch before giving up.
	if index < 0 || index >= len(session.Options) {
		fresh, ok := b.fetchProjectOptions(chatID)
		if !ok {
			return
		}
		session.Options = fresh
		b.sessions.Put(ctx, chatID, session)
		if index < 0 || index >= len(fresh) {
			b.replyWithOptions(chatID, msgStaleList, pickProject, fresh)
			return
		}
	}

	projectName := session.Options[index].Value

	if session.State == StatePickingProjectSurvey {
		sites, ok := b.fetchSiteOptions(chatID, projectName)
		if !ok {
			return
		}
		if len(sites) == 0 {
			b.sessions.Clear(ctx, chatID)
			b.reply(chatID, "На проекте нет объектов.")
			return
		}
		session.State = StatePickingSiteSurvey
		session.Survey = &SurveyCursor{Project: projectName}
		session.Options = sites
		b.sessions.Put(ctx, chatID, session)
		b.replyWithOptions(chatID, "Выберите объект:", pickSite, sites)
		return
	}

	switch session.Action {
	case ActionSetActive:
		if err := b.erp.SetActiveProject(chatID, projectName); err != nil {
			b.replyERPError(chatID, err)
			return
		}
		b.sessions.Clear(ctx, chatID)
		b.reply(chatID, "Активный проект: "+projectName)
	case ActionSubscribe:
		if err := b.erp.SubscribeProject(chatID, projectName); err != nil {
			b.replyERPError(chatID, err)
			return
		}
		b.sessions.Clear(ctx, chatID)
		b.reply(chatID, "🔔 Подписка на "+projectName+" оформлена.")
	case ActionUnsubscribe:
		if err := b.erp.UnsubscribeProject(chatID, projectName); err != nil {
			b.replyERPError(chatID, err)
			return
		}
		b.sessions.Clear(ctx, chatID)
		b.reply(chatID, "🔕 Подписка на "+projectName+" отменена.")
	case ActionNewRequest:
		sites, ok := b.fetchSiteOptions(chatID, projectName)
		if !ok {
			return
		}
		if len(sites) == 0 {
			b.sessions.Clear(ctx, chatID)
			b.reply(chatID, "На проекте нет объектов, заявку не к чему привязать.")
			return
		}
		session.State = StatePickingSiteForRequest
		session.Draft = &RequestDraft{Project: projectName}
		session.Options = sites
		b.sessions.Put(ctx, chatID, session)
		b.replyWithOptions(chatID, "Выберите объект:", pickSite, sites)
	default:
		b.sessions.Clear(ctx, chatID)
		b.reply(chatID, msgUseButtons)
	}
}

func (b *Bot) pickSite(ctx context.Context, chatID int64, session *Session, index int) {
	if index < 0 || index >= len(session.Options) {
		b.reply(chatID, msgStaleList)
		return
	}
	siteName := session.Options[index].Value

	switch session.State {
	case StatePickingSiteForRequest:
		session.Draft.Site = siteName
		session.State = StateEnteringTitle
		session.Options = nil
		b.sessions.Put(ctx, chatID, session)
		b.reply(chatID, msgAskTitle)
	case StatePickingSiteSurvey:
		if _, err := b.erp.EnsureDefaultChecklist(chatID, session.Survey.Project); err != nil {
			b.replyERPError(chatID, err)
			return
		}
		items, err := b.erp.GetChecklist(chatID, session.Survey.Project)
		if err != nil {
			b.replyERPError(chatID, err)
			return
		}
		session.Survey.Site = siteName
		session.State = StatePickingSection
		session.Options = formatChecklist(items)
		b.sessions.Put(ctx, chatID, session)
		b.replyWithOptions(chatID, "Выберите раздел обследования:", pickSection, session.Options)
	default:
		b.reply(chatID, msgUseButtons)
	}
}

func (b *Bot) pickPriority(ctx context.Context, chatID int64, session *Session, index int) {
	if session.State != StatePickingPriority || index < 0 || index >= len(priorityOptions) {
		b.reply(chatID, msgUseButtons)
		return
	}

	session.Draft.Priority = priorityOptions[index].Value
	session.State = StateEnteringDescription
	session.Options = nil
	b.sessions.Put(ctx, chatID, session)
	b.reply(chatID, msgAskDescription)
}

func (b *Bot) pickRequest(ctx context.Context, chatID int64, session *Session, index int) {
	if session.State != StatePickingRequest {
		b.reply(chatID, msgUseButtons)
		return
	}
	if index < 0 || index >= len(session.Options) {
		b.reply(chatID, msgStaleList)
		return
	}

	session.AttachTo = session.Options[index].Value
	session.State = StateAwaitingAttachments
	session.Options = nil
	b.sessions.Put(ctx, chatID, session)
	b.reply(chatID, msgAskUploads)
}

func (b *Bot) pickSection(ctx context.Context, chatID int64, session *Session, index int) {
	if session.State != StatePickingSection {
		b.reply(chatID, msgUseButtons)
		return
	}
	if index < 0 || index >= len(session.Options) {
		b.reply(chatID, msgStaleList)
		return
	}

	session.Survey.Section = session.Options[index].Value
	session.State = StateAwaitingSurveyUploads
	session.Options = nil
	b.sessions.Put(ctx, chatID, session)
	b.reply(chatID, msgAskUploads)
}

func (b *Bot) pickConfirm(ctx context.Context, chatID int64, session *Session, index int) {
	if session.State != StateConfirmingRequest || session.Draft == nil {
		b.reply(chatID, msgUseButtons)
		return
	}

	if index != 0 {
		b.sessions.Clear(ctx, chatID)
		b.reply(chatID, msgCancelled)
		return
	}

	d := session.Draft
	created, err := b.erp.CreateServiceRequest(chatID, erpclient.CreateRequestParams{
		Project:     d.Project,
		ProjectSite: d.Site,
		Title:       d.Title,
		Description: d.Description,
		Priority:    d.Priority,
	})
	if err != nil {
		b.replyERPError(chatID, err)
		return
	}

	b.sessions.Clear(ctx, chatID)
	b.reply(chatID, formatCreated(created))
}

// --- outgoing ---

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		slog.Error("Failed to send message", slog.Any("error", err))
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) replyWithOptions(chatID int64, text, kind string, options []Option) {
	out := tgbotapi.NewMessage(chatID, text)
	out.ReplyMarkup = optionsKeyboard(kind, options)
	b.send(out)
}

// replyERPError turns an RPC failure into exactly one user-facing reply.
// APIError messages are safe to show; anything else gets a generic retry
// prompt.
func (b *Bot) replyERPError(chatID int64, err error) {
	var apiErr *erpclient.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Unauthenticated() {
			b.registered.set(chatID, false)
			b.reply(chatID, msgNeedRegister)
			return
		}
		if apiErr.Forbidden() {
			b.reply(chatID, "⛔ Нет доступа.")
			return
		}
		b.reply(chatID, "⚠️ "+apiErr.Message)
		return
	}

	slog.Error("ERP call failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	b.reply(chatID, msgRetry)
}
