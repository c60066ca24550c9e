package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Main-menu button labels. Free-text messages matching a label are treated
// as the equivalent slash-command, which also lets a user escape a stuck
// dialog by tapping any menu button.
const (
	BtnRegister    = "🔗 Регистрация"
	BtnHelp        = "ℹ️ Помощь"
	BtnNewRequest  = "🆕 Новая заявка"
	BtnMyRequests  = "📋 Мои заявки"
	BtnAttach      = "📎 К заявке"
	BtnProjects    = "📁 Проекты"
	BtnSurvey      = "📷 Обследование"
	BtnSubscribe   = "🔔 Подписаться"
	BtnUnsubscribe = "🔕 Отписаться"
	BtnCancel      = "❌ Отмена"
)

// menuCommands maps button labels to the command they alias.
var menuCommands = map[string]string{
	BtnRegister:    "register",
	BtnHelp:        "help",
	BtnNewRequest:  "new_request",
	BtnMyRequests:  "my_requests",
	BtnAttach:      "attach",
	BtnProjects:    "projects",
	BtnSurvey:      "survey",
	BtnSubscribe:   "subscribe",
	BtnUnsubscribe: "unsubscribe",
	BtnCancel:      "cancel",
}

func mainMenu() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnProjects),
			tgbotapi.NewKeyboardButton(BtnMyRequests),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnNewRequest),
			tgbotapi.NewKeyboardButton(BtnAttach),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnSurvey),
			tgbotapi.NewKeyboardButton(BtnSubscribe),
			tgbotapi.NewKeyboardButton(BtnUnsubscribe),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnRegister),
			tgbotapi.NewKeyboardButton(BtnHelp),
			tgbotapi.NewKeyboardButton(BtnCancel),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// Callback payload kinds. Data format is "pick:<kind>:<index>", where index
// points into the session's option snapshot.
const (
	pickProject  = "project"
	pickSite     = "site"
	pickPriority = "priority"
	pickRequest  = "request"
	pickSection  = "section"
	pickConfirm  = "confirm"
)

func pickData(kind string, index int) string {
	return fmt.Sprintf("pick:%s:%d", kind, index)
}

// optionsKeyboard renders one button per option, one per row.
func optionsKeyboard(kind string, options []Option) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for i, opt := range options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(opt.Label, pickData(kind, i)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// priorities in request order; values are the ERP field values, labels are
// what the user sees.
var priorityOptions = []Option{
	{Value: "Low", Label: "🟢 Низкий"},
	{Value: "Medium", Label: "🟡 Средний"},
	{Value: "High", Label: "🟠 Высокий"},
	{Value: "Critical", Label: "🔴 Критический"},
}

var confirmOptions = []Option{
	{Value: "yes", Label: "✅ Создать"},
	{Value: "no", Label: "❌ Отмена"},
}
