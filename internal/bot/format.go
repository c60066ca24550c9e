package bot

import (
	"fmt"
	"strings"

	"github.com/ferumlab/ferum-hub/internal/erpclient"
	"github.com/ferumlab/ferum-hub/internal/services/request"
	"github.com/ferumlab/ferum-hub/internal/services/verification"
)

const (
	msgStart = "Привет! Я бот сервисной службы Ferum.\n" +
		"Через меня можно подавать заявки, прикладывать файлы и вести обследования объектов.\n" +
		"Начните с регистрации: /register <email>"

	msgHelp = "Команды:\n" +
		"/register <email> — привязать чат к аккаунту\n" +
		"/me — кто я и активный проект\n" +
		"/projects — выбрать активный проект\n" +
		"/my_requests — мои заявки\n" +
		"/new_request — новая заявка\n" +
		"/attach [номер заявки] — приложить файлы к заявке\n" +
		"/survey — обследование объекта\n" +
		"/subscribe — подписаться на уведомления проекта\n" +
		"/unsubscribe — отписаться\n" +
		"/chatid — показать id этого чата\n" +
		"/cancel — прервать текущий диалог"

	msgUnknownCommand = "Неизвестная команда. Наберите /help."
	msgInternalError  = "⚠️ Внутренняя ошибка, попробуйте ещё раз."
	msgRetry          = "⚠️ Не получилось связаться с сервером, попробуйте ещё раз."
	msgNeedRegister   = "Этот чат не привязан к аккаунту. Отправьте /register <email>."
	msgCancelled      = "Действие отменено."
	msgAskEmail       = "Отправьте ваш email:"
	msgCodeSent       = "Код отправлен на почту. Пришлите 6-значный код одним сообщением."
	msgAskTitle       = "Коротко опишите проблему (тема заявки):"
	msgAskDescription = "Добавьте описание или отправьте «пропустить»:"
	msgAskUploads     = "Пришлите фото или документы. Отправьте «готово», когда закончите."
	msgStaleList      = "Список устарел, выберите заново:"
	msgUseButtons     = "Пожалуйста, используйте кнопки выше или /cancel."
)

var (
	skipWords = map[string]struct{}{"пропустить": {}, "skip": {}, "-": {}}
	doneWords = map[string]struct{}{"готово": {}, "done": {}, "всё": {}, "все": {}}
	stopWords = map[string]struct{}{"отмена": {}, "cancel": {}, "стоп": {}}
)

func isSkip(text string) bool {
	_, ok := skipWords[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

func isDone(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if _, ok := doneWords[t]; ok {
		return true
	}
	_, ok := stopWords[t]
	return ok
}

func formatWelcome(result *verification.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Чат привязан к аккаунту %s.", result.User)
	if len(result.GrantedProjects) > 0 {
		fmt.Fprintf(&b, "\nДоступные проекты: %s.", strings.Join(result.GrantedProjects, ", "))
	}
	if result.ActiveProject != "" {
		fmt.Fprintf(&b, "\nАктивный проект: %s.", result.ActiveProject)
	}
	return b.String()
}

func formatRequests(requests []request.Request) string {
	if len(requests) == 0 {
		return "Заявок не найдено."
	}

	var b strings.Builder
	b.WriteString("Ваши заявки:\n")
	for i := range requests {
		r := &requests[i]
		fmt.Fprintf(&b, "🔹 %s — %s [%s, %s]\n", r.Name, r.Title, r.Status, r.Priority)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDraft(d *RequestDraft) string {
	desc := d.Description
	if desc == "" {
		desc = "—"
	}
	return fmt.Sprintf("Проверьте заявку:\nПроект: %s\nОбъект: %s\nТема: %s\nПриоритет: %s\nОписание: %s",
		d.Project, d.Site, d.Title, d.Priority, desc)
}

func formatCreated(r *request.Request) string {
	return fmt.Sprintf("✅ Заявка %s создана.\nСтатус: %s, приоритет: %s.", r.Name, r.Status, r.Priority)
}

func formatActive(active *erpclient.ActiveProject) string {
	if active.Project == "" {
		return fmt.Sprintf("Вы вошли как %s.\nАктивный проект не выбран, наберите /projects.", active.User)
	}
	return fmt.Sprintf("Вы вошли как %s.\nАктивный проект: %s.", active.User, active.Project)
}

func formatChecklist(items []request.ChecklistItem) []Option {
	options := make([]Option, 0, len(items))
	for _, item := range items {
		mark := "◻️"
		if item.Done {
			mark = "✅"
		}
		options = append(options, Option{
			Value: item.Section,
			Label: fmt.Sprintf("%s %02d. %s", mark, item.Idx, item.Section),
		})
	}
	return options
}
