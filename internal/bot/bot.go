package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskledger/internal/model"
	"taskledger/internal/repository"
	"taskledger/internal/service"
)

// Channel is the delivery channel name used for Telegram.
const Channel = "telegram"

const (
	cbDonePrefix = "done:"
)

const (
	menuLabelTasks         = "📋 Tasks"
	menuLabelAsk           = "❓ Ask me"
	menuLabelNotifications = "🔔 Reminders"
	menuLabelHelp          = "ℹ️ Help"
)

// Services are the entity services the command surface calls into.
type Services struct {
	Tasks         *service.TaskService
	Questions     *service.QuestionService
	Notifications *service.NotificationService
	Reminders     *service.ReminderService
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api         *tgbotapi.BotAPI
	coordinator *service.Coordinator
	svc         Services
	notifyChat  string
	allowed     map[int64]bool

	// lastAsked remembers the question shown by /ask so a plain reply can answer it.
	lastAsked map[int64]string
	mu        sync.Mutex
}

// New authorizes against the Bot API. Only users in allowFrom are served.
// Call SetCoordinator before Start.
func New(token string, svc Services, notifyChat string, allowFrom []int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:        api,
		svc:        svc,
		notifyChat: notifyChat,
		allowed:    allowSet(allowFrom),
		lastAsked:  make(map[int64]string),
	}, nil
}

func allowSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// isAllowed reports whether userID may use the bot. An empty set allows nobody.
func (b *Bot) isAllowed(userID int64) bool {
	return b.allowed[userID]
}

// SetCoordinator completes wiring. The coordinator needs Deliver, so it is
// built after the bot.
func (b *Bot) SetCoordinator(c *service.Coordinator) {
	b.coordinator = c
}

// Deliver implements service.DeliveryFunc. It is called with the processing
// lock held and must not re-enter the coordinator.
func (b *Bot) Deliver(ctx context.Context, channel, recipient, text string) error {
	if channel != "" && channel != Channel {
		return fmt.Errorf("unsupported channel %q", channel)
	}
	chatID, err := parseChatID(recipient)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.coordinator == nil {
		return errors.New("bot started without a coordinator")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("[error] handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("[error] handle message: %v", err)
			}
		}
	}

	return nil
}

// SendDailyDigest sends the dashboard to the notification chat.
func (b *Bot) SendDailyDigest(ctx context.Context) error {
	if b.notifyChat == "" {
		log.Println("[warn] daily digest skipped: NOTIFY_CHAT_ID is not set")
		return nil
	}
	var text string
	err := b.coordinator.HandleMessage(ctx, func(ctx context.Context) error {
		var err error
		text, err = b.svc.Reminders.DailySummary(ctx, time.Now())
		return err
	})
	if err != nil {
		return fmt.Errorf("build digest: %w", err)
	}
	return b.Deliver(ctx, Channel, b.notifyChat, text)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !b.isAllowed(msg.From.ID) {
		log.Printf("[warn] ignoring message from unknown user %d", msg.From.ID)
		return nil
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if qid, ok := b.takeLastAsked(msg.Chat.ID); ok {
		return b.answer(ctx, msg.Chat.ID, qid, msg.Text)
	}

	return b.sendText(msg.Chat.ID, "I only understand commands for now. Try /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(chatID)
	case "tasks":
		return b.handleTasks(ctx, chatID)
	case "questions":
		return b.handleQuestions(ctx, chatID)
	case "ask":
		return b.handleAsk(ctx, chatID)
	case "answer":
		qid, text, err := parseAnswerArgs(args)
		if err != nil {
			return b.sendText(chatID, escape(err.Error()))
		}
		return b.answer(ctx, chatID, qid, text)
	case "remind":
		return b.handleRemind(ctx, chatID, args)
	case "cancel":
		return b.handleCancel(ctx, chatID, args)
	case "done":
		if args == "" {
			return b.sendText(chatID, "Usage: /done &lt;task_id&gt;")
		}
		return b.completeTask(ctx, chatID, args)
	case "progress":
		return b.handleProgress(ctx, chatID, args)
	case "notifications":
		return b.handleNotifications(ctx, chatID)
	default:
		return b.sendText(chatID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I keep your tasks, questions and reminders in one ledger.</b>\n\n"+
			"Reminders arrive in chat <code>%s</code>.\n\nSee /help for commands.",
		escape(name), escape(b.notifyChat),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(chatID int64) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /tasks — dashboard with active, recurring and someday tasks\n" +
		"• /done &lt;task_id&gt; — mark a task done\n" +
		"• /progress &lt;task_id&gt; &lt;0-100&gt; — record progress\n" +
		"• /questions — open questions\n" +
		"• /ask — ask me the next question\n" +
		"• /answer &lt;question_id&gt; &lt;text&gt; — answer a question\n" +
		"• /remind &lt;when&gt; | &lt;text&gt; — schedule a reminder (e.g. <code>/remind in 2 hours | stretch</code>)\n" +
		"• /notifications — pending reminders\n" +
		"• /cancel &lt;notification_id&gt; — cancel a reminder"
	return b.sendText(chatID, text)
}

func (b *Bot) handleTasks(ctx context.Context, chatID int64) error {
	var (
		summary string
		open    []model.Task
	)
	err := b.coordinator.HandleMessage(ctx, func(ctx context.Context) error {
		var err error
		if summary, err = b.svc.Reminders.DailySummary(ctx, time.Now()); err != nil {
			return err
		}
		open, err = b.svc.Tasks.ListTasks(ctx, model.TaskActive)
		return err
	})
	if err != nil {
		return b.sendError(chatID, "Could not load tasks", err)
	}

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range open {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ "+shortTitle(task.Title, 28), cbDonePrefix+task.ID),
		))
	}
	if len(buttons) == 0 {
		return b.sendText(chatID, summary)
	}
	return b.sendWithReplyMarkup(chatID, summary, tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

func (b *Bot) handleQuestions(ctx context.Context, chatID int64) error {
	var questions []model.Question
	err := b.coordinator.HandleMessage(ctx, func(ctx context.Context) error {
		var err error
		questions, err = b.svc.Questions.ListQuestions(ctx, false)
		return err
	})
	if err != nil {
		return b.sendError(chatID, "Could not load questions", err)
	}
	if len(questions) == 0 {
		return b.sendText(chatID, "No open questions 🎉")
	}

	var sb strings.Builder
	sb.WriteString("❓ <b>Open questions</b>\n")
	for _, q := range questions {
		sb.WriteString(fmt.Sprintf("• <code>%s</code> %s\n", q.ID, escape(q.Question)))
	}
	return b.sendText(chatID, strings.TrimSpace(sb.String()))
}

func (b *Bot) handleAsk(ctx context.Context, chatID int64) error {
	var q *model.Question
	err := b.coordinator.HandleMessage(ctx, func(ctx context.Context) error {
		var err error
		q, err = b.svc.Questions.NextQuestion(ctx)
		return err
	})
	if err != nil {
		return b.sendError(chatID, "Could not pick a question", err)
	}
	if q == nil {
		return b.sendText(chatID, "Nothing to ask right now.")
	}
	b.setLastAsked(chatID, q.ID)
	return b.sendText(chatID, fmt.Sprintf("❓ %s\n\n<i>Reply with your answer.</i>", escape(q.Question)))
}

func (b *Bot) answer(ctx context.Context, chatID int64, qid, text string) error {
	err := b.coordinator.HandleMessage(ctx, func(ctx context.Context) error {
		_, err := b.svc.Questions.AnswerQuestion(ctx, qid, text)
		return err
	})
	if err != nil {
		return b.sendError(chatID, "Could not save the answer", err)
	}
	return b.sendText(chatID, "📝 Got it, thanks!")
}

func (b *Bot) handleRemind(ctx context.Context, chatID int64, args string) error {
	when, text, err := parseRemindArgs(args)
	if err != nil {
		return b.sendText(chatID, escape(err.Error()))
	}
	var n *model.Notification
	err = b.coordinator.HandleMessage(ctx, func(ctx context.Context) error {
		var err error
		n, err = b.svc.Notifications.Schedule(ctx, service.NotificationInput{
			Message:   text,
			When:      when,
			CreatedBy: model.CreatedByUser,
		})
		return err
	})
	if err != nil {
		return b.sendError(chatID, "Could not schedule the reminder", err)
	}
	return b.sendText(chatID, fmt.Sprintf("⏰ Reminder <code>%s</code> set for %s", n.ID, n.ScheduledAt.Local().Format("2006-01-02 15:04")))
}

func (b *Bot) handleCancel(ctx context.Context, chatID int64, args string) error {
	id, reason, _ := strings.Cut(args, " ")
	if id == "" {
		return b.sendText(chatID, "Usage: /cancel &lt;notification_id&gt; [reason]")
	}
	var result string
	err := b.coordinator.HandleMessage(ctx, func(ctx context.Context) error {
		var err error
		result, err = b.svc.Notifications.Cancel(ctx, id, strings.TrimSpace(reason))
		return err
	})
	if err != nil {
		return b.sendError(chatID, "Could not cancel", err)
	}
	return b.sendText(chatID, "🔕 "+escape(result))
}

func (b *Bot) handleProgress(ctx context.Context, chatID int64, args string) error {
	id, pct, err := parseProgressArgs(args)
	if err != nil {
		return b.sendText(chatID, escape(err.Error()))
	}
	var task *model.Task
	err = b.coordinator.HandleMessage(ctx, func(ctx context.Context) error {
		var err error
		task, err = b.svc.Tasks.UpdateTask(ctx, id, service.TaskUpdate{Progress: &pct})
		return err
	})
	if err != nil {
		return b.sendError(chatID, "Could not update progress", err)
	}
	return b.sendText(chatID, fmt.Sprintf("📈 «%s» is at %d%%", escape(normalizeTitle(task.Title)), task.Progress.Percentage))
}

func (b *Bot) handleNotifications(ctx context.Context, chatID int64) error {
	var text string
	err := b.coordinator.HandleMessage(ctx, func(ctx context.Context) error {
		var err error
		text, err = b.svc.Reminders.PendingSummary(ctx, time.Now())
		return err
	})
	if err != nil {
		return b.sendError(chatID, "Could not load reminders", err)
	}
	return b.sendText(chatID, text)
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, id string) error {
	var task *model.Task
	err := b.coordinator.HandleMessage(ctx, func(ctx context.Context) error {
		var err error
		task, err = b.svc.Tasks.CompleteTask(ctx, id)
		return err
	})
	if err != nil {
		return b.sendError(chatID, "Could not complete the task", err)
	}

	log.Printf("[info] task completed id=%s recurring=%t", task.ID, task.IsRecurring())
	if task.IsRecurring() {
		return b.sendText(chatID, fmt.Sprintf("♻️ «%s» done for today. Streak is updated on the next cycle.", escape(normalizeTitle(task.Title))))
	}
	return b.sendText(chatID, fmt.Sprintf("✅ «%s» done.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if !b.isAllowed(cb.From.ID) {
		log.Printf("[warn] ignoring callback from unknown user %d", cb.From.ID)
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("[warn] callback ack: %v", err)
	}

	if id, ok := strings.CutPrefix(cb.Data, cbDonePrefix); ok && id != "" {
		log.Printf("[info] callback done user=%d task=%s", cb.From.ID, id)
		return b.completeTask(ctx, cb.Message.Chat.ID, id)
	}
	return nil
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(msg.Text) {
	case menuLabelTasks:
		return true, b.handleTasks(ctx, msg.Chat.ID)
	case menuLabelAsk:
		return true, b.handleAsk(ctx, msg.Chat.ID)
	case menuLabelNotifications:
		return true, b.handleNotifications(ctx, msg.Chat.ID)
	case menuLabelHelp:
		return true, b.handleHelp(msg.Chat.ID)
	default:
		return false, nil
	}
}

func (b *Bot) setLastAsked(chatID int64, qid string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastAsked[chatID] = qid
}

func (b *Bot) takeLastAsked(chatID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	qid, ok := b.lastAsked[chatID]
	delete(b.lastAsked, chatID)
	return qid, ok
}

func (b *Bot) sendError(chatID int64, what string, err error) error {
	log.Printf("[warn] %s: %v", strings.ToLower(what), err)
	return b.sendText(chatID, fmt.Sprintf("⚠️ %s: %s", what, escape(userMessage(err))))
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTasks),
			tgbotapi.NewKeyboardButton(menuLabelAsk),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNotifications),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

// userMessage trims wrapping noise for errors users can act on.
func userMessage(err error) string {
	var v *repository.ValidationError
	switch {
	case errors.As(err, &v):
		return v.Message
	case errors.Is(err, service.ErrNotFound):
		return "not found"
	default:
		return err.Error()
	}
}

func parseChatID(recipient string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(recipient), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q", recipient)
	}
	return id, nil
}

// parseRemindArgs splits "<when> | <text>".
func parseRemindArgs(args string) (string, string, error) {
	when, text, ok := strings.Cut(args, "|")
	when, text = strings.TrimSpace(when), strings.TrimSpace(text)
	if !ok || when == "" || text == "" {
		return "", "", errors.New("usage: /remind <when> | <text>")
	}
	return when, text, nil
}

func parseAnswerArgs(args string) (string, string, error) {
	qid, text, _ := strings.Cut(strings.TrimSpace(args), " ")
	text = strings.TrimSpace(text)
	if qid == "" || text == "" {
		return "", "", errors.New("usage: /answer <question_id> <text>")
	}
	return qid, text, nil
}

func parseProgressArgs(args string) (string, int, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "", 0, errors.New("usage: /progress <task_id> <0-100>")
	}
	pct, err := strconv.Atoi(strings.TrimSuffix(fields[1], "%"))
	if err != nil || pct < 0 || pct > 100 {
		return "", 0, errors.New("progress must be a number from 0 to 100")
	}
	return fields[0], pct, nil
}

func escape(s string) string {
	return html.EscapeString(s)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
