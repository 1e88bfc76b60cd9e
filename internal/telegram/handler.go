package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/PoluyanbIch/GoQuizBot/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// API is the subset of *tgbotapi.BotAPI the bot talks to.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Services struct {
	Users     *service.UserRegistry
	Stats     *service.Ledger
	Quiz      *service.QuizEngine
	Broadcast *service.BroadcastController
}

type Bot struct {
	api       API
	users     *service.UserRegistry
	stats     *service.Ledger
	quiz      *service.QuizEngine
	broadcast *service.BroadcastController
	webAppURL string
	logger    *zap.Logger
}

func NewBot(api API, svc Services, webAppURL string, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		api:       api,
		users:     svc.Users,
		stats:     svc.Stats,
		quiz:      svc.Quiz,
		broadcast: svc.Broadcast,
		webAppURL: webAppURL,
		logger:    logger,
	}
}

// Start handles updates one at a time until ctx is done or the channel is
// closed. Broadcast fan-outs run on their own goroutines and inherit ctx.
func (b *Bot) Start(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) register(user *tgbotapi.User) {
	if b.users.Register(user.ID, user.UserName) {
		b.logger.Info("new user", zap.Int64("user_id", user.ID), zap.String("username", user.UserName))
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	user := msg.From
	chatID := msg.Chat.ID
	b.register(user)

	switch b.broadcast.Phase(user.ID) {
	case service.PhaseAwaitingMessage:
		b.handleBroadcastPayload(ctx, msg)
		return
	case service.PhaseDispatching:
		if msg.Command() == "stop" || b.broadcast.IsCancelToken(msg.Text) {
			if b.broadcast.Abort(user.ID) {
				b.sendMessage(chatID, "⏹ Stopping the broadcast...")
			}
			return
		}
	}

	switch msg.Command() {
	case "start":
		b.handleStart(chatID, user)
		return
	case "quiz":
		b.sendQuestion(ctx, chatID)
		return
	case "admin":
		b.handleAdmin(chatID, user.ID)
		return
	}

	switch msg.Text {
	case btnQuiz:
		b.sendQuestion(ctx, chatID)
	case btnLeaderboard:
		b.handleLeaderboard(chatID)
	case btnWebApp:
		b.handleWebApp(chatID, user.ID)
	case btnAdmin:
		b.handleAdmin(chatID, user.ID)
	case btnStats:
		b.handleStats(chatID, user.ID)
	case btnBroadcast:
		b.handleBroadcastStart(chatID, user.ID)
	case btnMainMenu:
		b.sendWithKeyboard(chatID, "📋 Main menu.", b.mainKeyboard(user.ID))
	default:
		b.sendWithKeyboard(chatID, "Unknown command. Use the buttons below.", b.mainKeyboard(user.ID))
	}
}

func (b *Bot) handleStart(chatID int64, user *tgbotapi.User) {
	text := fmt.Sprintf("Hello %s! Welcome.\nUse the buttons below.", html.EscapeString(user.FirstName))
	b.sendWithKeyboard(chatID, text, b.mainKeyboard(user.ID))
}

func (b *Bot) handleWebApp(chatID, userID int64) {
	if b.webAppURL == "" {
		return
	}
	url := fmt.Sprintf("%s/%d", b.webAppURL, userID)
	msg := tgbotapi.NewMessage(chatID, "Open Py mini:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(btnWebApp, url)),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("send web app link", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendQuestion(ctx context.Context, chatID int64) {
	index, q, err := b.quiz.NextQuestion(ctx)
	if errors.Is(err, service.ErrNoQuestions) {
		b.sendMessage(chatID, "No questions available right now.")
		return
	}
	if err != nil {
		b.logger.Error("load questions", zap.Error(err))
		b.sendMessage(chatID, "Questions are unavailable right now.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, option := range q.Options {
		data := fmt.Sprintf("%s%d:%d", quizCallbackPrefix, index, i)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(option, data)))
	}

	msg := tgbotapi.NewMessage(chatID, "❓ <b>Question:</b>\n"+html.EscapeString(q.Prompt))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("send question", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.From == nil {
		return
	}
	b.register(callback.From)

	if !strings.HasPrefix(callback.Data, quizCallbackPrefix) {
		b.answerCallback(callback.ID, "", false)
		return
	}

	index, option, err := parseQuizCallback(callback.Data)
	if err != nil {
		b.logger.Warn("bad quiz callback", zap.String("data", callback.Data), zap.Error(err))
		b.answerCallback(callback.ID, "Something went wrong.", false)
		return
	}

	verdict, err := b.quiz.GradeOption(ctx, callback.From.ID, index, option)
	switch {
	case errors.Is(err, service.ErrStaleQuestion):
		b.answerCallback(callback.ID, "This question is no longer available.", true)
		return
	case err != nil:
		b.logger.Error("grade answer", zap.Int64("user_id", callback.From.ID), zap.Error(err))
		b.answerCallback(callback.ID, "Something went wrong.", false)
		return
	}

	prompt := html.EscapeString(verdict.Question.Prompt)
	var alert, text string
	if verdict.Correct {
		alert = "✅ Correct!"
		text = fmt.Sprintf("✅ <b>Correct!</b>\n\nQuestion: %s\nYour answer: %s", prompt, html.EscapeString(verdict.Submitted))
	} else {
		alert = "❌ Wrong. Correct answer: " + verdict.Answer
		text = fmt.Sprintf("❌ <b>Wrong!</b>\n\nQuestion: %s\nCorrect answer: %s", prompt, html.EscapeString(verdict.Answer))
	}
	b.answerCallback(callback.ID, alert, true)

	if callback.Message == nil || callback.Message.Chat == nil {
		return
	}
	edit := tgbotapi.NewEditMessageText(callback.Message.Chat.ID, callback.Message.MessageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn("edit quiz message", zap.Int64("chat_id", callback.Message.Chat.ID), zap.Error(err))
	}
}

func parseQuizCallback(data string) (int, int, error) {
	parts := strings.Split(strings.TrimPrefix(data, quizCallbackPrefix), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected 2 fields, got %d", len(parts))
	}
	index, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("question index: %w", err)
	}
	option, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("option index: %w", err)
	}
	return index, option, nil
}

func (b *Bot) handleLeaderboard(chatID int64) {
	top := b.stats.Top(10)
	if len(top) == 0 {
		b.sendMessage(chatID, "🏆 Leaderboard\n\nNo results yet. Be the first! 🎯")
		return
	}

	var sb strings.Builder
	sb.WriteString("🏆 <b>Top 10 players</b>\n\n")
	for i, entry := range top {
		name := fmt.Sprintf("id %d", entry.UserID)
		if entry.Handle != "" {
			name = "@" + entry.Handle
		}

		medal := "🔸"
		switch i {
		case 0:
			medal = "🥇"
		case 1:
			medal = "🥈"
		case 2:
			medal = "🥉"
		}

		fmt.Fprintf(&sb, "%s %d. %s - %d%% (%d/%d)\n",
			medal, i+1, html.EscapeString(name), entry.Percentage, entry.Correct, entry.Attempts)
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("send leaderboard", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// Operator-only handlers return without a reply for everybody else.

func (b *Bot) handleAdmin(chatID, userID int64) {
	if !b.broadcast.IsOperator(userID) {
		return
	}
	b.sendWithKeyboard(chatID, "Admin panel.", adminKeyboard())
}

func (b *Bot) handleStats(chatID, userID int64) {
	if !b.broadcast.IsOperator(userID) {
		return
	}

	s := b.stats.Summarize()
	text := fmt.Sprintf(
		"📊 <b>Bot statistics</b>\n\n"+
			"👥 Users: <code>%d</code>\n"+
			"📝 Quiz answers: <code>%d</code>\n"+
			"✅ Correct: <code>%d</code>\n"+
			"❌ Wrong: <code>%d</code>\n"+
			"📈 Success rate: <code>%.2f%%</code>",
		s.TotalUsers, s.TotalAttempts, s.Correct, s.Incorrect(), s.SuccessPercent())

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("send stats", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) handleBroadcastStart(chatID, userID int64) {
	err := b.broadcast.Begin(userID)
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return
	case errors.Is(err, service.ErrBroadcastBusy):
		b.sendMessage(chatID, "A broadcast is already running. Send /stop to stop it.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"Send the message to deliver to every user (text, photo or file).\nSend '%s' to abort.",
		b.broadcast.CancelToken()))
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("send broadcast prompt", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) handleBroadcastPayload(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	operatorID := msg.From.ID
	payload := service.Payload{FromChatID: chatID, MessageID: msg.MessageID}

	// The report can arrive before the status message is sent.
	statusID := make(chan int, 1)
	onDone := func(report service.Report) {
		b.finishBroadcast(chatID, <-statusID, report)
	}

	sub, err := b.broadcast.Submit(ctx, operatorID, msg.Text, payload, onDone)
	if err != nil {
		b.logger.Warn("broadcast submit", zap.Int64("operator_id", operatorID), zap.Error(err))
		return
	}
	if sub.Cancelled {
		b.sendWithKeyboard(chatID, "Cancelled.", adminKeyboard())
		return
	}

	b.logger.Info("broadcast queued",
		zap.Int64("operator_id", operatorID),
		zap.String("job_id", sub.JobID.String()),
		zap.Int("recipients", sub.Recipients))

	status, err := b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("Sending... (%d users)", sub.Recipients)))
	if err != nil {
		b.logger.Warn("send broadcast status", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	statusID <- status.MessageID
}

func (b *Bot) finishBroadcast(chatID int64, statusID int, report service.Report) {
	text := fmt.Sprintf("✅ Done.\n\n📨 Delivered: %d\n🚫 Failed: %d\n👥 Attempted: %d",
		report.Succeeded, report.Failed, report.Recipients)
	if report.Cancelled {
		text += "\n⏹ Stopped before reaching everyone."
	}

	var sent bool
	if statusID != 0 {
		if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, statusID, text)); err == nil {
			sent = true
		} else {
			b.logger.Warn("edit broadcast status", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
	if !sent {
		b.sendMessage(chatID, text)
	}
	b.sendWithKeyboard(chatID, "Admin panel:", adminKeyboard())
}

func (b *Bot) answerCallback(id, text string, alert bool) {
	cfg := tgbotapi.NewCallback(id, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(id, text)
	}
	if _, err := b.api.Request(cfg); err != nil {
		b.logger.Warn("answer callback", zap.Error(err))
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, kb tgbotapi.ReplyKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = kb
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
