package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	btnWebApp      = "Py mini"
	btnQuiz        = "Quiz"
	btnLeaderboard = "🏆 Leaderboard"
	btnAdmin       = "⚙️ Admin"
	btnStats       = "📊 Statistics"
	btnBroadcast   = "📢 Broadcast"
	btnMainMenu    = "🔙 Main menu"

	quizCallbackPrefix = "quiz:"
)

func (b *Bot) mainKeyboard(userID int64) tgbotapi.ReplyKeyboardMarkup {
	first := tgbotapi.NewKeyboardButtonRow()
	if b.webAppURL != "" {
		first = append(first, tgbotapi.NewKeyboardButton(btnWebApp))
	}
	first = append(first, tgbotapi.NewKeyboardButton(btnQuiz), tgbotapi.NewKeyboardButton(btnLeaderboard))

	rows := [][]tgbotapi.KeyboardButton{first}
	if b.broadcast.IsOperator(userID) {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnAdmin)))
	}

	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

func adminKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnStats),
			tgbotapi.NewKeyboardButton(btnBroadcast),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnMainMenu),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}
