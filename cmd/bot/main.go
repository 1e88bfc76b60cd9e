package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/PoluyanbIch/GoQuizBot/internal/config"
	"github.com/PoluyanbIch/GoQuizBot/internal/service"
	"github.com/PoluyanbIch/GoQuizBot/internal/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		logger.Fatal("telegram", zap.Error(err))
	}
	api.Debug = cfg.Debug
	logger.Info("authorised", zap.String("account", api.Self.UserName))

	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		logger.Warn("delete webhook", zap.Error(err))
	}

	// Users and stats live only as long as the process.
	users := service.NewUserRegistry()
	ledger := service.NewLedger(users)
	store := service.NewFileQuestionStore(cfg.QuestionsFile)
	quiz := service.NewQuizEngine(store, ledger)
	broadcaster := service.NewBroadcastController(service.BroadcastConfig{
		Operators:   cfg.AdminIDs,
		SendDelay:   cfg.Broadcast.SendDelay,
		CancelToken: cfg.Broadcast.CancelToken,
	}, users, telegram.NewCopier(api), logger.Named("broadcast"))

	bot := telegram.NewBot(api, telegram.Services{
		Users:     users,
		Stats:     ledger,
		Quiz:      quiz,
		Broadcast: broadcaster,
	}, cfg.WebAppURL, logger.Named("telegram"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.PollTimeout
	updates := api.GetUpdatesChan(u)

	logger.Info("bot is starting",
		zap.String("questions_file", store.Path()),
		zap.Int("operators", len(cfg.AdminIDs)))
	bot.Start(ctx, updates)

	api.StopReceivingUpdates()
	broadcaster.Wait()
	logger.Info("bot stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
