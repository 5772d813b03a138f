package main

import (
	"os"
	"os/signal"
	"syscall"

	"shift-tracker-bot/internal/command"
	"shift-tracker-bot/internal/config"
	"shift-tracker-bot/internal/handler"
	"shift-tracker-bot/internal/repository"
	"shift-tracker-bot/internal/scheduler"
	"shift-tracker-bot/internal/service"
	"shift-tracker-bot/pkg/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	logger.Info("Initializing config...")
	cfg := config.GetBotConfig()

	db, err := gorm.Open(sqlite.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to get database instance:", err)
	}

	// WAL keeps readers unblocked during the scheduler's writes.
	if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Infof("Warning: failed to enable WAL mode: %v", err)
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logger.Infof("Warning: failed to enable foreign keys: %v", err)
	}

	shiftRepo, err := repository.NewGormShiftRepository(db, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create shift repository")
	}

	loaRepo, err := repository.NewGormLoARepository(db)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create leave repository")
	}

	typeRepo, err := repository.NewGormShiftTypeRepository(db)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create shift type repository")
	}

	settingsRepo, err := repository.NewGormSettingsRepository(db, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create settings repository")
	}

	auditRepo, err := repository.NewGormAuditRepository(db)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create audit repository")
	}

	client, err := telegram.NewClient(cfg.TelegramToken)
	if err != nil {
		logger.Fatal("Failed to create Telegram client:", err)
	}
	logger.Infof("Authorized on account %s", client.Bot.Self.UserName)

	audit := service.NewAuditLog(auditRepo, logger)

	// Telegram has no role system; the role-grant and member-directory
	// collaborators stay unwired until a platform that has one is used.
	shiftService := service.NewShiftService(
		shiftRepo, typeRepo, settingsRepo, nil, audit, logger, cfg.OnShiftRole)
	loaService := service.NewLoAService(
		loaRepo, client, nil, audit, logger, cfg.OnLeaveRole)
	reportService := service.NewReportService(
		shiftRepo, loaRepo, typeRepo, settingsRepo, nil, client, logger)
	settingsService := service.NewSettingsService(settingsRepo, logger)

	dispatcher := command.NewDispatcher(shiftService, loaService, reportService, settingsService, logger)
	botHandler := handler.NewHandler(client, dispatcher, cfg.AdminChatIDs, logger)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	go botHandler.HandleUpdates(client.Bot.GetUpdatesChan(updateConfig))

	sched := scheduler.New(loaService, reportService, settingsRepo, logger,
		scheduler.WithInterval(cfg.SchedulerInterval))
	if err := sched.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Shift tracker started. Press Ctrl+C to stop.")
	<-stop

	sched.Stop()

	if err := sqlDB.Close(); err != nil {
		logger.Infof("Error closing database: %v", err)
	}

	logger.Info("Shift tracker stopped gracefully")
}
