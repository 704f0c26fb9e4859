package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"cuentas-bot/internal/bot"
	"cuentas-bot/internal/config"
	"cuentas-bot/internal/keepalive"
	"cuentas-bot/internal/ledger"
	"cuentas-bot/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "configs/default.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("configuración inválida", "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.DataFile, logger)
	if err != nil {
		logger.Error("no se pudo abrir el almacenamiento", "path", cfg.DataFile, "error", err)
		os.Exit(1)
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		logger.Error("no se pudo conectar con Telegram", "error", err)
		os.Exit(1)
	}
	logger.Info("bot autorizado", "username", api.Self.UserName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := keepalive.New(cfg.HTTPPort, logger).Run(ctx); err != nil {
			logger.Error("servidor keep-alive terminó con error", "error", err)
		}
	}()

	b := bot.New(api, ledger.New(store, logger), logger, cfg.PaymentNote)
	logger.Info("bot corriendo")
	b.Run(ctx)
}
