package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Andrew-O39/expense-vista/internal/amqp"
	"github.com/Andrew-O39/expense-vista/internal/assistant"
	"github.com/Andrew-O39/expense-vista/internal/auth"
	"github.com/Andrew-O39/expense-vista/internal/config"
	"github.com/Andrew-O39/expense-vista/internal/email"
	apphttp "github.com/Andrew-O39/expense-vista/internal/http"
	"github.com/Andrew-O39/expense-vista/internal/llm"
	applog "github.com/Andrew-O39/expense-vista/internal/log"
	"github.com/Andrew-O39/expense-vista/internal/services"
	"github.com/Andrew-O39/expense-vista/internal/storage"
)

func main() {
	// .env is for local development; absent in containers.
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration invalid", applog.FieldError, err.Error())
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("open database failed", applog.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mailer email.Mailer = email.NewNoopMailer(logger)
	if cfg.GmailCredentialsJSON != "" || cfg.GmailCredentialsFile != "" {
		gmail, err := email.NewGmailSender(ctx, email.Config{
			CredentialsJSON: cfg.GmailCredentialsJSON,
			CredentialsFile: cfg.GmailCredentialsFile,
			From:            cfg.EmailFrom,
		}, logger)
		if err != nil {
			logger.Error("gmail sender init failed", applog.FieldError, err.Error())
			os.Exit(1)
		}
		mailer = gmail
	} else {
		logger.Warn("no mail credentials configured, emails will be dropped")
	}

	var publisher services.AlertPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("amqp connect failed", applog.FieldError, err.Error())
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
	} else {
		logger.Warn("AMQP_URL not set, alert notifications disabled")
	}

	var external *assistant.ExternalClassifier
	if cfg.AIEnabled() {
		completer := llm.NewClient(llm.Config{
			BaseURL: cfg.OpenAIBaseURL,
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.AIModel,
			Timeout: cfg.AITimeout,
		}, logger)
		external = assistant.NewExternalClassifier(completer, logger)
		logger.Info("external classifier enabled", "model", cfg.AIModel)
	}

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)
	accounts := services.NewAccountService(repo, issuer, mailer, cfg.FrontendURL, logger)
	alerts := services.NewAlertService(repo, publisher, logger)
	summaries := services.NewSummaryService(repo, logger)
	suggestions := services.NewSuggestionService(repo, logger)
	assistantSvc := assistant.NewService(repo, external, logger)

	server := apphttp.NewServer(apphttp.ServerConfig{
		Port:               cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, repo, accounts, alerts, summaries, suggestions, assistantSvc, issuer, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(ctx) })

	if err := g.Wait(); err != nil {
		logger.Error("server exited", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("server stopped")
}
