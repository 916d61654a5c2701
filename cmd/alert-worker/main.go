package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Andrew-O39/expense-vista/internal/amqp"
	"github.com/Andrew-O39/expense-vista/internal/config"
	"github.com/Andrew-O39/expense-vista/internal/email"
	applog "github.com/Andrew-O39/expense-vista/internal/log"
	"github.com/Andrew-O39/expense-vista/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL must be set for the alert worker")
		os.Exit(1)
	}

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
		logger.Warn("no mail credentials configured, alerts will be logged and dropped")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("amqp connect failed", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	alertWorker := worker.NewAlertWorker(mailer, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return alertWorker.Run(ctx, amqpClient) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("worker exited", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
