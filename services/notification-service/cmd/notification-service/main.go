package main

import (
	"context"
	"net/http"
	"time"

	"github.com/klinikflow/klinikflow/libs/config"
	"github.com/klinikflow/klinikflow/libs/db"
	"github.com/klinikflow/klinikflow/libs/httpx"
	"github.com/klinikflow/klinikflow/libs/kafkax"
	otelx "github.com/klinikflow/klinikflow/libs/otel"
	"github.com/klinikflow/klinikflow/libs/runtime"
	"github.com/klinikflow/klinikflow/services/notification-service/internal/consumer"
	"github.com/klinikflow/klinikflow/services/notification-service/internal/email"
	"github.com/klinikflow/klinikflow/services/notification-service/internal/inbox"
	"github.com/klinikflow/klinikflow/services/notification-service/internal/notify"
	"github.com/klinikflow/klinikflow/services/notification-service/internal/outbox"
	"github.com/klinikflow/klinikflow/services/notification-service/internal/sms"
	"github.com/klinikflow/klinikflow/services/notification-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	emailSender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@klinikflow.local"),
	)
	smsSender := sms.NewSender(
		config.String("SMS_PROVIDER", "noop"),
		config.String("SMS_WEBHOOK_URL", ""),
		config.String("SMS_WEBHOOK_TOKEN", ""),
	)

	processor := notify.NewProcessor(logger, notificationsRepo, outboxRepo, emailSender, smsSender,
		config.String("NOTIFICATION_FAIL_SUFFIX", ""))

	consumerCfg := consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topic:   config.String("KAFKA_CONSUME_TOPIC", "booking.appointment.requested.v1"),
	}
	eventConsumer := consumer.New(logger, inboxRepo, consumerCfg, processor.Handle)
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
