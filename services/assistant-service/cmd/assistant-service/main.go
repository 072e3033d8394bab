package main

import (
	"context"
	"net/http"
	"time"

	"github.com/klinikflow/klinikflow/libs/config"
	"github.com/klinikflow/klinikflow/libs/db"
	"github.com/klinikflow/klinikflow/libs/httpx"
	otelx "github.com/klinikflow/klinikflow/libs/otel"
	"github.com/klinikflow/klinikflow/libs/runtime"
	"github.com/klinikflow/klinikflow/services/assistant-service/internal/handlers"
	"github.com/klinikflow/klinikflow/services/assistant-service/internal/openai"
	"github.com/klinikflow/klinikflow/services/assistant-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "assistant-service")
	port, err := config.Port("PORT", "8084")
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
	jwtSecret, err := config.RequiredString("AUTH_JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	apiKey := config.String("OPENAI_API_KEY", "")
	if apiKey == "" {
		logger.Warn("OPENAI_API_KEY not set; assistant endpoints will refuse requests")
	}
	ai := openai.NewClient(apiKey, config.String("OPENAI_BASE_URL", ""), 120*time.Second)

	assistantHandler := handlers.NewAssistantHandler(
		ai,
		storage.NewJournalRepository(pool),
		storage.NewChatRepository(pool),
		storage.NewClientRepository(pool),
		logger,
		jwtSecret,
	)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	mux.HandleFunc("/api/v1/assistant/transcribe", assistantHandler.Transcribe)
	mux.HandleFunc("/api/v1/assistant/complete", assistantHandler.Complete)
	mux.HandleFunc("/api/v1/assistant/journal/summarize", assistantHandler.SummarizeJournal)
	mux.HandleFunc("/api/v1/assistant/appointments/suggest", assistantHandler.SuggestAppointment)
	mux.HandleFunc("/api/v1/assistant/chat", assistantHandler.Chat)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		// Audio uploads: allow larger bodies than the JSON services.
		httpx.WithBodyLimit(32<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "assistant")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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
