package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	apihttp "lunchbot/internal/api/http"
	"lunchbot/internal/audit"
	"lunchbot/internal/auth"
	"lunchbot/internal/bot"
	"lunchbot/internal/deadline"
	"lunchbot/internal/notify"
	"lunchbot/internal/observability/metrics"
	orderapp "lunchbot/internal/orders/application"
	settingsrepo "lunchbot/internal/settings/infrastructure/postgres"
	settlementapp "lunchbot/internal/settlement/application"
	settlementinterfaces "lunchbot/internal/settlement/interfaces"
	"lunchbot/internal/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}
	if err := storage.EnsureSchema(context.Background(), db); err != nil {
		logger.Fatalf("schema error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	botCfg, err := bot.LoadConfig()
	if err != nil {
		logger.Fatalf("bot config error: %v", err)
	}
	loc, err := time.LoadLocation(botCfg.Timezone)
	if err != nil {
		logger.Printf("timezone %q unavailable, using UTC+8: %v", botCfg.Timezone, err)
		loc = time.FixedZone("UTC+8", 8*3600)
	}

	policy := deadline.NewPolicy(loc, settingsrepo.NewDeadlineSource(db))

	orderService, err := orderapp.NewService(db, policy, decimal.NewFromFloat(botCfg.ComboSurcharge), nil)
	if err != nil {
		logger.Fatalf("order service error: %v", err)
	}

	var notifier settlementapp.Notifier
	if cfg.PushBaseURL != "" && cfg.PushToken != "" {
		gateway, err := notify.NewPushGateway(cfg.PushBaseURL, cfg.PushToken)
		if err != nil {
			logger.Fatalf("push gateway error: %v", err)
		}
		notifier = gateway
	} else {
		logger.Printf("push credentials not set, notifications go to the log")
		logNotifier, err := notify.NewLogNotifier(logger)
		if err != nil {
			logger.Fatalf("log notifier error: %v", err)
		}
		notifier = logNotifier
	}

	engine, err := settlementapp.NewEngine(db, notifier, nil, logger)
	if err != nil {
		logger.Fatalf("settlement engine error: %v", err)
	}

	dispatcher, err := bot.NewDispatcher(db, orderService, engine, policy, botCfg, nil, logger)
	if err != nil {
		logger.Fatalf("bot dispatcher error: %v", err)
	}
	webhookHandler, err := bot.NewWebhookHandler(dispatcher, notifier, logger)
	if err != nil {
		logger.Fatalf("bot webhook error: %v", err)
	}

	if botCfg.Schedule.Enabled {
		scheduler := settlementapp.NewScheduler(engine, policy, botCfg.Schedule.DailyAt, logger)
		go scheduler.Start(context.Background())
		logger.Printf("settlement scheduled daily at %s", botCfg.Schedule.DailyAt)
	}

	authPolicy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics", "/webhook"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), authPolicy)

	mux := http.NewServeMux()
	mux.Handle("/webhook", webhookHandler)
	mux.Handle("/api/v1/settings", apihttp.NewSettingsHandler(db, auditRepo))
	mux.Handle("/api/v1/menu", apihttp.NewMenuHandler(db, auditRepo))
	mux.Handle("/api/v1/users", apihttp.NewUsersHandler(db))
	mux.Handle("/api/v1/users/", apihttp.NewDepositHandler(orderService, auditRepo))
	mux.Handle("/api/v1/orders", apihttp.NewOrdersHandler(db))
	mux.Handle("/api/v1/settlements", apihttp.NewSettleHandler(engine, policy, auditRepo))
	mux.Handle("/api/v1/settlements/", settlementinterfaces.NewReportExportHandler(db))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL string
	HTTPAddr    string
	JWTSecret   string
	PushBaseURL string
	PushToken   string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		PushBaseURL: getenvDefault("PUSH_BASE_URL", ""),
		PushToken:   getenvDefault("PUSH_ACCESS_TOKEN", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
