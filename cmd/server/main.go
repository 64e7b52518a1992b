// Command server runs the bakery automation backend: the HTTP API (order
// webhook, chat widget, automation admin) plus the three background pollers
// that drive the timer-based automations.
//
// Startup order:
//  1. Load .env (best effort) and environment configuration
//  2. Configure zerolog (level, optional pretty console output)
//  3. Open SQLite, run migrations, seed the automation registry
//  4. Configure OpenTelemetry tracing (when enabled)
//  5. Wire services, start pollers, serve HTTP
//
// Shutdown is signal-driven (SIGINT/SIGTERM): the pollers stop via context
// cancellation and the HTTP server drains in-flight requests.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/avelkos/go-bakery-backend/internal/config"
	httpapi "github.com/avelkos/go-bakery-backend/internal/http"
	"github.com/avelkos/go-bakery-backend/internal/observability"
	"github.com/avelkos/go-bakery-backend/internal/repo"
	"github.com/avelkos/go-bakery-backend/internal/scheduler"
	"github.com/avelkos/go-bakery-backend/internal/services"
	"github.com/avelkos/go-bakery-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Local development convenience; production supplies real env vars.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := repo.SeedAutomationConfigs(ctx, db, services.DefaultAutomationConfigs()); err != nil {
		log.Fatal().Err(err).Msg("seed automation registry")
	}

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("configure tracing")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	// Service wiring.
	notifier := services.NewLogNotifier(log.Logger)
	marker := sysutil.FirstNonEmpty(cfg.EscalationMarker, services.DefaultEscalationMarker)
	responder := services.StaticResponder{Marker: marker}
	chatSvc := services.NewChatService(db, responder, log.Logger)
	chatSvc.EscalationMarker = marker
	referralSvc := services.NewReferralService(db, notifier,
		decimal.NewFromFloat(cfg.ReferralStandardRate),
		decimal.NewFromFloat(cfg.ReferralAffiliateRate),
		log.Logger)
	engine := services.NewEngine(db, notifier, chatSvc, referralSvc, cfg.OperatorEmail, log.Logger)

	// Timer-driven triggers.
	pollers := []*scheduler.Poller{
		scheduler.New("frequent", cfg.FrequentInterval, engine.RunFrequent, log.Logger),
		scheduler.New("daily", cfg.DailyInterval, engine.RunDaily, log.Logger),
		scheduler.New("weekly", cfg.WeeklyInterval, engine.RunWeekly, log.Logger),
	}
	pollersDone := make(chan struct{})
	go func() {
		defer close(pollersDone)
		done := make(chan struct{}, len(pollers))
		for _, p := range pollers {
			p := p
			go func() {
				defer func() { done <- struct{}{} }()
				_ = p.Run(ctx)
			}()
		}
		for range pollers {
			<-done
		}
	}()

	// HTTP transport.
	r := gin.New()
	httpapi.RegisterRoutes(r, db, engine, chatSvc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	<-pollersDone
	log.Info().Msg("bye")
}
