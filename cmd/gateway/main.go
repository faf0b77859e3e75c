// Command gateway is the composition root: it loads configuration, wires
// every component named in spec.md §4 in dependency order, and serves the
// HTTP/WebSocket edge until an interrupt signal requests a graceful
// shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wa-gateway/internal/config"
	"wa-gateway/internal/eventbus"
	"wa-gateway/internal/httpapi"
	"wa-gateway/internal/limitguard"
	"wa-gateway/internal/logger"
	"wa-gateway/internal/outboundqueue"
	"wa-gateway/internal/reconnect"
	"wa-gateway/internal/registry"
	"wa-gateway/internal/store/gormstore"
	"wa-gateway/internal/supervisor"
	"wa-gateway/internal/usage"
	"wa-gateway/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	log.Info("starting wa-gateway")

	conn, err := gormstore.NewConnection(cfg)
	if err != nil {
		log.WithError(err).Error("failed to connect to database")
		os.Exit(1)
	}
	defer conn.Close()

	if err := conn.Migrate(); err != nil {
		log.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}

	st := gormstore.New(conn)

	reg := registry.New()
	bus := eventbus.New()

	meter := usage.New(st, log)
	guard := limitguard.New(st)

	webhookCfg := webhook.Config{
		Timeout:        cfg.Webhook.Timeout,
		MaxRetries:     cfg.Webhook.MaxRetries,
		RetryBaseDelay: cfg.Webhook.RetryBaseDelay,
	}
	dispatcher := webhook.New(webhookCfg, st, st, cfg.Webhook.Secret, log)
	resyncer := webhook.NewResyncer(st, dispatcher, st, cfg.Webhook.ResyncInterval, cfg.Webhook.ResyncBatchSize, log)

	reconnectCfg := reconnect.Config{
		MaxAttempts:    cfg.Reconnect.MaxAttempts,
		BaseDelay:      cfg.Reconnect.BaseDelay,
		MaxDelay:       cfg.Reconnect.MaxDelay,
		RateLimitDelay: cfg.Reconnect.RateLimitDelay,
	}

	// The Supervisor and Reconnection Controller depend on each other
	// (Supervisor notifies on disconnect, Controller recreates sessions and
	// reports status through the Supervisor, which itself notifies the
	// Controller on disconnect), so the Controller is built first against a
	// Supervisor reference that's filled in immediately after.
	var sup *supervisor.Supervisor
	supRef := supervisorRef{&sup}
	reconnectController := reconnect.New(reconnectCfg, st, supRef, supRef, log)

	sup = supervisor.New(
		supervisor.Config{DatabaseURL: cfg.Database.URL, WALogLevel: cfg.Logging.Level},
		st, reg, bus, reconnectController, dispatcher, meter, log,
	)

	queueCfg := outboundqueue.Config{
		MessagesPerMinute:   cfg.Queue.MessagesPerMinute,
		DelayBetweenSends:   cfg.Queue.DelayBetweenSends,
		MaxAttempts:         cfg.Queue.MaxAttempts,
		RetryDelay:          cfg.Queue.RetryDelay,
		BucketExhaustedWait: cfg.Queue.BucketExhaustedWait,
	}
	queue := outboundqueue.New(queueCfg, sup, sup, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.RestoreAll(ctx)
	resyncer.Start(ctx)

	router := httpapi.NewRouter(httpapi.Deps{
		Config:     cfg,
		Store:      st,
		Supervisor: sup,
		Queue:      queue,
		Guard:      guard,
		Bus:        bus,
		Log:        log,
		StartedAt:  time.Now(),
	})

	srv := &http.Server{
		Addr:    cfg.ServerAddress(),
		Handler: router,
	}

	go func() {
		log.InfoWithFields("http server listening", logger.Fields{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	resyncer.Stop()
	reconnectController.CancelAll()
	queue.StopAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server forced to shutdown")
	}

	log.Info("shutdown complete")
}

// supervisorRef adapts a *supervisor.Supervisor, resolved after the
// Reconnection Controller is constructed, to reconnect.Creator and
// reconnect.StatusSetter - it reads through the pointer on every call
// rather than capturing a nil value.
type supervisorRef struct {
	sup **supervisor.Supervisor
}

func (r supervisorRef) Recreate(ctx context.Context, sessionID string) error {
	return (*r.sup).Recreate(ctx, sessionID)
}

func (r supervisorRef) SetConnecting(ctx context.Context, sessionID string) error {
	return (*r.sup).SetConnecting(ctx, sessionID)
}

func (r supervisorRef) SetError(ctx context.Context, sessionID, reason string) error {
	return (*r.sup).SetError(ctx, sessionID, reason)
}
