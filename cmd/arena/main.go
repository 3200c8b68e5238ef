package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/archive"
	"github.com/park285/cheese-arena/internal/boardimg"
	appcfg "github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/httpapi"
	"github.com/park285/cheese-arena/internal/lobby"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/transport/ws"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cat, err := msgcat.New(cfg.MsgcatDir)
	if err != nil {
		logger.Fatal("msgcat_init_failed", zap.Error(err))
	}

	rec, results, closers := openArchive(cfg, logger)
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()

	lb := lobby.New(lobby.Options{
		Catalog:         cat,
		DisconnectGrace: cfg.DisconnectGrace,
		AbandonGrace:    cfg.RoomAbandon,
		IDLength:        cfg.RoomIDLength,
		MaxRooms:        cfg.MaxRooms,
		Recorder:        rec,
		Logger:          logger,
	})

	wsSrv := ws.NewServer(lb, cat, ws.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		SendBuffer:     cfg.SendBuffer,
		ReadLimit:      cfg.ReadLimitBytes,
	})
	httpSrv := &http.Server{
		Addr:              cfg.WSAddr,
		Handler:           wsSrv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		logger.Info("ws_listening", zap.String("addr", cfg.WSAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	api := httpapi.New(lb, results, boardimg.New())
	go func() {
		if err := api.Serve(ctx, cfg.HTTPAddr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal")
	case err := <-errCh:
		logger.Error("server_failed", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := wsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ws_shutdown", zap.Error(err))
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown", zap.Error(err))
	}
	lb.Close()
}

// openArchive connects every configured result sink. Sinks that fail to open are
// logged and skipped so a dead database never blocks play.
func openArchive(cfg *appcfg.AppConfig, logger *zap.Logger) (archive.Recorder, archive.Reader, []func() error) {
	var (
		sinks   archive.Multi
		reader  archive.Reader
		closers []func() error
	)

	if cfg.RedisURL != "" {
		r, err := archive.NewRedisRecorder(cfg.RedisURL, cfg.ResultsLimit, cfg.ResultsTTL)
		if err != nil {
			logger.Warn("archive_redis_unavailable", zap.Error(err))
		} else {
			sinks = append(sinks, r)
			reader = r
			closers = append(closers, r.Close)
		}
	}

	if cfg.DatabaseURL != "" {
		p, err := archive.NewPostgresRecorder(cfg.DatabaseURL)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err = p.EnsureSchema(ctx)
			cancel()
			if err != nil {
				_ = p.Close()
			}
		}
		if err != nil {
			logger.Warn("archive_postgres_unavailable", zap.Error(err))
		} else {
			sinks = append(sinks, p)
			if reader == nil {
				reader = p
			}
			closers = append(closers, p.Close)
		}
	}

	if cfg.WebhookURL != "" {
		sinks = append(sinks, archive.NewWebhookRecorder(cfg.WebhookURL, archive.WithWebhookSecret(cfg.WebhookSecret)))
	}

	if len(sinks) == 0 {
		return archive.Nop{}, archive.Nop{}, nil
	}
	if reader == nil {
		reader = archive.Nop{}
	}
	return sinks, reader, closers
}
