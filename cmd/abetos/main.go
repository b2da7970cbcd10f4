package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/iurnickita/abetos/internal/auth"
	"github.com/iurnickita/abetos/internal/config"
	"github.com/iurnickita/abetos/internal/handler"
	"github.com/iurnickita/abetos/internal/logger"
	"github.com/iurnickita/abetos/internal/service"
	"github.com/iurnickita/abetos/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}
	defer zaplog.Sync()

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()
	zaplog.Info("store opened", zap.String("driver", cfg.Store.Driver))

	service := service.NewService(cfg.Service, store, zaplog)
	auth := auth.NewAuth(cfg.Auth, store, service, zaplog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return handler.Serve(ctx, cfg.Handler, auth, service, zaplog)
}
