package main

import (
	"context"
	"fmt"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"match-relay/applog"
	"match-relay/config"
	"match-relay/presence"
	"match-relay/registry"
	"match-relay/relay"
	"match-relay/server"
	"match-relay/session"
	"match-relay/util"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer cancel()

	cfg := config.NewFromFlags()
	if err := applog.Initialize(cfg.LogLevel, cfg.LogPath); err != nil {
		fmt.Printf("Failed to initialize app logger: %v\n", err)
	}

	defer applog.Shutdown()
	defer util.WrapAppContextCancelExitMessage(ctx, "Match-relay")

	if err := cfg.Validate(); err != nil {
		applog.Error("Failed to validate command line arguments", zap.Error(err))
		return
	}

	applog.LogStartup(cfg)

	sessions := session.NewClient(cfg.AuthApiRoot, cfg.AuthApiToken)
	defer func() {
		_ = sessions.Close()
	}()

	clk := clock.New()
	reg := registry.New(clk)
	tracker := presence.NewTracker()
	engine := relay.NewEngine(reg, cfg.PingInterval, clk)

	srv := server.New(cfg, sessions, reg, engine, tracker)
	if err := srv.Run(ctx); err != nil {
		applog.Error("Relay server exited with error", zap.Error(err))
	}
}
