package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/whatsappx/wsplbridge/internal/backend"
	"github.com/whatsappx/wsplbridge/internal/bridge"
	"github.com/whatsappx/wsplbridge/internal/config"
	"github.com/whatsappx/wsplbridge/internal/gateway"
	"github.com/whatsappx/wsplbridge/internal/handlers"
	"github.com/whatsappx/wsplbridge/internal/logger"
	"github.com/whatsappx/wsplbridge/internal/matrix"
	"github.com/whatsappx/wsplbridge/internal/server"
	"github.com/whatsappx/wsplbridge/internal/state"
	"github.com/whatsappx/wsplbridge/internal/transcode"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBackendClient,
			provideRoomDirectory,
			provideMessageCache,
			provideMuteStore,
			provideTranscoder,
			provideGateway,
			provideBridge,
			provideStatusHandler,
			provideChatsHandler,
			provideContactsHandler,
			provideGroupsHandler,
			provideMediaHandler,
			provideSendHandler,
			provideServer,
		),
		fx.Invoke(
			startGateway,
			startBridge,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideBackendClient(log *slog.Logger, cfg config.Config) (backend.Client, error) {
	if err := cfg.ValidateMatrix(); err != nil {
		return nil, err
	}
	return matrix.New(log, cfg.Matrix)
}

func provideRoomDirectory() *state.RoomDirectory { return state.NewRoomDirectory() }

func provideMessageCache() *state.MessageCache {
	return state.NewMessageCache(state.DefaultMaxMessagesPerRoom)
}

func provideMuteStore(cfg config.Config) (*state.MuteStore, error) {
	path := ""
	if cfg.Matrix.StorePath != "" {
		path = filepath.Join(cfg.Matrix.StorePath, "mutes.json")
	}
	return state.NewMuteStore(path)
}

func provideTranscoder(log *slog.Logger, cfg config.Config) *transcode.Transcoder {
	return transcode.New(log, cfg.Media)
}

func provideGateway(log *slog.Logger, cfg config.Config) *gateway.Gateway {
	return gateway.New(log, cfg.Gateway)
}

func provideBridge(log *slog.Logger, client backend.Client, gw *gateway.Gateway, trans *transcode.Transcoder, rooms *state.RoomDirectory, cache *state.MessageCache, mutes *state.MuteStore) *bridge.Service {
	return bridge.New(log, client, gw, trans, rooms, cache, mutes)
}

func provideStatusHandler(log *slog.Logger, svc *bridge.Service) *handlers.StatusHandler {
	return handlers.NewStatusHandler(log, svc)
}

func provideChatsHandler(log *slog.Logger, svc *bridge.Service) *handlers.ChatsHandler {
	return handlers.NewChatsHandler(log, svc)
}

func provideContactsHandler(log *slog.Logger, svc *bridge.Service) *handlers.ContactsHandler {
	return handlers.NewContactsHandler(log, svc)
}

func provideGroupsHandler(log *slog.Logger, svc *bridge.Service) *handlers.GroupsHandler {
	return handlers.NewGroupsHandler(log, svc)
}

func provideMediaHandler(log *slog.Logger, svc *bridge.Service) *handlers.MediaHandler {
	return handlers.NewMediaHandler(log, svc)
}

func provideSendHandler(log *slog.Logger, svc *bridge.Service) *handlers.SendHandler {
	return handlers.NewSendHandler(log, svc)
}

func provideServer(cfg config.Config, statusHandler *handlers.StatusHandler, chatsHandler *handlers.ChatsHandler, contactsHandler *handlers.ContactsHandler, groupsHandler *handlers.GroupsHandler, mediaHandler *handlers.MediaHandler, sendHandler *handlers.SendHandler) *server.Server {
	return server.NewServer(cfg.Server.Addr, statusHandler, chatsHandler, contactsHandler, groupsHandler, mediaHandler, sendHandler)
}

func startGateway(lc fx.Lifecycle, gw *gateway.Gateway) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return gw.Start(context.Background()) },
		OnStop:  func(ctx context.Context) error { return gw.Shutdown(ctx) },
	})
}

func startBridge(lc fx.Lifecycle, logger *slog.Logger, svc *bridge.Service, client backend.Client, shutdowner fx.Shutdowner) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := svc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("bridge stopped", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return client.Close()
		},
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
