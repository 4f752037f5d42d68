package app

import (
	"github.com/carousell/ct-go/pkg/logger"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"

	"github.com/velora/chat-core/internal/config"
	"github.com/velora/chat-core/internal/kafka"
	"github.com/velora/chat-core/internal/presence"
	"github.com/velora/chat-core/internal/repo/assistant"
	"github.com/velora/chat-core/internal/repo/mongodb"
	"github.com/velora/chat-core/internal/server"
	"github.com/velora/chat-core/internal/usecase"
	"github.com/velora/chat-core/internal/ws"
)

func Invoke(funcs ...any) *fx.App {
	log := logger.MustNamed("app")
	conf := config.MustLoad()
	log.Debugw("config loaded", log.Reflect("config", conf))
	return fx.New(
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.ZapLogger{
				Logger: log.Unwrap().Desugar(),
			}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Provide(
			newMongoDB,
			newRateLimitBank,

			presence.NewTracker,
			func(t *presence.Tracker) usecase.PresenceTracker { return t },

			ws.NewHub,
			func(h *ws.Hub) usecase.EventPublisher { return h },
			ws.NewHandler,

			assistant.NewWebhookResponder,
			func(r *assistant.WebhookResponder) usecase.AssistantResponder { return r },

			usecase.NewAuthUseCase,
			usecase.NewDirectoryUseCase,
			usecase.NewChatUseCase,

			mongodb.NewUserRepository,
			mongodb.NewChannelRepository,
			mongodb.NewMessageRepository,

			kafka.NewIngestHandler,
			func(h *kafka.IngestHandler) kafka.Ingester { return h },
			kafka.NewConsumer,

			server.NewController,
		),
		fx.Supply(conf),
		fx.Invoke(EnsureIndexes),
		fx.Invoke(funcs...),
	)
}
