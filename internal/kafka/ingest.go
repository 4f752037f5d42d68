package kafka

import (
	"context"
	"fmt"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"go.uber.org/fx"

	"github.com/velora/chat-core/internal/models"
	"github.com/velora/chat-core/internal/usecase"
)

// IngestHandler feeds upstream chat events into the message pipeline. The
// trusted path applies: no client rate limits, but the channel must exist
// and the write is persisted before fan-out.
type IngestHandler struct {
	chat *usecase.ChatUseCase
}

func NewIngestHandler(chat *usecase.ChatUseCase) *IngestHandler {
	return &IngestHandler{chat: chat}
}

func (h *IngestHandler) HandleEvent(ctx context.Context, event *IngestEvent) error {
	channelID, err := models.ParseObjectID(event.Data.ChannelID)
	if err != nil {
		return fmt.Errorf("invalid channel id %q: %w", event.Data.ChannelID, err)
	}
	senderID, err := models.ParseObjectID(event.Data.SenderID)
	if err != nil {
		return fmt.Errorf("invalid sender id %q: %w", event.Data.SenderID, err)
	}

	message, err := h.chat.IngestMessage(ctx, channelID, senderID, event.Data.Content, event.Data.MessageType)
	if err != nil {
		return err
	}

	log.Infow(ctx, "ingested external message",
		"message_id", message.ID.Hex(),
		"channel_id", event.Data.ChannelID,
		"sender_id", event.Data.SenderID)
	return nil
}

// StartConsumer runs the consumer for the whole application lifetime. A
// consumer failure shuts the process down so the orchestrator restarts it.
func StartConsumer(lc fx.Lifecycle, sd fx.Shutdowner, consumer Consumer) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := consumer.Start(runCtx); err != nil {
					log.Errorw(runCtx, "kafka consumer stopped", "error", err)
					sd.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return consumer.Stop(ctx)
		},
	})
}
