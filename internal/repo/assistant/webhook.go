// Package assistant implements the AI-responder extension point as a
// webhook call-out. The core never generates replies itself: it hands the
// triggering message to an external worker, which may later inject its
// response through the normal ingest path.
package assistant

import (
	"context"
	"fmt"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/go-resty/resty/v2"

	"github.com/velora/chat-core/internal/config"
	"github.com/velora/chat-core/internal/models"
	"github.com/velora/chat-core/pkg/util"
)

type TriggerRequest struct {
	Channel *models.Channel `json:"channel"`
	Message *models.Message `json:"message"`
	Persona string          `json:"persona,omitempty"`
}

type triggerResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// WebhookResponder posts assistant triggers to the configured URL. When no
// URL is configured it degrades to a logged no-op, keeping the extension
// point inert without conditional wiring at the call sites.
type WebhookResponder struct {
	url    string
	client *resty.Client
}

func NewWebhookResponder(conf *config.Config) *WebhookResponder {
	return &WebhookResponder{
		url:    conf.Assistant.WebhookURL,
		client: util.NewRestyClient(conf.Assistant.Timeout),
	}
}

func (r *WebhookResponder) Trigger(ctx context.Context, channel *models.Channel, message *models.Message) error {
	if r.url == "" {
		log.Debugw(ctx, "assistant webhook not configured, skipping trigger",
			"channel_id", channel.ID.Hex())
		return nil
	}

	req := TriggerRequest{
		Channel: channel,
		Message: message,
	}
	if channel.Settings.AISettings != nil {
		req.Persona = channel.Settings.AISettings.Persona
	}

	var body triggerResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&body).
		Post(r.url)
	if err != nil {
		return fmt.Errorf("failed to call assistant webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("assistant webhook returned status %d", resp.StatusCode())
	}
	if !body.Accepted {
		return fmt.Errorf("assistant webhook rejected trigger: %s", body.Error)
	}

	log.Debugw(ctx, "assistant trigger delivered",
		"channel_id", channel.ID.Hex(),
		"message_id", message.ID.Hex())
	return nil
}
