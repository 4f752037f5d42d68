package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/velora/chat-core/internal/models"
	"github.com/velora/chat-core/internal/presence"
	"github.com/velora/chat-core/internal/ratelimit"
	"github.com/velora/chat-core/internal/usecase"
)

// sessionFixture wires a session against the real hub and tracker but no
// storage: only dispatch paths that stop before the repositories are
// exercised here. The full flows are covered by the usecase tests.
type sessionFixture struct {
	session *Session
	client  *Client
	tracker *presence.Tracker
	limits  *ratelimit.Bank
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	tracker := presence.NewTracker()
	hub := NewHub(tracker)
	limits := ratelimit.NewBank(ratelimit.BankConfig{
		MessageBurst: 3, MessageWindow: time.Minute,
		TypingBurst: 2, TypingWindow: 10 * time.Second,
		ConnectBurst: 5, ConnectWindow: 5 * time.Minute,
	})
	t.Cleanup(limits.Close)

	chat := usecase.NewChatUseCase(
		usecase.NewDirectoryUseCase(nil, nil),
		nil, nil, nil, tracker, hub, nil,
	)

	user := &models.User{ID: primitive.NewObjectID(), Role: models.RoleClient, IsActive: true}
	client := testClient(hub, user.ID, "conn-1")
	hub.Register(client)
	session := newSession(user, "conn-1", "10.0.0.1", client, hub, chat, limits)
	client.session = session

	return &sessionFixture{session: session, client: client, tracker: tracker, limits: limits}
}

func errorMessages(t *testing.T, c *Client) []string {
	t.Helper()
	var out []string
	for _, e := range drain(t, c) {
		if e.Event != models.EventError {
			continue
		}
		payload, ok := e.Data.(map[string]any)
		require.True(t, ok)
		out = append(out, payload["message"].(string))
	}
	return out
}

func TestSessionRejectsMalformedFrame(t *testing.T) {
	f := newSessionFixture(t)

	f.session.Handle(context.Background(), []byte("not json"))

	assert.Equal(t, []string{"malformed event"}, errorMessages(t, f.client))
}

func TestSessionRejectsUnknownEvent(t *testing.T) {
	f := newSessionFixture(t)

	f.session.Handle(context.Background(), []byte(`{"event":"self_destruct","data":{}}`))

	messages := errorMessages(t, f.client)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "unknown event")
}

func TestSessionValidatesPayload(t *testing.T) {
	f := newSessionFixture(t)

	// send_message without a channel id fails validation before any lookup
	// and reports the same error code a bad-content send would
	f.session.Handle(context.Background(), []byte(`{"event":"send_message","data":{"content":"hi"}}`))

	messages := errorMessages(t, f.client)
	require.Len(t, messages, 1)
	assert.Equal(t, "invalid content", messages[0])
}

func TestSessionRateLimitsSends(t *testing.T) {
	f := newSessionFixture(t)
	frame := []byte(`{"event":"send_message","data":{"content":"hi"}}`)

	// burst of 3: the limiter is charged before validation, so three
	// validation errors then a rate limit error
	for i := 0; i < 4; i++ {
		f.session.Handle(context.Background(), frame)
	}

	messages := errorMessages(t, f.client)
	require.Len(t, messages, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, "invalid content", messages[i], "frame %d", i)
	}
	assert.Equal(t, "rate limit exceeded", messages[3])
}

func TestSessionDropsTypingSilently(t *testing.T) {
	f := newSessionFixture(t)
	channelID := primitive.NewObjectID()
	frame := []byte(fmt.Sprintf(`{"event":"typing","data":{"channelId":%q}}`, channelID.Hex()))

	// not subscribed: dropped without an error event
	f.session.Handle(context.Background(), frame)
	assert.Empty(t, drain(t, f.client))

	// over the typing budget: also silent
	for i := 0; i < 5; i++ {
		f.session.Handle(context.Background(), frame)
	}
	assert.Empty(t, drain(t, f.client))
}

func TestSessionCloseDropsConnection(t *testing.T) {
	f := newSessionFixture(t)

	f.session.Close(context.Background())
	assert.True(t, f.client.closed)
	assert.False(t, f.tracker.IsOnline(f.session.user.ID))

	// second close must not panic or double-unregister
	f.session.Close(context.Background())
}

func TestEventEnvelopeRoundTrip(t *testing.T) {
	payload, err := json.Marshal(Event{Seq: 7, Event: "new_message", Data: map[string]string{"content": "hi"}})
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, uint64(7), decoded.Seq)
	assert.Equal(t, "new_message", decoded.Event)
}
