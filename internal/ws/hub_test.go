package ws

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/velora/chat-core/internal/presence"
)

func testClient(hub *Hub, userID primitive.ObjectID, connectionID string) *Client {
	return &Client{
		hub:          hub,
		userID:       userID,
		connectionID: connectionID,
		send:         make(chan []byte, sendBufferSize),
	}
}

func drain(t *testing.T, c *Client) []Event {
	t.Helper()
	var out []Event
	for {
		select {
		case payload := <-c.send:
			var e Event
			require.NoError(t, json.Unmarshal(payload, &e))
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestBroadcastReachesSubscribedUsers(t *testing.T) {
	tracker := presence.NewTracker()
	hub := NewHub(tracker)
	channelID := primitive.NewObjectID()

	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()
	outsider := primitive.NewObjectID()

	for _, u := range []primitive.ObjectID{alice, bob} {
		tracker.Register(u, "conn-"+u.Hex())
		tracker.AddSubscription(u, channelID)
	}
	tracker.Register(outsider, "conn-x")

	aliceClient := testClient(hub, alice, "conn-a")
	bobClient := testClient(hub, bob, "conn-b")
	outsiderClient := testClient(hub, outsider, "conn-x")
	hub.Register(aliceClient)
	hub.Register(bobClient)
	hub.Register(outsiderClient)

	hub.BroadcastToChannel(channelID, "new_message", map[string]string{"content": "hi"})

	require.Len(t, drain(t, aliceClient), 1)
	require.Len(t, drain(t, bobClient), 1)
	assert.Empty(t, drain(t, outsiderClient))
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	tracker := presence.NewTracker()
	hub := NewHub(tracker)
	channelID := primitive.NewObjectID()

	sender := primitive.NewObjectID()
	other := primitive.NewObjectID()
	for _, u := range []primitive.ObjectID{sender, other} {
		tracker.Register(u, "conn-"+u.Hex())
		tracker.AddSubscription(u, channelID)
	}

	senderClient := testClient(hub, sender, "conn-s")
	otherClient := testClient(hub, other, "conn-o")
	hub.Register(senderClient)
	hub.Register(otherClient)

	hub.BroadcastToChannelExcept(channelID, sender, "user_typing", nil)

	assert.Empty(t, drain(t, senderClient))
	assert.Len(t, drain(t, otherClient), 1)
}

func TestSendToUserFansOutToAllConnections(t *testing.T) {
	tracker := presence.NewTracker()
	hub := NewHub(tracker)
	userID := primitive.NewObjectID()

	tab1 := testClient(hub, userID, "conn-1")
	tab2 := testClient(hub, userID, "conn-2")
	hub.Register(tab1)
	hub.Register(tab2)
	assert.Equal(t, 2, hub.Connections(userID))

	hub.SendToUser(userID, "mention_notification", nil)

	assert.Len(t, drain(t, tab1), 1)
	assert.Len(t, drain(t, tab2), 1)

	// unknown user is a silent no-op
	hub.SendToUser(primitive.NewObjectID(), "mention_notification", nil)
}

func TestSequenceNumbersIncreaseInBroadcastOrder(t *testing.T) {
	tracker := presence.NewTracker()
	hub := NewHub(tracker)
	channelID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	tracker.Register(userID, "conn-1")
	tracker.AddSubscription(userID, channelID)

	client := testClient(hub, userID, "conn-1")
	hub.Register(client)

	for i := 0; i < 5; i++ {
		hub.BroadcastToChannel(channelID, "new_message", i)
	}

	events := drain(t, client)
	require.Len(t, events, 5)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq)
	}
}

func TestConcurrentBroadcastsDeliverInSequenceOrder(t *testing.T) {
	tracker := presence.NewTracker()
	hub := NewHub(tracker)
	channelID := primitive.NewObjectID()

	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()
	for _, u := range []primitive.ObjectID{alice, bob} {
		tracker.Register(u, "conn-"+u.Hex())
		tracker.AddSubscription(u, channelID)
	}

	aliceClient := testClient(hub, alice, "conn-a")
	bobClient := testClient(hub, bob, "conn-b")
	hub.Register(aliceClient)
	hub.Register(bobClient)

	const senders = 4
	const perSender = 50
	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				hub.BroadcastToChannel(channelID, "new_message", i)
			}
		}()
	}
	wg.Wait()

	aliceEvents := drain(t, aliceClient)
	bobEvents := drain(t, bobClient)
	require.Len(t, aliceEvents, senders*perSender)
	require.Len(t, bobEvents, senders*perSender)

	for i := 1; i < len(aliceEvents); i++ {
		require.Greater(t, aliceEvents[i].Seq, aliceEvents[i-1].Seq)
	}
	for i := range aliceEvents {
		assert.Equal(t, aliceEvents[i].Seq, bobEvents[i].Seq)
	}
}

func TestUnregisterDropsOnlyThatConnection(t *testing.T) {
	tracker := presence.NewTracker()
	hub := NewHub(tracker)
	userID := primitive.NewObjectID()

	tab1 := testClient(hub, userID, "conn-1")
	tab2 := testClient(hub, userID, "conn-2")
	hub.Register(tab1)
	hub.Register(tab2)

	hub.Unregister(tab1)
	assert.Equal(t, 1, hub.Connections(userID))

	// double unregister is safe
	hub.Unregister(tab1)
	assert.Equal(t, 1, hub.Connections(userID))

	hub.SendToUser(userID, "mention_notification", nil)
	assert.Len(t, drain(t, tab2), 1)
	assert.True(t, tab1.closed)
}

func TestEnqueueAfterShutdownIsSafe(t *testing.T) {
	hub := NewHub(presence.NewTracker())
	client := testClient(hub, primitive.NewObjectID(), "conn-1")
	hub.Register(client)
	hub.Unregister(client)

	// must not panic on the closed channel
	client.enqueue([]byte(`{}`))
}
