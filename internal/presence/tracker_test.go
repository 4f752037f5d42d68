package presence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRegisterAndSubscriptions(t *testing.T) {
	tr := NewTracker()
	user := primitive.NewObjectID()
	ch1 := primitive.NewObjectID()
	ch2 := primitive.NewObjectID()

	assert.False(t, tr.IsOnline(user))

	tr.Register(user, "conn-1")
	tr.AddSubscription(user, ch1)
	tr.AddSubscription(user, ch2)

	assert.True(t, tr.IsOnline(user))
	assert.True(t, tr.IsSubscribed(user, ch1))
	assert.Equal(t, 1, tr.ChannelSize(ch1))
	assert.ElementsMatch(t, []primitive.ObjectID{ch1, ch2}, tr.Subscriptions(user))

	tr.RemoveSubscription(user, ch1)
	assert.False(t, tr.IsSubscribed(user, ch1))
	assert.Equal(t, 0, tr.ChannelSize(ch1))
}

func TestSecondConnectionSharesSubscriptions(t *testing.T) {
	tr := NewTracker()
	user := primitive.NewObjectID()
	ch := primitive.NewObjectID()

	tr.Register(user, "conn-1")
	tr.AddSubscription(user, ch)

	// A second tab joins the existing channel set rather than resetting it.
	tr.Register(user, "conn-2")
	assert.True(t, tr.IsOnline(user))
	assert.True(t, tr.IsSubscribed(user, ch))
	assert.Equal(t, 1, tr.ChannelSize(ch))
}

func TestClosingOneTabLeavesUserOnline(t *testing.T) {
	tr := NewTracker()
	user := primitive.NewObjectID()
	ch := primitive.NewObjectID()

	tr.Register(user, "conn-1")
	tr.AddSubscription(user, ch)
	tr.Register(user, "conn-2")

	// Closing the newer tab must not take down the older session.
	assert.False(t, tr.Unregister(user, "conn-2"))
	assert.True(t, tr.IsOnline(user))
	assert.True(t, tr.IsSubscribed(user, ch))
	assert.Contains(t, tr.ChannelMembers(ch), user)

	// Only the last connection going away flips the user offline.
	assert.True(t, tr.Unregister(user, "conn-1"))
	assert.False(t, tr.IsOnline(user))
	assert.Empty(t, tr.Subscriptions(user))
}

func TestUnregisterIgnoresUnknownConnection(t *testing.T) {
	tr := NewTracker()
	user := primitive.NewObjectID()

	tr.Register(user, "conn-1")

	// A disconnect for a connection id we never saw is a no-op.
	assert.False(t, tr.Unregister(user, "conn-0"))
	assert.True(t, tr.IsOnline(user))

	assert.True(t, tr.Unregister(user, "conn-1"))
	assert.False(t, tr.IsOnline(user))

	// Double disconnect is a no-op.
	assert.False(t, tr.Unregister(user, "conn-1"))
}

func TestChannelMembers(t *testing.T) {
	tr := NewTracker()
	ch := primitive.NewObjectID()
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	c := primitive.NewObjectID()

	tr.Register(a, "conn-a")
	tr.Register(b, "conn-b")
	tr.Register(c, "conn-c")
	tr.AddSubscription(a, ch)
	tr.AddSubscription(b, ch)

	assert.ElementsMatch(t, []primitive.ObjectID{a, b}, tr.ChannelMembers(ch))
	assert.ElementsMatch(t, []primitive.ObjectID{a, b, c}, tr.OnlineUsers())
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	tr := NewTracker()
	ch := primitive.NewObjectID()
	users := make([]primitive.ObjectID, 32)
	for i := range users {
		users[i] = primitive.NewObjectID()
	}

	var wg sync.WaitGroup
	for i, user := range users {
		wg.Add(1)
		go func(i int, user primitive.ObjectID) {
			defer wg.Done()
			tr.Register(user, "conn")
			tr.AddSubscription(user, ch)
			if i%2 == 0 {
				tr.Unregister(user, "conn")
			}
		}(i, user)
	}
	wg.Wait()

	assert.Equal(t, len(users)/2, tr.ChannelSize(ch))
}
