package usecase

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/velora/chat-core/internal/models"
	"github.com/velora/chat-core/internal/repo/mongodb"
)

type fakeUserRepo struct {
	users map[primitive.ObjectID]*models.User

	mu     sync.Mutex
	online map[primitive.ObjectID]bool
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{
		users:  make(map[primitive.ObjectID]*models.User),
		online: make(map[primitive.ObjectID]bool),
	}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) SetOnline(_ context.Context, id primitive.ObjectID, online bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online[id] = online
	return nil
}

type fakeChannelRepo struct {
	channels map[primitive.ObjectID]*models.Channel

	mu           sync.Mutex
	statsBumps   map[primitive.ObjectID]int
	lastSeenSets map[primitive.ObjectID]int
}

func newFakeChannelRepo(channels ...*models.Channel) *fakeChannelRepo {
	r := &fakeChannelRepo{
		channels:     make(map[primitive.ObjectID]*models.Channel),
		statsBumps:   make(map[primitive.ObjectID]int),
		lastSeenSets: make(map[primitive.ObjectID]int),
	}
	for _, ch := range channels {
		r.channels[ch.ID] = ch
	}
	return r
}

func (r *fakeChannelRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Channel, error) {
	ch, ok := r.channels[id]
	if !ok {
		return nil, models.ErrChannelNotFound
	}
	return ch, nil
}

func (r *fakeChannelRepo) GetChannelsForUser(_ context.Context, userID primitive.ObjectID) ([]*models.Channel, error) {
	var out []*models.Channel
	for _, ch := range r.channels {
		if ch.Member(userID) != nil {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (r *fakeChannelRepo) IncrementStats(_ context.Context, channelID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statsBumps[channelID]++
	return nil
}

func (r *fakeChannelRepo) UpdateMemberLastSeen(_ context.Context, channelID, _ primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeenSets[channelID]++
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[primitive.ObjectID]*models.Message
	lastSent map[string]time.Time
}

func newFakeMessageRepo(messages ...*models.Message) *fakeMessageRepo {
	r := &fakeMessageRepo{
		messages: make(map[primitive.ObjectID]*models.Message),
		lastSent: make(map[string]time.Time),
	}
	for _, m := range messages {
		r.messages[m.ID] = m
	}
	return r
}

func lastSentKey(channelID, senderID primitive.ObjectID) string {
	return channelID.Hex() + "/" + senderID.Hex()
}

func (r *fakeMessageRepo) Create(_ context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}
	message.CreatedAt = time.Now()
	r.messages[message.ID] = message
	r.lastSent[lastSentKey(message.ChannelID, message.SenderID)] = message.CreatedAt
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok || m.IsDeleted {
		return nil, models.ErrMessageNotFound
	}
	return m, nil
}

func (r *fakeMessageRepo) GetChannelPage(_ context.Context, channelID primitive.ObjectID, limit int, _ *primitive.ObjectID) (*mongodb.MessagePage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*models.Message
	for _, m := range r.messages {
		if m.ChannelID == channelID && !m.IsDeleted {
			all = append(all, m)
		}
	}
	page := &mongodb.MessagePage{Total: int64(len(all))}
	if len(all) > limit {
		page.Messages = all[:limit]
		page.HasMore = true
	} else {
		page.Messages = all
	}
	return page, nil
}

func (r *fakeMessageRepo) LastMessageTime(_ context.Context, channelID, senderID primitive.ObjectID) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.lastSent[lastSentKey(channelID, senderID)]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *fakeMessageRepo) AddReaction(_ context.Context, messageID primitive.ObjectID, emoji string, userID primitive.ObjectID) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageID]
	if !ok {
		return nil, models.ErrMessageNotFound
	}
	for i := range m.Reactions {
		if m.Reactions[i].Emoji != emoji {
			continue
		}
		for _, id := range m.Reactions[i].UserIDs {
			if id == userID {
				return m, nil
			}
		}
		m.Reactions[i].UserIDs = append(m.Reactions[i].UserIDs, userID)
		return m, nil
	}
	m.Reactions = append(m.Reactions, models.Reaction{Emoji: emoji, UserIDs: []primitive.ObjectID{userID}})
	return m, nil
}

func (r *fakeMessageRepo) RemoveReaction(_ context.Context, messageID primitive.ObjectID, emoji string, userID primitive.ObjectID) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageID]
	if !ok {
		return nil, models.ErrMessageNotFound
	}
	for i := range m.Reactions {
		if m.Reactions[i].Emoji != emoji {
			continue
		}
		kept := m.Reactions[i].UserIDs[:0]
		for _, id := range m.Reactions[i].UserIDs {
			if id != userID {
				kept = append(kept, id)
			}
		}
		m.Reactions[i].UserIDs = kept
		if len(kept) == 0 {
			m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
		}
		break
	}
	return m, nil
}

func (r *fakeMessageRepo) FilterIDsInChannel(_ context.Context, channelID primitive.ObjectID, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []primitive.ObjectID
	for _, id := range ids {
		if m, ok := r.messages[id]; ok && m.ChannelID == channelID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, messageID, userID primitive.ObjectID, readAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageID]
	if !ok {
		return false, models.ErrMessageNotFound
	}
	for _, receipt := range m.ReadBy {
		if receipt.UserID == userID {
			return false, nil
		}
	}
	m.ReadBy = append(m.ReadBy, models.ReadReceipt{UserID: userID, ReadAt: readAt})
	return true, nil
}

func (r *fakeMessageRepo) UpdateContent(_ context.Context, messageID primitive.ObjectID, content string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageID]
	if !ok {
		return nil, models.ErrMessageNotFound
	}
	now := time.Now()
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &now
	return m, nil
}

func (r *fakeMessageRepo) SoftDelete(_ context.Context, messageID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageID]
	if !ok {
		return models.ErrMessageNotFound
	}
	m.IsDeleted = true
	return nil
}

type publishedEvent struct {
	ChannelID primitive.ObjectID
	Except    primitive.ObjectID
	UserID    primitive.ObjectID
	Name      string
	Data      any
}

// recordingPublisher captures every fan-out call in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) BroadcastToChannel(channelID primitive.ObjectID, event string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{ChannelID: channelID, Name: event, Data: data})
}

func (p *recordingPublisher) BroadcastToChannelExcept(channelID, exceptUserID primitive.ObjectID, event string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{ChannelID: channelID, Except: exceptUserID, Name: event, Data: data})
}

func (p *recordingPublisher) SendToUser(userID primitive.ObjectID, event string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{UserID: userID, Name: event, Data: data})
}

func (p *recordingPublisher) byName(name string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Name
	}
	return out
}

type fakeAssistant struct {
	mu       sync.Mutex
	triggers []primitive.ObjectID
	done     chan struct{}
}

func newFakeAssistant() *fakeAssistant {
	return &fakeAssistant{done: make(chan struct{}, 8)}
}

func (a *fakeAssistant) Trigger(_ context.Context, _ *models.Channel, message *models.Message) error {
	a.mu.Lock()
	a.triggers = append(a.triggers, message.ID)
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *fakeAssistant) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.triggers)
}
