package kafka

import "time"

// PatternMessageSent is the only event pattern the ingest consumer acts
// on; everything else on the topic is skipped.
const PatternMessageSent = "message.sent"

// sourceSelf marks events this service published itself; consuming them
// again would loop.
const sourceSelf = "chat-core"

// IngestEvent is the wire format of upstream chat events.
type IngestEvent struct {
	Pattern string          `json:"pattern"`
	Source  string          `json:"source,omitempty"`
	Data    IngestEventData `json:"data"`
}

type IngestEventData struct {
	ChannelID   string    `json:"channelId"`
	SenderID    string    `json:"senderId"`
	Content     string    `json:"content"`
	MessageType string    `json:"messageType,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
