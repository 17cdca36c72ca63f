// Package queue carries inbound chat events over RabbitMQ so the webhook
// can acknowledge Meta quickly and workers route at their own pace.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"chatstore/internal/channel"
)

// InboundMessage is the payload published for every webhook event.
type InboundMessage struct {
	Event      channel.InboundEvent `json:"event"`
	ReceivedAt string               `json:"received_at"`
}

func encode(ev channel.InboundEvent, at time.Time) ([]byte, error) {
	return json.Marshal(InboundMessage{Event: ev, ReceivedAt: at.UTC().Format(time.RFC3339)})
}

func decode(body []byte) (channel.InboundEvent, error) {
	var msg InboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return channel.InboundEvent{}, fmt.Errorf("unmarshal: %w", err)
	}
	if msg.Event.From == "" {
		return channel.InboundEvent{}, fmt.Errorf("event %q has no sender", msg.Event.MessageID)
	}
	return msg.Event, nil
}
