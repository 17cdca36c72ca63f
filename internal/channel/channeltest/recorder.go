// Package channeltest provides a recording Channel for tests.
package channeltest

import (
	"context"
	"errors"
	"sync"

	"chatstore/internal/channel"
)

var ErrDeliveryFailed = errors.New("delivery failed")

type Kind string

const (
	KindText    Kind = "text"
	KindButtons Kind = "buttons"
	KindList    Kind = "list"
)

// Message is one recorded outbound send, clamped the way the real
// channel would deliver it.
type Message struct {
	Kind        Kind
	To          string
	Text        string
	Buttons     []channel.Button
	ButtonLabel string
	Sections    []channel.Section
}

// ButtonIDs lists the ids of the message buttons or list rows.
func (m Message) ButtonIDs() []string {
	var ids []string
	for _, b := range m.Buttons {
		ids = append(ids, b.ID)
	}
	for _, s := range m.Sections {
		for _, r := range s.Rows {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

type Recorder struct {
	mu       sync.Mutex
	messages []Message
	reads    []string
	failFor  map[string]bool
}

func NewRecorder() *Recorder {
	return &Recorder{failFor: map[string]bool{}}
}

// FailFor makes every send to the recipient return ErrDeliveryFailed.
func (r *Recorder) FailFor(to ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range to {
		r.failFor[t] = true
	}
}

func (r *Recorder) record(m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[m.To] {
		return ErrDeliveryFailed
	}
	r.messages = append(r.messages, m)
	return nil
}

func (r *Recorder) SendText(ctx context.Context, to, text string) error {
	return r.record(Message{Kind: KindText, To: to, Text: text})
}

func (r *Recorder) SendButtons(ctx context.Context, to, text string, buttons []channel.Button) error {
	return r.record(Message{Kind: KindButtons, To: to, Text: text, Buttons: channel.ClampButtons(buttons)})
}

func (r *Recorder) SendList(ctx context.Context, to, text, buttonLabel string, sections []channel.Section) error {
	return r.record(Message{Kind: KindList, To: to, Text: text, ButtonLabel: buttonLabel, Sections: channel.ClampSections(sections)})
}

func (r *Recorder) MarkRead(ctx context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads = append(r.reads, messageID)
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// To returns the messages sent to one recipient.
func (r *Recorder) To(to string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.messages {
		if m.To == to {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the latest message to a recipient; ok is false if none.
func (r *Recorder) Last(to string) (Message, bool) {
	msgs := r.To(to)
	if len(msgs) == 0 {
		return Message{}, false
	}
	return msgs[len(msgs)-1], true
}

func (r *Recorder) Reads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reads...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
	r.reads = nil
}
