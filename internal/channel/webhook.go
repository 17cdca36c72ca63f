package channel

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// webhookPayload mirrors the parts of the Cloud API notification we read.
type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					ID   string `json:"id"`
					From string `json:"from"`
					Type string `json:"type"`
					Text *struct {
						Body string `json:"body"`
					} `json:"text"`
					Interactive *struct {
						Type        string `json:"type"`
						ButtonReply *struct {
							ID string `json:"id"`
						} `json:"button_reply"`
						ListReply *struct {
							ID string `json:"id"`
						} `json:"list_reply"`
					} `json:"interactive"`
					Button *struct {
						Payload string `json:"payload"`
						Text    string `json:"text"`
					} `json:"button"`
					Image *Attachment `json:"image"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseWebhook extracts inbound messages from a notification body.
// Status callbacks carry no messages and yield an empty slice.
func ParseWebhook(body []byte) ([]InboundEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("parse webhook: %w", err)
	}
	var events []InboundEvent
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				ev := InboundEvent{MessageID: m.ID, From: m.From, Type: m.Type}
				switch {
				case m.Text != nil:
					ev.Text = m.Text.Body
				case m.Interactive != nil:
					ev.Type = TypeInteractive
					if m.Interactive.ButtonReply != nil {
						ev.ButtonReplyID = m.Interactive.ButtonReply.ID
					}
					if m.Interactive.ListReply != nil {
						ev.ListReplyID = m.Interactive.ListReply.ID
					}
				case m.Button != nil:
					// quick-reply buttons on template messages
					ev.Type = TypeInteractive
					ev.ButtonReplyID = m.Button.Payload
					ev.Text = m.Button.Text
				case m.Image != nil:
					ev.Type = TypeImage
					ev.Image = m.Image
				}
				events = append(events, ev)
			}
		}
	}
	return events, nil
}

// VerifySignature checks an X-Hub-Signature-256 header ("sha256=<hex>").
func VerifySignature(secret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// Sign returns the X-Hub-Signature-256 value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
