package whatsapp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Envelope is the delivery payload posted by the Cloud API. Only the
// fields this service reads are modeled; unknown fields are ignored.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups changes for one business account.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change carries one value object per changed field.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue holds the message and contact lists of a change.
type ChangeValue struct {
	MessagingProduct string       `json:"messaging_product"`
	Contacts         []Contact    `json:"contacts"`
	Messages         []RawMessage `json:"messages"`
}

// Contact identifies the sender profile.
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// RawMessage is one message event as delivered by the provider.
type RawMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Event is a normalized inbound message event. Non-text types are parsed
// but carry an empty Text; the processor skips them.
type Event struct {
	MessageID string
	From      string
	Name      string
	Timestamp time.Time
	Type      string
	Text      string
}

// ParseEnvelope extracts normalized message events from a raw delivery
// body. Missing optional fields (contact name, text body) are tolerated;
// a malformed body yields an error, an empty envelope yields no events.
func ParseEnvelope(body []byte) ([]Event, error) {
	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode webhook envelope: %w", err)
	}

	var events []Event
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			name := "Unknown"
			if len(value.Contacts) > 0 && value.Contacts[0].Profile.Name != "" {
				name = value.Contacts[0].Profile.Name
			}

			for _, msg := range value.Messages {
				event := Event{
					MessageID: msg.ID,
					From:      msg.From,
					Name:      name,
					Type:      msg.Type,
				}
				if secs, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil {
					event.Timestamp = time.Unix(secs, 0)
				}
				if msg.Text != nil {
					event.Text = msg.Text.Body
				}
				events = append(events, event)
			}
		}
	}

	return events, nil
}
