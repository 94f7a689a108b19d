// Package memory is a Publisher that keeps leads in process. Tests use it in
// place of Pub/Sub, and dry runs use it to see what would be sent.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Message is one accepted publish. Data holds the same JSON body the Pub/Sub
// publisher would send.
type Message struct {
	ID      string
	Event   string
	Payload any
	Data    []byte
}

// Publisher records every payload it accepts.
type Publisher struct {
	mu   sync.Mutex
	sent []Message

	// Err fails every Publish when set.
	Err error
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish encodes payload and records it under event.
func (p *Publisher) Publish(ctx context.Context, event string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", event, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	id := fmt.Sprintf("mem-%04d", len(p.sent)+1)
	p.sent = append(p.sent, Message{ID: id, Event: event, Payload: payload, Data: data})
	return id, nil
}

// Messages returns a copy of everything published so far, oldest first.
func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.sent...)
}

// Events returns the messages published under event.
func (p *Publisher) Events(event string) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Message
	for _, m := range p.sent {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}
