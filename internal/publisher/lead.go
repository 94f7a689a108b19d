// Package publisher turns kept search outcomes into lead events and hands
// them to a Publisher backend (Pub/Sub in production, memory in tests).
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/heir-finder/internal/scraper"
)

// Publisher sends one payload to a topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Lead is the event payload for one kept outcome.
type Lead struct {
	RunID       string               `json:"run_id"`
	Row         string               `json:"row"`
	Owner       string               `json:"owner"`
	SearchTerm  string               `json:"search_term"`
	Identity    scraper.Identity     `json:"identity"`
	Property    scraper.PropertyInfo `json:"property"`
	Status      scraper.Status       `json:"status"`
	ResultCount int                  `json:"result_count"`
	Fields      map[string]string    `json:"fields,omitempty"`
	Worker      int                  `json:"worker"`
	FinishedAt  time.Time            `json:"finished_at"`
}

// NewLead builds the payload for o.
func NewLead(o scraper.SearchOutcome) Lead {
	return Lead{
		RunID:       o.RunID,
		Row:         o.Item.Label,
		Owner:       o.Item.Raw,
		SearchTerm:  o.Identity.SearchTerm,
		Identity:    o.Identity,
		Property:    o.Property,
		Status:      o.Result.Status(),
		ResultCount: o.Result.Count(),
		Fields:      o.Result.Fields(),
		Worker:      o.Worker,
		FinishedAt:  o.FinishedAt,
	}
}

// Sink adapts a Publisher to scraper.OutcomeSink.
type Sink struct {
	pub   Publisher
	topic string
}

var _ scraper.OutcomeSink = (*Sink)(nil)

// NewSink returns a Sink that publishes to topic.
func NewSink(pub Publisher, topic string) (*Sink, error) {
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	return &Sink{pub: pub, topic: topic}, nil
}

// Record publishes o as a Lead.
func (s *Sink) Record(ctx context.Context, o scraper.SearchOutcome) error {
	if _, err := s.pub.Publish(ctx, s.topic, NewLead(o)); err != nil {
		return fmt.Errorf("publish lead %s: %w", o.Item.Label, err)
	}
	return nil
}
