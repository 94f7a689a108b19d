// Package pubsub implements a Google Cloud Pub/Sub publisher.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Config selects the project and topic.
type Config struct {
	ProjectID string
	TopicID   string

	// Endpoint overrides the API endpoint, e.g. for the emulator.
	Endpoint string
}

// Publisher wraps a Pub/Sub topic.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// Dial connects to Pub/Sub and verifies that the topic exists.
func Dial(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Publisher, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(cfg.TopicID)
	ok, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check topic %s: %w", cfg.TopicID, err)
	}
	if !ok {
		_ = client.Close()
		return nil, fmt.Errorf("topic %s does not exist", cfg.TopicID)
	}
	return &Publisher{client: client, topic: topic}, nil
}

// New creates a Publisher for an existing topic handle.
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// Publish marshals the payload to JSON and publishes it to the topic. The
// topic argument becomes the "event" attribute.
func (p *Publisher) Publish(ctx context.Context, event string, payload any) (string, error) {
	if p.topic == nil {
		return "", fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data, Attributes: map[string]string{}}
	if event != "" {
		msg.Attributes["event"] = event
	}
	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Close flushes pending messages and closes the client.
func (p *Publisher) Close() error {
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client == nil {
		return nil
	}
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
