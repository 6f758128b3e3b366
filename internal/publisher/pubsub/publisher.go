// Package pubsub implements a Google Cloud Pub/Sub event publisher.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// Publisher pushes capture events to a Pub/Sub topic.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// New creates a Publisher bound to one topic.
func New(ctx context.Context, projectID, topicID string) (*Publisher, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("project id and topic id are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Publisher{
		client: client,
		topic:  client.Topic(topicID),
	}, nil
}

// Publish marshals the payload to JSON and publishes it to the topic.
func (p *Publisher) Publish(ctx context.Context, _ string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Close flushes the topic and releases the client.
func (p *Publisher) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
