package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// PubSubEmitter publishes alerts to a Pub/Sub topic so downstream systems
// (dashboards, SIEM) can consume the governance event stream.
type PubSubEmitter struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubEmitter connects to the project's topic.
func NewPubSubEmitter(ctx context.Context, projectID, topicID string) (*PubSubEmitter, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	return &PubSubEmitter{client: client, topic: client.Topic(topicID)}, nil
}

// Emit publishes the alert and waits for the server ack.
func (e *PubSubEmitter) Emit(ctx context.Context, alert Alert) error {
	b, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	res := e.topic.Publish(ctx, &pubsub.Message{
		Data: b,
		Attributes: map[string]string{
			"level": alert.Level,
			"stage": alert.Stage,
		},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (e *PubSubEmitter) Close() error {
	e.topic.Stop()
	return e.client.Close()
}
