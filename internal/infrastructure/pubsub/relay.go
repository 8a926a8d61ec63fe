package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tradezone/pkg/config"
)

// Envelope carries one broadcast between nodes.
type Envelope struct {
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	Origin    string          `json:"origin"`
}

func NewEnvelope(topic string, payload interface{}, origin string) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Topic:     topic,
		Payload:   data,
		Timestamp: time.Now().UTC(),
		Origin:    origin,
	}, nil
}

// Relay fans envelopes out to every node. Delivery is best effort.
type Relay interface {
	Publish(ctx context.Context, env *Envelope) error
	// Subscribe returns every envelope published by any node until ctx ends.
	Subscribe(ctx context.Context) (<-chan *Envelope, error)
	Close() error
}

func NewRelay(cfg config.RelayConfig, nodeID string) (Relay, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalRelay(), nil
	case "redis":
		return NewRedisRelay(cfg.Redis)
	case "kafka":
		return NewKafkaRelay(cfg.Kafka, nodeID)
	default:
		return nil, fmt.Errorf("unsupported relay driver: %s", cfg.Driver)
	}
}
