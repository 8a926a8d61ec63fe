package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"tradezone/pkg/config"
	"tradezone/pkg/logger"
)

// KafkaRelay writes every envelope to one topic keyed by destination.
// Each node consumes with its own group id so all nodes see all envelopes.
type KafkaRelay struct {
	producer *kafka.Producer
	cfg      config.KafkaConfig
	nodeID   string

	mu        sync.Mutex
	consumers []*kafka.Consumer
	doneCh    chan struct{}
}

func NewKafkaRelay(cfg config.KafkaConfig, nodeID string) (*KafkaRelay, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	k := &KafkaRelay{
		producer: p,
		cfg:      cfg,
		nodeID:   nodeID,
		doneCh:   make(chan struct{}),
	}
	go k.deliveryReportHandler()

	if err := k.ensureTopic(); err != nil {
		logger.Warn("kafka relay: failed to ensure topic %s: %v (may already exist)", cfg.Topic, err)
	}
	return k, nil
}

func (k *KafkaRelay) ensureTopic() error {
	admin, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	partitions := k.cfg.Partitions
	if partitions <= 0 {
		partitions = 3
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             k.cfg.Topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	}})
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Error.Code() != kafka.ErrNoError && r.Error.Code() != kafka.ErrTopicAlreadyExists {
			return r.Error
		}
	}
	return nil
}

func (k *KafkaRelay) deliveryReportHandler() {
	for e := range k.producer.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			logger.Warn("kafka relay: delivery failed: %v", m.TopicPartition.Error)
		}
	}
	close(k.doneCh)
}

func (k *KafkaRelay) Publish(ctx context.Context, env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	topic := k.cfg.Topic
	return k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(env.Topic),
		Value:          data,
	}, nil)
}

func (k *KafkaRelay) Subscribe(ctx context.Context) (<-chan *Envelope, error) {
	groupID := k.cfg.GroupID
	if groupID == "" {
		groupID = "tradezone"
	}

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  k.cfg.Brokers,
		"group.id":           groupID + "-" + k.nodeID,
		"auto.offset.reset":  "latest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	if err := c.Subscribe(k.cfg.Topic, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", k.cfg.Topic, err)
	}

	k.mu.Lock()
	k.consumers = append(k.consumers, c)
	k.mu.Unlock()

	out := make(chan *Envelope, subscriberBuffer)
	go k.consumeMessages(ctx, c, out)
	return out, nil
}

func (k *KafkaRelay) consumeMessages(ctx context.Context, c *kafka.Consumer, out chan<- *Envelope) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch e := c.Poll(500).(type) {
		case nil:
			continue
		case *kafka.Message:
			var env Envelope
			if err := json.Unmarshal(e.Value, &env); err != nil {
				logger.Warn("kafka relay: dropping malformed envelope: %v", err)
				continue
			}
			select {
			case out <- &env:
			case <-ctx.Done():
				return
			default:
			}
		case kafka.Error:
			logger.Error("kafka relay error: %v (code=%d fatal=%v)", e, e.Code(), e.IsFatal())
			if e.IsFatal() {
				return
			}
		}
	}
}

func (k *KafkaRelay) Close() error {
	k.mu.Lock()
	for _, c := range k.consumers {
		c.Close()
	}
	k.consumers = nil
	k.mu.Unlock()

	k.producer.Flush(5000)
	k.producer.Close()
	<-k.doneCh
	return nil
}
