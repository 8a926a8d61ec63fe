package broadcast

import (
	"context"

	"tradezone/internal/domain/repository"
	"tradezone/internal/infrastructure/pubsub"
	"tradezone/pkg/logger"
)

// Gateway publishes payloads to topic subscribers on every node.
// Publishing is fire and forget: failures are logged, never returned.
type Gateway struct {
	relay  pubsub.Relay
	nodeID string
}

func NewGateway(relay pubsub.Relay, nodeID string) *Gateway {
	return &Gateway{relay: relay, nodeID: nodeID}
}

func (g *Gateway) Publish(ctx context.Context, topic string, payload interface{}) {
	env, err := pubsub.NewEnvelope(topic, payload, g.nodeID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str(logger.FieldTopic, topic).Msg("broadcast: failed to encode payload")
		return
	}
	if err := g.relay.Publish(ctx, env); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str(logger.FieldTopic, topic).Msg("broadcast: relay publish failed")
		return
	}
	logger.Ctx(ctx).Debug().Str(logger.FieldTopic, topic).Msg("broadcast published")
}

// PublishAfterCommit defers Publish until the transaction in ctx commits.
// A rolled back transaction publishes nothing.
func (g *Gateway) PublishAfterCommit(ctx context.Context, topic string, payload interface{}) {
	repository.AfterCommit(ctx, func() {
		g.Publish(context.WithoutCancel(ctx), topic, payload)
	})
}
