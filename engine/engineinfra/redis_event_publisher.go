package engineinfra

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
	"github.com/go-redis/redis/v8"
)

// DefaultEventsChannel canal de pub/sub para message.created
const DefaultEventsChannel = "flowpilot:events"

// MessageCreatedEvent payload publicado por cada item del bot
type MessageCreatedEvent struct {
	Event          string                  `json:"event"`
	TenantID       kernel.TenantID         `json:"tenant_id"`
	ConversationID kernel.ConversationID   `json:"conversation_id"`
	Item           engine.ConversationItem `json:"item"`
}

// RedisEventPublisher publica eventos para la capa de entrega (websockets,
// webhooks). Fire-and-forget: sin suscriptores el evento se pierde.
type RedisEventPublisher struct {
	redis   *redis.Client
	channel string
}

var _ engine.EventPublisher = (*RedisEventPublisher)(nil)

func NewRedisEventPublisher(client *redis.Client, channel string) *RedisEventPublisher {
	if channel == "" {
		channel = DefaultEventsChannel
	}
	return &RedisEventPublisher{redis: client, channel: channel}
}

func (p *RedisEventPublisher) PublishMessageCreated(ctx context.Context, tenantID kernel.TenantID, item engine.ConversationItem) error {
	data, err := json.Marshal(MessageCreatedEvent{
		Event:          "message.created",
		TenantID:       tenantID,
		ConversationID: item.ConversationID,
		Item:           item,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	receivers, err := p.redis.Publish(ctx, p.channel, data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Printf("📤 message.created %s published to %d receivers", item.ID, receivers)
	return nil
}
