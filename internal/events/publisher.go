package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/MrJamesThe3rd/accountbook/internal/ledger"
)

// Publisher appends balance events to a Redis list for downstream
// consumers.
type Publisher struct {
	client redis.Cmdable
	key    string
}

func NewPublisher(client redis.Cmdable, key string) *Publisher {
	return &Publisher{client: client, key: key}
}

func (p *Publisher) Publish(ctx context.Context, e ledger.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	if err := p.client.RPush(ctx, p.key, data).Err(); err != nil {
		return fmt.Errorf("pushing event to %s: %w", p.key, err)
	}

	return nil
}
