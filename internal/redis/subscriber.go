package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe blocks delivering messages on the given channel patterns until ctx
// is cancelled or the connection fails. ready, when non-nil, is closed once the
// subscription is confirmed by the server.
func (s *Subscriber) Subscribe(ctx context.Context, patterns []string, ready chan<- struct{}, handler func(channel string, payload []byte)) error {
	sub := s.client.PSubscribe(ctx, patterns...)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("redis subscription closed")
			}
			handler(msg.Channel, []byte(msg.Payload))
		}
	}
}
