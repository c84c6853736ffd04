package netsync

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// CollisionPublisher forwards collisions to systems outside the game loop.
type CollisionPublisher interface {
	PublishCollision(ctx context.Context, tick uint64, c Collision) error
}

// CollisionEvent is what RedisPublisher puts on the channel.
type CollisionEvent struct {
	Tick uint64 `msgpack:"tick"`
	A    int    `msgpack:"a"`
	B    int    `msgpack:"b"`
}

// RedisPublisher publishes collisions as msgpack on a redis channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// ConnectRedis parses url, connects and pings.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) PublishCollision(ctx context.Context, tick uint64, c Collision) error {
	payload, err := msgpack.Marshal(&CollisionEvent{Tick: tick, A: c.A, B: c.B})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

// Subscribe decodes the collision events published on the channel until ctx is done.
func (p *RedisPublisher) Subscribe(ctx context.Context) <-chan CollisionEvent {
	out := make(chan CollisionEvent)
	pubsub := p.client.Subscribe(ctx, p.channel)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event CollisionEvent
				if err := msgpack.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
