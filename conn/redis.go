package conn

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/timewinder-dev/blockcheck/message"
)

// RedisProvider connects workers through a Redis pub/sub channel. Each call
// to Connections uses a fresh channel so concurrent runs do not mix.
type RedisProvider struct {
	client *redis.Client
	prefix string
}

// NewRedisProvider dials the server named by url (redis://host:port/db).
func NewRedisProvider(ctx context.Context, url string) (*RedisProvider, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisProvider{client: client, prefix: "blockcheck"}, nil
}

func (p *RedisProvider) Close() error {
	return p.client.Close()
}

func (p *RedisProvider) Connections(ctx context.Context, n int) ([]Connection, error) {
	if n <= 0 {
		return nil, fmt.Errorf("cannot allocate %d connections", n)
	}
	channel := fmt.Sprintf("%s:%s", p.prefix, uuid.NewString())
	out := make([]Connection, 0, n)
	for i := 0; i < n; i++ {
		c, err := p.subscribe(ctx, channel)
		if err != nil {
			for _, c := range out {
				c.Close()
			}
			return nil, err
		}
		out = append(out, c)
	}
	log.Debug().Str("channel", channel).Int("connections", n).Msg("Redis connections ready")
	return out, nil
}

// subscribe waits for the subscription to be confirmed so that no message
// published after Connections returns can be missed.
func (p *RedisProvider) subscribe(ctx context.Context, channel string) (*redisConn, error) {
	ps := p.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", channel, err)
	}
	c := &redisConn{
		client:  p.client,
		channel: channel,
		pubsub:  ps,
		box:     newMailbox(),
	}
	go c.pump()
	return c, nil
}

type redisConn struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
	box     *mailbox
}

func (c *redisConn) pump() {
	for raw := range c.pubsub.Channel() {
		m, err := message.Decode([]byte(raw.Payload))
		if err != nil {
			log.Warn().Err(err).Str("channel", c.channel).Msg("Dropping undecodable message")
			continue
		}
		if !c.box.put(m) {
			return
		}
	}
}

func (c *redisConn) Read(ctx context.Context) (message.Message, error) {
	return c.box.take(ctx)
}

func (c *redisConn) Write(m message.Message) error {
	c.box.mu.Lock()
	closed := c.box.closed
	c.box.mu.Unlock()
	if closed {
		return ErrClosed
	}
	data, err := message.Encode(m)
	if err != nil {
		return err
	}
	return c.client.Publish(context.Background(), c.channel, string(data)).Err()
}

func (c *redisConn) IsEmpty() bool {
	return c.box.empty()
}

func (c *redisConn) Close() error {
	if !c.box.close() {
		return nil
	}
	return c.pubsub.Close()
}
