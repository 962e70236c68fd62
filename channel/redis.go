package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
)

// RedisOptions describes the Redis connection and list layout.
type RedisOptions struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	// BlockWait bounds a single BRPOP call; the loop re-issues it until the
	// subscription ends.
	BlockWait time.Duration
	// Codec defaults to JSON.
	Codec  Codec
	Logger logging.Logger
}

// RedisChannel implements Channel on Redis lists: each topic is a list at
// "<KeyPrefix>:<topic>", publishers LPUSH and subscribers BRPOP, which gives
// FIFO order per topic. Values are encoded with the configured Codec.
//
// Lists are competing-consumer queues, so a topic should have a single
// subscriber; that holds for taskmesh where a topic names exactly one worker
// or one control plane.
type RedisChannel struct {
	client *redis.Client
	opts   RedisOptions
	logger logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func defaultRedisOptions() RedisOptions {
	return RedisOptions{
		KeyPrefix: "taskmesh",
		BlockWait: time.Second,
		Codec:     JSON(),
		Logger:    logging.NoOpLogger{},
	}
}

// NewRedisChannel creates a Redis backed channel. Call Start to verify the
// connection.
func NewRedisChannel(optFns ...func(o *RedisOptions)) (*RedisChannel, error) {
	opts := defaultRedisOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Address == "" {
		return nil, errors.New("redis channel: address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return newRedisChannel(client, opts), nil
}

// NewRedisChannelFromClient wraps an existing client. Close closes the client.
func NewRedisChannelFromClient(client *redis.Client, optFns ...func(o *RedisOptions)) *RedisChannel {
	opts := defaultRedisOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return newRedisChannel(client, opts)
}

func newRedisChannel(client *redis.Client, opts RedisOptions) *RedisChannel {
	if opts.BlockWait <= 0 {
		opts.BlockWait = time.Second
	}
	if opts.Codec == nil {
		opts.Codec = JSON()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisChannel{
		client: client,
		opts:   opts,
		logger: logging.OrNoOp(opts.Logger),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start pings the server.
func (c *RedisChannel) Start(ctx context.Context) error {
	if c.isClosed() {
		return core.ErrChannelClosed
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis %s: %w", c.opts.Address, err)
	}
	return nil
}

// Publish implements Channel.
func (c *RedisChannel) Publish(ctx context.Context, topic string, env core.Envelope) error {
	if c.isClosed() {
		return core.ErrChannelClosed
	}
	data, err := c.opts.Codec.Marshal(env)
	if err != nil {
		return err
	}
	if err := c.client.LPush(ctx, c.key(topic), data).Err(); err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return core.ErrChannelClosed
		}
		return fmt.Errorf("redis publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe implements Channel.
func (c *RedisChannel) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, core.ErrChannelClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	stopOnClose := context.AfterFunc(c.ctx, cancel)
	out := make(chan core.Envelope)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(out)
		defer stopOnClose()
		c.consume(subCtx, topic, out)
	}()

	return newSubscription(topic, out, cancel), nil
}

func (c *RedisChannel) consume(ctx context.Context, topic string, out chan<- core.Envelope) {
	key := c.key(topic)
	for {
		if ctx.Err() != nil {
			return
		}
		values, err := c.client.BRPop(ctx, c.opts.BlockWait, key).Result()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			c.logger.Warn("channel.redis.pop.error", "topic", topic, "error", err.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if len(values) != 2 {
			continue
		}
		env, err := c.opts.Codec.Unmarshal([]byte(values[1]))
		if err != nil {
			c.logger.Warn("channel.redis.decode.error", "topic", topic, "error", err.Error())
			continue
		}
		select {
		case out <- env:
		case <-ctx.Done():
			// Put the envelope back so it is not lost for the next subscriber.
			_ = c.client.RPush(context.Background(), key, values[1]).Err()
			return
		}
	}
}

// Close stops every subscription and closes the client.
func (c *RedisChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

func (c *RedisChannel) key(topic string) string {
	if c.opts.KeyPrefix == "" {
		return topic
	}
	return c.opts.KeyPrefix + ":" + topic
}

func (c *RedisChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
