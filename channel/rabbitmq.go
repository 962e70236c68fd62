package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
)

// RabbitMQOptions describes the broker connection and queue layout.
type RabbitMQOptions struct {
	URL         string
	QueuePrefix string
	Prefetch    int
	Durable     bool
	AutoDelete  bool
	// Codec defaults to JSON.
	Codec  Codec
	Logger logging.Logger
}

// RabbitMQChannel implements Channel on RabbitMQ. Each topic maps to a queue
// "<QueuePrefix>.<topic>" bound to the default exchange; bodies are encoded
// with the configured Codec. Subscriptions use their own AMQP channel with manual acks so an
// envelope is only acknowledged once handed to the subscriber.
type RabbitMQChannel struct {
	opts   RabbitMQOptions
	logger logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	conn     *amqp.Connection
	pub      *amqp.Channel
	declared map[string]bool
	closed   bool
}

// NewRabbitMQChannel creates a RabbitMQ backed channel. The connection is
// established by Start.
func NewRabbitMQChannel(optFns ...func(o *RabbitMQOptions)) (*RabbitMQChannel, error) {
	opts := RabbitMQOptions{
		QueuePrefix: "taskmesh",
		Prefetch:    1,
		AutoDelete:  true,
		Codec:       JSON(),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = JSON()
	}
	if opts.URL == "" {
		return nil, errors.New("rabbitmq channel: url is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RabbitMQChannel{
		opts:     opts,
		logger:   logging.OrNoOp(opts.Logger),
		ctx:      ctx,
		cancel:   cancel,
		declared: make(map[string]bool),
	}, nil
}

// Start dials the broker and opens the publishing channel.
func (c *RabbitMQChannel) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrChannelClosed
	}
	if c.conn != nil {
		return nil
	}
	conn, err := amqp.Dial(c.opts.URL)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	pub, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	c.conn = conn
	c.pub = pub
	return nil
}

// Publish implements Channel.
func (c *RabbitMQChannel) Publish(ctx context.Context, topic string, env core.Envelope) error {
	data, err := c.opts.Codec.Marshal(env)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrChannelClosed
	}
	if c.pub == nil {
		return errors.New("rabbitmq channel: not started")
	}
	queue, err := c.declare(c.pub, topic)
	if err != nil {
		return err
	}
	err = c.pub.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:   c.opts.Codec.ContentType(),
		CorrelationId: env.CorrelationID,
		Type:          string(env.Kind),
		Timestamp:     env.Timestamp,
		Body:          data,
	})
	if err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			return core.ErrChannelClosed
		}
		return fmt.Errorf("rabbitmq publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe implements Channel.
func (c *RabbitMQChannel) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, core.ErrChannelClosed
	}
	if c.conn == nil {
		return nil, errors.New("rabbitmq channel: not started")
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if c.opts.Prefetch > 0 {
		if err := ch.Qos(c.opts.Prefetch, 0, false); err != nil {
			ch.Close()
			return nil, fmt.Errorf("set rabbitmq qos: %w", err)
		}
	}
	queue, err := c.declare(ch, topic)
	if err != nil {
		ch.Close()
		return nil, err
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consume rabbitmq queue %s: %w", queue, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	stopOnClose := context.AfterFunc(c.ctx, cancel)
	out := make(chan core.Envelope)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(out)
		defer stopOnClose()
		defer ch.Close()
		for {
			select {
			case <-subCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				env, err := c.opts.Codec.Unmarshal(d.Body)
				if err != nil {
					c.logger.Warn("channel.rabbitmq.decode.error", "topic", topic, "error", err.Error())
					_ = d.Nack(false, false)
					continue
				}
				select {
				case out <- env:
					_ = d.Ack(false)
				case <-subCtx.Done():
					_ = d.Nack(false, true)
					return
				}
			}
		}
	}()

	return newSubscription(topic, out, cancel), nil
}

// Close stops every subscription and closes the connection.
func (c *RabbitMQChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pub != nil {
		_ = c.pub.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// declare makes sure the queue for topic exists. Caller holds c.mu.
func (c *RabbitMQChannel) declare(ch *amqp.Channel, topic string) (string, error) {
	name := topic
	if c.opts.QueuePrefix != "" {
		name = c.opts.QueuePrefix + "." + topic
	}
	if c.declared[name] {
		return name, nil
	}
	if _, err := ch.QueueDeclare(name, c.opts.Durable, c.opts.AutoDelete, false, false, nil); err != nil {
		return "", fmt.Errorf("declare rabbitmq queue %s: %w", name, err)
	}
	c.declared[name] = true
	return name, nil
}
