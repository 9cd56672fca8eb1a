package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

const defaultClientID = "relations"

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled   bool             `toml:"enabled"`
	Brokers   []string         `toml:"brokers"`
	ClientID  string           `toml:"client_id"`
	Version   string           `toml:"version"` // broker protocol version, e.g. 3.6.0
	Consumers []ConsumerConfig `toml:"consumers"`
}

// ConsumerConfig 单个消费者配置
type ConsumerConfig struct {
	Name          string   `toml:"name"`           // 消费者名称（用于日志）
	Group         string   `toml:"group"`          // 消费组
	Topics        []string `toml:"topics"`         // 订阅的 topics
	InitialOffset string   `toml:"initial_offset"` // oldest 或 newest，默认 oldest
}

// Validate 验证配置
func (c *KafkaConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return fmt.Errorf("brokers is required when kafka is enabled")
	}
	if c.ClientID == "" {
		c.ClientID = defaultClientID
	}
	if c.Version != "" {
		if _, err := sarama.ParseKafkaVersion(c.Version); err != nil {
			return fmt.Errorf("invalid version: %w", err)
		}
	}
	for i, consumer := range c.Consumers {
		if consumer.Group == "" {
			return fmt.Errorf("consumers[%d].group is required", i)
		}
		if len(consumer.Topics) == 0 {
			return fmt.Errorf("consumers[%d].topics is required", i)
		}
		if _, err := consumer.initialOffset(); err != nil {
			return fmt.Errorf("consumers[%d]: %w", i, err)
		}
	}
	return nil
}

func (c ConsumerConfig) initialOffset() (int64, error) {
	switch c.InitialOffset {
	case "", "oldest":
		return sarama.OffsetOldest, nil
	case "newest":
		return sarama.OffsetNewest, nil
	default:
		return 0, fmt.Errorf("invalid initial_offset: %s, must be oldest or newest", c.InitialOffset)
	}
}

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, topic string, message []byte) error

// KafkaConsumer Kafka 消费者
type KafkaConsumer struct {
	logger  *slog.Logger
	name    string
	topics  []string
	client  sarama.ConsumerGroup
	handler MessageHandler
	backoff time.Duration // pause after a failed session
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	drained chan struct{}
}

// NewKafkaConsumer 创建 Kafka 消费者
func NewKafkaConsumer(cfg KafkaConfig, config ConsumerConfig, handler MessageHandler) (*KafkaConsumer, error) {
	saramaConfig, err := newSaramaConfig(cfg, config)
	if err != nil {
		return nil, err
	}

	client, err := sarama.NewConsumerGroup(cfg.Brokers, config.Group, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	name := config.Name
	if name == "" {
		name = config.Group
	}

	return newKafkaConsumer(name, config.Topics, client, handler), nil
}

func newKafkaConsumer(name string, topics []string, client sarama.ConsumerGroup, handler MessageHandler) *KafkaConsumer {
	return &KafkaConsumer{
		logger:  slog.Default().With("module", "kafka-consumer", "name", name),
		name:    name,
		topics:  topics,
		client:  client,
		handler: handler,
		backoff: time.Second,
	}
}

func newSaramaConfig(cfg KafkaConfig, config ConsumerConfig) (*sarama.Config, error) {
	offset, err := config.initialOffset()
	if err != nil {
		return nil, err
	}

	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	if sc.ClientID == "" {
		sc.ClientID = defaultClientID
	}
	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid version: %w", err)
		}
		sc.Version = v
	}
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = offset
	sc.Consumer.Return.Errors = true

	return sc, sc.Validate()
}

// Start 启动消费者，等待首次 rebalance 完成后返回
func (c *KafkaConsumer) Start(ctx context.Context) error {
	if c == nil {
		return nil
	}

	ctx, c.cancel = context.WithCancel(ctx)

	// Return.Errors is on, so the channel must be drained until Close.
	c.drained = make(chan struct{})
	go func() {
		defer close(c.drained)
		for err := range c.client.Errors() {
			c.logger.Error("consumer group error", "error", err)
		}
	}()

	// Every session gets its own ready channel; Start only waits for the first
	// session that completes Setup.
	started := make(chan struct{})
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ready := started
		for {
			handler := &consumerGroupHandler{
				ready:   ready,
				handler: c.handler,
				logger:  c.logger,
			}

			if err := c.client.Consume(ctx, c.topics, handler); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				c.logger.Error("consumer error", "error", err)
				select {
				case <-time.After(c.backoff):
				case <-ctx.Done():
				}
			}

			if ctx.Err() != nil {
				return
			}

			if handler.setup {
				ready = make(chan struct{})
			}
		}
	}()

	// 等待消费者就绪
	select {
	case <-started:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.logger.Info("consumer started", "topics", c.topics)

	return nil
}

// Stop 停止消费者
func (c *KafkaConsumer) Stop() error {
	if c == nil {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	c.wg.Wait()

	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	if c.drained != nil {
		<-c.drained
	}
	return err
}

// consumerGroupHandler 实现 sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	ready   chan struct{}
	setup   bool
	handler MessageHandler
	logger  *slog.Logger
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.setup = true
	close(h.ready)
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			h.logger.Debug("received message",
				"topic", message.Topic,
				"partition", message.Partition,
				"offset", message.Offset,
			)

			if err := h.handler(session.Context(), message.Topic, message.Value); err != nil {
				h.logger.Error("failed to handle message",
					"topic", message.Topic,
					"offset", message.Offset,
					"error", err,
				)
				// 继续处理下一条消息，不阻塞
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
