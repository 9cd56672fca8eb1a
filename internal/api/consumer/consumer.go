package consumer

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/relations/pkg/log"
	"github.com/Zereker/relations/pkg/mq"
	"github.com/Zereker/relations/pkg/store"
)

// Consumer feeds room events from Kafka into the event store.
type Consumer struct {
	logger    *slog.Logger
	store     store.Store
	consumers []*mq.KafkaConsumer
}

// Config 消费者配置
type Config struct {
	Kafka mq.KafkaConfig
}

// NewConsumer creates a consumer per configured consumer group. When Kafka is
// disabled the returned Consumer has nothing to run.
func NewConsumer(s store.Store, cfg Config) (*Consumer, error) {
	c := &Consumer{
		logger: log.Logger("consumer"),
		store:  s,
	}

	if !cfg.Kafka.Enabled {
		c.logger.Info("kafka disabled, consumer not started")
		return c, nil
	}

	for _, cc := range cfg.Kafka.Consumers {
		kc, err := mq.NewKafkaConsumer(cfg.Kafka, cc, c.Handle)
		if err != nil {
			_ = c.Stop()
			return nil, errors.WithMessagef(err, "create consumer %s", cc.Group)
		}
		c.consumers = append(c.consumers, kc)
	}

	return c, nil
}

// Handle decodes one room event and appends it to the store.
func (c *Consumer) Handle(ctx context.Context, topic string, message []byte) error {
	ev, err := store.ParseEvent(message)
	if err != nil {
		return errors.WithMessage(err, "decode room event")
	}

	stored, err := c.store.Append(ctx, ev)
	if err != nil {
		return errors.WithMessagef(err, "append event %s", ev.ID)
	}

	c.logger.Debug("event ingested",
		"topic", topic,
		"event_id", stored.ID,
		"room_id", stored.RoomID,
		"position", stored.Position,
		"relation", stored.Relation != nil,
	)
	return nil
}

// Start 启动所有消费者
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.consumers) == 0 {
		c.logger.Info("no consumers configured, skipping start")
		return nil
	}

	c.logger.Info("starting consumers", "count", len(c.consumers))

	g, ctx := errgroup.WithContext(ctx)
	for _, consumer := range c.consumers {
		g.Go(func() error {
			return consumer.Start(ctx)
		})
	}

	return g.Wait()
}

// Stop 停止所有消费者
func (c *Consumer) Stop() error {
	c.logger.Info("stopping consumers")

	for _, consumer := range c.consumers {
		if err := consumer.Stop(); err != nil {
			c.logger.Error("failed to stop consumer", "error", err)
		}
	}

	return nil
}
