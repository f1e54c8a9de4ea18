package eventbus

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type inMemoryEventBus struct {
	pubSub *gochannel.GoChannel
}

// NewInMemoryEventBus builds a process-local bus on watermill's gochannel
// pub/sub. Used by tests and single-process deployments.
func NewInMemoryEventBus(logger *slog.Logger) EventBus {
	return &inMemoryEventBus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger)),
	}
}

func (eb *inMemoryEventBus) Publish(ctx context.Context, topic string, msg *message.Message) error {
	if msg.UUID == "" {
		msg.UUID = watermill.NewUUID()
	}
	msg.SetContext(ctx)
	return eb.pubSub.Publish(topic, msg)
}

func (eb *inMemoryEventBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return eb.pubSub.Subscribe(ctx, topic)
}

func (eb *inMemoryEventBus) Close() error {
	return eb.pubSub.Close()
}
