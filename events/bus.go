package events

import (
	"context"
	"encoding/json"

	"github.com/Luismorlan/hexfeed/model"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewEventBus creates the in-process bus shared by the publisher and every
// module.
func NewEventBus(buffer int64) *gochannel.GoChannel {
	if buffer <= 0 {
		buffer = DEFAULT_BUS_BUFFER
	}
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            buffer,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewStdLogger(false, false),
	)
}

// Publisher turns successful writes into bus messages. Publishing never fails
// the write, errors are only logged.
type Publisher struct {
	bus message.Publisher
}

func NewPublisher(bus message.Publisher) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) publish(topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		Logger.Log.Errorf("fail to encode %s event: %v", topic, err)
		return
	}
	if err := p.bus.Publish(topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		Logger.Log.Errorf("fail to publish %s event: %v", topic, err)
	}
}

func (p *Publisher) PostCreated(ctx context.Context, post *model.Post) {
	p.publish(TOPIC_POST_CREATED, post)
}

func (p *Publisher) CommentAdded(ctx context.Context, comment *model.Comment) {
	p.publish(TOPIC_COMMENT_ADDED, comment)
}
