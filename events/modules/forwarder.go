package modules

import (
	"context"
	"sync"

	"github.com/Luismorlan/hexfeed/events"
	"github.com/Luismorlan/hexfeed/utils"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	TopicAttribute   = "topic"
	EventIdAttribute = "event_id"
)

type ForwarderConfig struct {
	Name   string
	Topics []string
}

// Forwarder copies bus events onto an external queue so that consumers
// outside of this process see every post and comment. Payloads are forwarded
// unchanged.
type Forwarder struct {
	Config ForwarderConfig

	Queue utils.MessageQueueWriter

	EventBus message.Subscriber
}

func NewForwarder(config ForwarderConfig, queue utils.MessageQueueWriter, e message.Subscriber) *Forwarder {
	if len(config.Topics) == 0 {
		config.Topics = []string{events.TOPIC_POST_CREATED, events.TOPIC_COMMENT_ADDED}
	}
	return &Forwarder{
		Config:   config,
		Queue:    queue,
		EventBus: e,
	}
}

func (f *Forwarder) forward(ctx context.Context, topic string, msg *message.Message) {
	err := f.Queue.SendMessage(ctx, string(msg.Payload), map[string]string{
		TopicAttribute:   topic,
		EventIdAttribute: msg.UUID,
	})
	if err != nil {
		Logger.Log.Errorf("fail to forward %s event %s: %v", topic, msg.UUID, err)
	}
}

func (f *Forwarder) RunModule(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, topic := range f.Config.Topics {
		messages, err := f.EventBus.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(topic string, messages <-chan *message.Message) {
			defer wg.Done()
			for msg := range messages {
				msg.Ack()
				f.forward(ctx, topic, msg)
			}
		}(topic, messages)
	}

	wg.Wait()
	return nil
}

func (f *Forwarder) Name() string {
	return f.Config.Name
}
