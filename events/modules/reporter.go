package modules

import (
	"context"
	"sync"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/Luismorlan/hexfeed/events"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/ThreeDotsLabs/watermill/message"
)

type ReporterConfig struct {
	Name   string
	Topics []string
}

// Reporter's job is to listen to different topics and count events, sending
// to Datadog for monitoring purpose.
type Reporter struct {
	Config ReporterConfig

	Statsd statsd.ClientInterface

	EventBus message.Subscriber
}

func NewReporter(config ReporterConfig, statsd statsd.ClientInterface, e message.Subscriber) *Reporter {
	if len(config.Topics) == 0 {
		config.Topics = []string{events.TOPIC_POST_CREATED, events.TOPIC_COMMENT_ADDED}
	}
	return &Reporter{
		Config:   config,
		Statsd:   statsd,
		EventBus: e,
	}
}

func (r *Reporter) report(topic string) {
	if err := r.Statsd.Incr(events.DDOG_EVENT_COUNTER, []string{"topic:" + topic}, 1); err != nil {
		Logger.Log.Infoln("cannot report event count", err)
	}
}

func (r *Reporter) RunModule(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, topic := range r.Config.Topics {
		messages, err := r.EventBus.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(topic string, messages <-chan *message.Message) {
			defer wg.Done()
			for msg := range messages {
				msg.Ack()
				r.report(topic)
			}
		}(topic, messages)
	}

	wg.Wait()
	return nil
}

func (r *Reporter) Name() string {
	return r.Config.Name
}
