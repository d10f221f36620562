package modules

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/Luismorlan/hexfeed/events"
	"github.com/Luismorlan/hexfeed/feedsync"
	"github.com/Luismorlan/hexfeed/model"
	"github.com/Luismorlan/hexfeed/notify"
	"github.com/Luismorlan/hexfeed/utils"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	NewCommentTitle     = "New comment"
	maxPreviewLength    = 80
	notificationTypeKey = "type"
)

type NotifierConfig struct {
	Name string
}

// Notifier pushes a notification to the author of a post whenever somebody
// else comments on it, if the author turned notifications on.
type Notifier struct {
	Config NotifierConfig

	Reader    *feedsync.Reader
	Settings  notify.SettingsStore
	Messenger notify.Messenger
	Statsd    statsd.ClientInterface

	EventBus message.Subscriber
}

func NewNotifier(config NotifierConfig, reader *feedsync.Reader, settings notify.SettingsStore, messenger notify.Messenger, statsd statsd.ClientInterface, e message.Subscriber) *Notifier {
	return &Notifier{
		Config:    config,
		Reader:    reader,
		Settings:  settings,
		Messenger: messenger,
		Statsd:    statsd,
		EventBus:  e,
	}
}

func (n *Notifier) RunModule(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages, err := n.EventBus.Subscribe(ctx, events.TOPIC_COMMENT_ADDED)
	if err != nil {
		return err
	}

	for msg := range messages {
		msg.Ack()

		comment := model.Comment{}
		if err := json.Unmarshal(msg.Payload, &comment); err != nil {
			Logger.Log.Errorf("undecodable comment event %s: %v", msg.UUID, err)
			continue
		}
		if err := n.NotifyCommentAdded(ctx, &comment); err != nil {
			Logger.Log.Errorf("fail to notify comment %s: %v", comment.Id, err)
		}
	}
	return nil
}

// NotifyCommentAdded notifies the author of the commented post. Self comments
// and authors with notifications off are skipped.
func (n *Notifier) NotifyCommentAdded(ctx context.Context, comment *model.Comment) error {
	post, found, err := n.Reader.GetPost(ctx, comment.PostId)
	if err != nil {
		return err
	}
	if !found || post.Author == nil || post.Author.Id == "" {
		return nil
	}
	authorId := post.Author.Id
	if comment.Author != nil && comment.Author.Id == authorId {
		return nil
	}

	enabled, err := n.Settings.NotificationsEnabled(ctx, authorId)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}
	tokens, err := n.Settings.DeviceTokens(ctx, authorId)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	commenter := "Someone"
	if comment.Author != nil {
		commenter = comment.Author.DisplayName()
	}
	unregistered, err := n.Messenger.Send(ctx, tokens, notify.Notification{
		Title: NewCommentTitle,
		Body:  fmt.Sprintf("%s commented on %q: %s", commenter, post.Title, utils.Truncate(comment.Text, maxPreviewLength)),
		Data: map[string]string{
			notificationTypeKey: "comment_added",
			"postId":            post.Id,
			"commentId":         comment.Id,
		},
	})
	if err != nil {
		return err
	}
	if err := n.Statsd.Incr(events.DDOG_NOTIFICATION_COUNTER, []string{"topic:" + events.TOPIC_COMMENT_ADDED}, 1); err != nil {
		Logger.Log.Infoln("cannot report notification count", err)
	}

	for _, token := range unregistered {
		Logger.Log.Infof("[FCM] Deleting dead token of user %s", authorId)
		if err := n.Settings.RemoveDeviceToken(ctx, authorId, token); err != nil {
			Logger.Log.Errorf("fail to delete dead token: %v", err)
		}
	}
	return nil
}

func (n *Notifier) Name() string {
	return n.Config.Name
}
