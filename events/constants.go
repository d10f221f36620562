package events

const (
	// A post document has been written, payload is the json encoded post.
	TOPIC_POST_CREATED = "topic.post_created"
	// A comment document has been written, payload is the json encoded comment.
	TOPIC_COMMENT_ADDED = "topic.comment_added"

	DDOG_EVENT_COUNTER        = "hexfeed.event.count"
	DDOG_NOTIFICATION_COUNTER = "hexfeed.notification.count"

	DEFAULT_BUS_BUFFER = 100
)
