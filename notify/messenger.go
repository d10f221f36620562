package notify

import (
	"context"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/pkg/errors"
)

type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Messenger delivers a notification to a set of devices.
type Messenger interface {
	// Send returns the tokens the push service reported as no longer
	// registered. Callers are expected to forget them.
	Send(ctx context.Context, tokens []string, n Notification) (unregistered []string, err error)
}

// FCMMessenger sends through Firebase Cloud Messaging.
type FCMMessenger struct {
	client *messaging.Client
}

func NewFCMMessenger(ctx context.Context, app *firebase.App) (*FCMMessenger, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		Logger.Log.Errorf("[FCM][ERROR] Failed to get messaging client: %v", err)
		return nil, errors.Wrap(err, "fail to get messaging client")
	}
	Logger.Log.Infoln("[FCM] Firebase Messaging client initialized successfully")
	return &FCMMessenger{client: client}, nil
}

func (m *FCMMessenger) Send(ctx context.Context, tokens []string, n Notification) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	Logger.Log.Infof("[FCM] Sending multicast | tokens=%d title=%q", len(tokens), n.Title)

	response, err := m.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data:   n.Data,
		Tokens: tokens,
	})
	if err != nil {
		Logger.Log.Errorf("[FCM][ERROR] Multicast send failed entirely: %v", err)
		return nil, err
	}
	Logger.Log.Infof("[FCM] Multicast result | success=%d failure=%d", response.SuccessCount, response.FailureCount)

	unregistered := []string{}
	for i, resp := range response.Responses {
		if resp.Success {
			continue
		}
		Logger.Log.Warnf("[FCM][TOKEN ERROR] token=%s error=%v", tokens[i], resp.Error)
		if messaging.IsUnregistered(resp.Error) {
			unregistered = append(unregistered, tokens[i])
		}
	}
	return unregistered, nil
}

type SentNotification struct {
	Tokens       []string
	Notification Notification
}

// FakeMessenger records every send. Tokens listed in Unregistered are reported
// back as dead.
type FakeMessenger struct {
	mu           sync.Mutex
	sent         []SentNotification
	Unregistered map[string]bool
	Err          error
}

func NewFakeMessenger() *FakeMessenger {
	return &FakeMessenger{Unregistered: make(map[string]bool)}
}

func (f *FakeMessenger) Send(ctx context.Context, tokens []string, n Notification) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.sent = append(f.sent, SentNotification{Tokens: append([]string{}, tokens...), Notification: n})
	dead := []string{}
	for _, t := range tokens {
		if f.Unregistered[t] {
			dead = append(dead, t)
		}
	}
	return dead, nil
}

func (f *FakeMessenger) Sent() []SentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentNotification{}, f.sent...)
}
