package notify

import (
	"context"
	"sort"
	"sync"
)

// SettingsStore keeps per user notification preferences and the FCM device
// tokens of their clients. Notifications are disabled until a user turns them
// on.
type SettingsStore interface {
	NotificationsEnabled(ctx context.Context, userId string) (bool, error)
	SetNotificationsEnabled(ctx context.Context, userId string, enabled bool) error
	AddDeviceToken(ctx context.Context, userId, token string) error
	RemoveDeviceToken(ctx context.Context, userId, token string) error
	DeviceTokens(ctx context.Context, userId string) ([]string, error)
}

// MemorySettingsStore is the in-process SettingsStore used in development and
// tests.
type MemorySettingsStore struct {
	mu      sync.RWMutex
	enabled map[string]bool
	tokens  map[string]map[string]bool
}

func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{
		enabled: make(map[string]bool),
		tokens:  make(map[string]map[string]bool),
	}
}

func (m *MemorySettingsStore) NotificationsEnabled(ctx context.Context, userId string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled[userId], nil
}

func (m *MemorySettingsStore) SetNotificationsEnabled(ctx context.Context, userId string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled[userId] = enabled
	return nil
}

func (m *MemorySettingsStore) AddDeviceToken(ctx context.Context, userId, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[userId]; !ok {
		m.tokens[userId] = make(map[string]bool)
	}
	m.tokens[userId][token] = true
	return nil
}

func (m *MemorySettingsStore) RemoveDeviceToken(ctx context.Context, userId, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens[userId], token)
	if len(m.tokens[userId]) == 0 {
		delete(m.tokens, userId)
	}
	return nil
}

func (m *MemorySettingsStore) DeviceTokens(ctx context.Context, userId string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tokens := []string{}
	for token := range m.tokens[userId] {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens, nil
}
