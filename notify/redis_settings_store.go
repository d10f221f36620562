package notify

import (
	"context"
	"sort"

	"github.com/Luismorlan/hexfeed/utils"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const (
	enabledKeyPrefix = "notifications_enabled"
	tokensKeyPrefix  = "device_tokens"
)

// RedisSettingsStore keeps the enabled flag as a "1"/"0" string under
// notifications_enabled__{userId} and device tokens as a set under
// device_tokens__{userId}.
type RedisSettingsStore struct {
	inner     *redis.Client
	keyParser utils.RedisKeyParser
}

func NewRedisSettingsStore(client *redis.Client) *RedisSettingsStore {
	return &RedisSettingsStore{
		inner:     client,
		keyParser: utils.NewRedisKeyParser(),
	}
}

func (r *RedisSettingsStore) NotificationsEnabled(ctx context.Context, userId string) (bool, error) {
	key, err := r.keyParser.EncodeKey(enabledKeyPrefix, userId)
	if err != nil {
		return false, err
	}
	v, err := r.inner.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "fail to read notification setting")
	}
	return v == utils.RedisTrue, nil
}

func (r *RedisSettingsStore) SetNotificationsEnabled(ctx context.Context, userId string, enabled bool) error {
	key, err := r.keyParser.EncodeKey(enabledKeyPrefix, userId)
	if err != nil {
		return err
	}
	v := utils.RedisFalse
	if enabled {
		v = utils.RedisTrue
	}
	return r.inner.Set(ctx, key, v, 0).Err()
}

func (r *RedisSettingsStore) AddDeviceToken(ctx context.Context, userId, token string) error {
	key, err := r.keyParser.EncodeKey(tokensKeyPrefix, userId)
	if err != nil {
		return err
	}
	return r.inner.SAdd(ctx, key, token).Err()
}

func (r *RedisSettingsStore) RemoveDeviceToken(ctx context.Context, userId, token string) error {
	key, err := r.keyParser.EncodeKey(tokensKeyPrefix, userId)
	if err != nil {
		return err
	}
	return r.inner.SRem(ctx, key, token).Err()
}

func (r *RedisSettingsStore) DeviceTokens(ctx context.Context, userId string) ([]string, error) {
	key, err := r.keyParser.EncodeKey(tokensKeyPrefix, userId)
	if err != nil {
		return nil, err
	}
	tokens, err := r.inner.SMembers(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrap(err, "fail to read device tokens")
	}
	sort.Strings(tokens)
	return tokens, nil
}
