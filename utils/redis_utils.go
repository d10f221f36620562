package utils

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"
)

const (
	// Redis only has string type, there is no boolean or int, so we use "1" to represent true
	RedisTrue  = "1"
	RedisFalse = "0"

	RedisKeyDelimiter = "__"
)

// IsRedisConfigured reports whether redis env variables are present. Tests
// that need a real redis skip themselves otherwise.
func IsRedisConfigured() bool {
	return os.Getenv("REDIS_HOST") != ""
}

// GetRedisClient connects to the redis specified by env and pings it.
func GetRedisClient(ctx context.Context) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
		Password: os.Getenv("REDIS_PASSWD"),
		DB:       0, // use default DB
	})
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		redisClient.Close()
		return nil, err
	}
	return redisClient, nil
}

// RedisKeyParser builds composite keys such as "settings__user-1". Parts must
// not contain the delimiter.
type RedisKeyParser struct {
	delimiter string
}

func NewRedisKeyParser() RedisKeyParser {
	return RedisKeyParser{delimiter: RedisKeyDelimiter}
}

func (r RedisKeyParser) ValidateId(id string) bool {
	return !strings.Contains(id, r.delimiter)
}

func (r RedisKeyParser) EncodeKey(parts ...string) (string, error) {
	for _, p := range parts {
		if !r.ValidateId(p) {
			return "", fmt.Errorf("invalid key part %s containing delimiter %s", p, r.delimiter)
		}
	}
	return strings.Join(parts, r.delimiter), nil
}
