package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Connect parses the Redis URL, opens the client and pings it so a bad
// address fails at startup instead of on the first rate-limit check.
func Connect(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return client, nil
}
