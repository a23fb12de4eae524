package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/playmatrix/backend/internal/game"
	"github.com/redis/go-redis/v9"
)

// Guard enforces the minimum server-measured interval between mutating
// actions. SetNX with a TTL is the whole mechanism: while the key lives, the
// subject is throttled for that game kind.
type Guard struct {
	rdb      *redis.Client
	interval time.Duration
}

func New(rdb *redis.Client, intervalMs int) *Guard {
	return &Guard{rdb: rdb, interval: time.Duration(intervalMs) * time.Millisecond}
}

// Allow returns ErrRateLimited when the subject acted too recently. A Redis
// outage fails open: the sequence counter still protects correctness, this
// guard only protects pacing.
func (g *Guard) Allow(ctx context.Context, subjectID string, kind game.Kind) error {
	if g == nil || g.rdb == nil || g.interval <= 0 {
		return nil
	}
	key := fmt.Sprintf("act_rate:%s:%s", subjectID, kind)
	ok, err := g.rdb.SetNX(ctx, key, "1", g.interval).Result()
	if err != nil {
		return nil
	}
	if !ok {
		return game.ErrRateLimited
	}
	return nil
}
