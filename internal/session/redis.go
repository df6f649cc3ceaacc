package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"carecompanion/pkg"
)

// redisStore implements Store on a Redis list per session. Turns are stored
// as JSON entries under "session:<id>"; RPUSH and LRANGE run in one MULTI
// block so the returned snapshot always reflects the append, and Redis
// serializes concurrent pushes to the same key. The key TTL is refreshed on
// every touch.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func sessionKey(id string) string { return "session:" + id }

// Append implements Store.
func (s *redisStore) Append(ctx context.Context, id string, turn pkg.Turn) ([]pkg.Turn, error) {
	val, err := json.Marshal(turn)
	if err != nil {
		return nil, err
	}

	key := sessionKey(id)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, val)
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return decodeTurns(rangeCmd.Val())
}

// History implements Store.
func (s *redisStore) History(ctx context.Context, id string) ([]pkg.Turn, error) {
	key := sessionKey(id)
	vals, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// Refresh TTL on read
	_ = s.client.Expire(ctx, key, s.ttl).Err()
	return decodeTurns(vals)
}

// Close implements Store.
func (s *redisStore) Close() error {
	return s.client.Close()
}

func decodeTurns(vals []string) ([]pkg.Turn, error) {
	turns := make([]pkg.Turn, 0, len(vals))
	for _, v := range vals {
		var t pkg.Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, nil
}
