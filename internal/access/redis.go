package access

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps each code as a hash ("access_code:<CODE>") plus
// active/expired membership sets and lifetime counters. The client is
// shared with the drop store; the namespaces never overlap.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func codeKey(code string) string {
	return "access_code:" + code
}

const (
	activeSetKey     = "active_codes"
	expiredSetKey    = "expired_codes"
	generatedCounter = "total_codes_generated"
	usedCounter      = "total_codes_used"
)

func (r *RedisStore) Save(ctx context.Context, code *Code) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, codeKey(code.Code), map[string]interface{}{
		"status":  code.Status,
		"created": strconv.FormatInt(code.CreatedAt.UnixMilli(), 10),
		"used":    strconv.FormatBool(code.Used),
	})
	pipe.SAdd(ctx, activeSetKey, code.Code)
	pipe.Incr(ctx, generatedCounter)
	_, err := pipe.Exec(ctx)
	return err
}

// validateScript checks status and used flag and flips used in one
// atomic step.
var validateScript = redis.NewScript(`
	local status = redis.call('HGET', KEYS[1], 'status')
	local used = redis.call('HGET', KEYS[1], 'used')
	if status ~= 'active' or used == 'true' then
		return 0
	end
	redis.call('HSET', KEYS[1], 'used', 'true')
	return 1
`)

func (r *RedisStore) Validate(ctx context.Context, code string) (bool, error) {
	val, err := validateScript.Run(ctx, r.client, []string{codeKey(code)}).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return val == 1, nil
}

func (r *RedisStore) Expire(ctx context.Context, code string) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, codeKey(code), map[string]interface{}{
		"status":  StatusExpired,
		"expired": strconv.FormatInt(time.Now().UnixMilli(), 10),
	})
	pipe.SRem(ctx, activeSetKey, code)
	pipe.SAdd(ctx, expiredSetKey, code)
	pipe.Incr(ctx, usedCounter)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Active(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, activeSetKey).Result()
}

func (r *RedisStore) Expired(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, expiredSetKey).Result()
}

func (r *RedisStore) Stats(ctx context.Context) (Stats, error) {
	generated, err := r.counter(ctx, generatedCounter)
	if err != nil {
		return Stats{}, err
	}
	used, err := r.counter(ctx, usedCounter)
	if err != nil {
		return Stats{}, err
	}
	return Stats{TotalGenerated: generated, TotalUsed: used}, nil
}

func (r *RedisStore) counter(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}
