package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/domain/ports/repository"
)

var _ repository.UsageCounter = (*QuotaCounter)(nil)

// QuotaCounter keeps daily usage counters as plain integer keys that expire
// at the end of the civil day they count.
type QuotaCounter struct {
	cli RedisClient
}

func NewQuotaCounter(cli RedisClient) *QuotaCounter {
	return &QuotaCounter{cli: cli}
}

// UsageKey formats the counter key for one (user, date, type).
func UsageKey(userID, dateKey string, t model.UsageType) string {
	return fmt.Sprintf("ai_usage:%s:%s:%s", userID, dateKey, t)
}

// KEYS[1] counter; ARGV[1] limit; ARGV[2] unix reset time.
// Returns {count, incremented}.
var luaIncrementIfBelow = redis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n >= tonumber(ARGV[1]) then
	return {n, 0}
end
n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("EXPIREAT", KEYS[1], ARGV[2])
end
return {n, 1}`)

func (q *QuotaCounter) IncrementIfBelow(ctx context.Context, userID, dateKey string, usageType model.UsageType, limit int, resetAt time.Time) (int, bool, error) {
	res, err := q.cli.Eval(ctx, luaIncrementIfBelow, []string{UsageKey(userID, dateKey, usageType)}, limit, resetAt.Unix())
	if err != nil {
		return 0, false, err
	}
	pair, ok := res.([]interface{})
	if !ok || len(pair) != 2 {
		return 0, false, fmt.Errorf("quota script: unexpected reply %T", res)
	}
	count, ok1 := pair[0].(int64)
	incremented, ok2 := pair[1].(int64)
	if !ok1 || !ok2 {
		return 0, false, fmt.Errorf("quota script: unexpected reply %v", pair)
	}
	return int(count), incremented == 1, nil
}

func (q *QuotaCounter) Get(ctx context.Context, userID, dateKey string, usageType model.UsageType) (int, error) {
	v, err := q.cli.Get(ctx, UsageKey(userID, dateKey, usageType))
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("quota counter %q: %w", v, err)
	}
	return n, nil
}
