package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"lucky/internal/pkg/redis"
)

const idempotencyPutScriptName = "idempotency_put_nx"

// 只在键不存在时写入并设置过期，返回 1 表示写入成功
const idempotencyPutScript = `
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[2])
return 1
`

// IdempotencyRedisAdapter 是 port.IdempotencyStore 接口的 Redis 实现
// 只做热路径短路，数据库流水表才是幂等性的最终裁决者
type IdempotencyRedisAdapter struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewIdempotencyRedisAdapter 创建一个新的幂等缓存适配器
// 它在创建时会加载所需的 Lua 脚本
func NewIdempotencyRedisAdapter(redisClient *redis.Client, ttl time.Duration) (*IdempotencyRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(idempotencyPutScriptName, idempotencyPutScript); err != nil {
		return nil, fmt.Errorf("failed to load idempotency script: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyRedisAdapter{redisClient: redisClient, ttl: ttl}, nil
}

func cacheKey(key string) string {
	return "lottery:idem:" + key
}

// Get 查询幂等键对应的历史结果
func (a *IdempotencyRedisAdapter) Get(ctx context.Context, key string) (string, bool, error) {
	payload, err := a.redisClient.GetClient().Get(ctx, cacheKey(key)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return payload, true, nil
}

// PutNX 以 compare-and-swap 语义写入结果
func (a *IdempotencyRedisAdapter) PutNX(ctx context.Context, key string, payload string) (bool, error) {
	result, err := a.redisClient.RunScript(ctx, idempotencyPutScriptName,
		[]string{cacheKey(key)}, payload, int64(a.ttl.Seconds()))
	if err != nil {
		return false, fmt.Errorf("idempotency adapter failed to run script: %w", err)
	}
	code, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}
	return code == 1, nil
}
