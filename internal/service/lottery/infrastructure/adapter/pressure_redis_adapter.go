package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lucky/internal/pkg/redis"
)

const pressureRecordScriptName = "pressure_record"

// 滑动窗口计数：记一笔带时间戳的成员，同时把窗口外的旧成员清掉
const pressureRecordScript = `
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return redis.call('ZCARD', KEYS[1])
`

// PressureRedisAdapter 是 port.PressureGauge 接口的 Redis 实现
// 用 sorted set 维护活动维度的滑动窗口抽奖计数，P 维分档据此判定
type PressureRedisAdapter struct {
	redisClient *redis.Client
	window      time.Duration
}

// NewPressureRedisAdapter 创建一个新的压力探测适配器
func NewPressureRedisAdapter(redisClient *redis.Client, window time.Duration) (*PressureRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(pressureRecordScriptName, pressureRecordScript); err != nil {
		return nil, fmt.Errorf("failed to load pressure script: %w", err)
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &PressureRedisAdapter{redisClient: redisClient, window: window}, nil
}

func pressureKey(campaignID int64) string {
	return fmt.Sprintf("lottery:pressure:{%d}", campaignID)
}

// RecordDraw 在压力窗口内记一次抽奖
func (a *PressureRedisAdapter) RecordDraw(ctx context.Context, campaignID int64) error {
	now := time.Now()
	cutoff := now.Add(-a.window)
	_, err := a.redisClient.RunScript(ctx, pressureRecordScriptName,
		[]string{pressureKey(campaignID)},
		now.UnixMilli(),
		uuid.NewString(),
		cutoff.UnixMilli(),
		a.window.Milliseconds()*2,
	)
	if err != nil {
		return fmt.Errorf("pressure adapter failed to run script: %w", err)
	}
	return nil
}

// WindowDraws 返回当前窗口内的抽奖量
func (a *PressureRedisAdapter) WindowDraws(ctx context.Context, campaignID int64) (int64, error) {
	cutoff := time.Now().Add(-a.window)
	count, err := a.redisClient.GetClient().
		ZCount(ctx, pressureKey(campaignID), fmt.Sprintf("%d", cutoff.UnixMilli()), "+inf").
		Result()
	if err != nil {
		return 0, err
	}
	return count, nil
}
