package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bitfantasy/muse/internal/content/entity"
	"github.com/redis/go-redis/v9"
)

const (
	metricsRedisKeyFmt = "muse:approver_metrics:%s"
	metricsRedisTTL    = 10 * time.Minute
)

// MetricsCache 审批人指标缓存
// 进程内 map 为主，Redis 为跨实例的尽力而为二级缓存；
// 任何 Redis 失败只记日志，不影响路由
type MetricsCache struct {
	mu      sync.RWMutex
	metrics map[string]*entity.ApproverMetrics
	rdb     *redis.Client // 可为 nil
}

// NewMetricsCache 创建指标缓存，rdb 传 nil 则只用进程内缓存
func NewMetricsCache(rdb *redis.Client) *MetricsCache {
	return &MetricsCache{
		metrics: make(map[string]*entity.ApproverMetrics),
		rdb:     rdb,
	}
}

// Get 读取用户指标，本地未命中时尝试 Redis
func (c *MetricsCache) Get(ctx context.Context, userID string) (*entity.ApproverMetrics, bool) {
	c.mu.RLock()
	m, ok := c.metrics[userID]
	c.mu.RUnlock()
	if ok {
		copied := *m
		return &copied, true
	}

	if c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, fmt.Sprintf(metricsRedisKeyFmt, userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[MetricsCache] Redis 读取失败 (user=%s): %v", userID, err)
		}
		return nil, false
	}
	var remote entity.ApproverMetrics
	if err := json.Unmarshal(data, &remote); err != nil {
		log.Printf("[MetricsCache] Redis 数据解析失败 (user=%s): %v", userID, err)
		return nil, false
	}

	c.mu.Lock()
	c.metrics[userID] = &remote
	c.mu.Unlock()
	copied := remote
	return &copied, true
}

// Set 写入用户指标并尽力同步到 Redis
func (c *MetricsCache) Set(ctx context.Context, m *entity.ApproverMetrics) {
	if m == nil || m.UserID == "" {
		return
	}
	copied := *m
	c.mu.Lock()
	c.metrics[m.UserID] = &copied
	c.mu.Unlock()

	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, fmt.Sprintf(metricsRedisKeyFmt, m.UserID), data, metricsRedisTTL).Err(); err != nil {
		log.Printf("[MetricsCache] Redis 写入失败 (user=%s): %v", m.UserID, err)
	}
}

// Size 当前缓存条目数
func (c *MetricsCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.metrics)
}
