package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"geyser-stream-sol/internal/config"
	"geyser-stream-sol/internal/types"

	"github.com/redis/go-redis/v9"
)

// slot 状态保留时间
const slotTTL = 24 * time.Hour

// setMaxScript 仅当新值更大时写入，保证 last_slot 单调递增
var setMaxScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local val = tonumber(ARGV[1])
if val > cur then
  redis.call('SET', KEYS[1], ARGV[1])
  return 1
end
return 0
`)

// NewRedisClient 创建并 ping 校验 Redis 连接
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// RedisProgressStore 管理 Redis 中的签名去重与 slot 进度
type RedisProgressStore struct {
	rdb       *redis.Client
	prefix    string
	dedupeTTL time.Duration
}

func NewRedisProgressStore(rdb *redis.Client, prefix string, dedupeTTL time.Duration) *RedisProgressStore {
	return &RedisProgressStore{rdb: rdb, prefix: prefix, dedupeTTL: dedupeTTL}
}

func (r *RedisProgressStore) sigKey(sig types.Signature) string {
	return r.prefix + ":sig:" + sig.String()
}

func (r *RedisProgressStore) slotKey(slot uint64) string {
	return r.prefix + ":slot:" + strconv.FormatUint(slot, 10)
}

func (r *RedisProgressStore) lastSlotKey() string {
	return r.prefix + ":last_slot"
}

// MarkIfNew 原子地登记交易签名；首次出现返回 true，重连后重复推送的交易返回 false
func (r *RedisProgressStore) MarkIfNew(ctx context.Context, sig types.Signature) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, r.sigKey(sig), 1, r.dedupeTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx error: %w", err)
	}
	return ok, nil
}

// Forget 删除签名登记，使之后重推的同一交易重新被处理
func (r *RedisProgressStore) Forget(ctx context.Context, sigs ...types.Signature) error {
	if len(sigs) == 0 {
		return nil
	}
	keys := make([]string, len(sigs))
	for i, sig := range sigs {
		keys[i] = r.sigKey(sig)
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	return nil
}

// GetSlotStatus 获取 slot 的状态
func (r *RedisProgressStore) GetSlotStatus(ctx context.Context, slot uint64) (SlotStatus, error) {
	val, err := r.rdb.Get(ctx, r.slotKey(slot)).Int()
	switch {
	case errors.Is(err, redis.Nil):
		return SlotUnknown, nil
	case err != nil:
		return SlotUnknown, fmt.Errorf("redis get error: %w", err)
	}
	switch s := SlotStatus(val); s {
	case SlotProcessed, SlotInvalid, SlotPending:
		return s, nil
	default:
		return SlotUnknown, nil // 容错处理
	}
}

// MarkSlotStatus 设置 slot 的状态
func (r *RedisProgressStore) MarkSlotStatus(ctx context.Context, slot uint64, status SlotStatus) error {
	return r.rdb.Set(ctx, r.slotKey(slot), int(status), slotTTL).Err()
}

// MarkSlotProcessed 标记 slot 为已处理，并推进 last_slot
func (r *RedisProgressStore) MarkSlotProcessed(ctx context.Context, slot uint64) error {
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.slotKey(slot), int(SlotProcessed), slotTTL)
	setMaxScript.Eval(ctx, pipe, []string{r.lastSlotKey()}, slot)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis mark slot %d: %w", slot, err)
	}
	return nil
}

// LastSlot 返回已处理的最大 slot；从未记录时返回 0
func (r *RedisProgressStore) LastSlot(ctx context.Context) (uint64, error) {
	v, err := r.rdb.Get(ctx, r.lastSlotKey()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}
