package svc

import (
	"context"
	"fmt"
	"time"

	"geyser-stream-sol/internal/config"
	geyser "geyser-stream-sol/internal/logic/grpc"
	"geyser-stream-sol/internal/logic/processor"
	"geyser-stream-sol/internal/logic/progress"
	"geyser-stream-sol/internal/mq"
	"geyser-stream-sol/internal/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ServiceContext 各命令共用的资源，未启用的组件为 nil
type ServiceContext struct {
	Config      *config.Config
	Publisher   *mq.EventPublisher
	Redis       *redis.Client
	Progress    *progress.RedisProgressStore
	PgPool      *pgxpool.Pool
	Store       *progress.PostgresStore
	SlotChecker *geyser.SlotChecker
}

func NewServiceContext(c *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{Config: c}

	// 1. Kafka 生产者
	if c.KafkaProducerConf.Enabled {
		producer, err := mq.NewKafkaProducer(c.KafkaProducerConf)
		if err != nil {
			logger.Errorf("Kafka producer 初始化失败: %v", err)
			return nil, err
		}
		sc.Publisher = mq.NewEventPublisher(producer, c.KafkaProducerConf.Topic, c.KafkaProducerConf.Partitions,
			time.Duration(c.TimeConf.EventSendTimeoutMs)*time.Millisecond)
	}

	// 2. Redis（签名去重与 slot 进度）
	if c.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := progress.NewRedisClient(ctx, c.Redis)
		cancel()
		if err != nil {
			sc.Close()
			logger.Errorf("Redis 初始化失败: %v", err)
			return nil, err
		}
		sc.Redis = rdb
		sc.Progress = progress.NewRedisProgressStore(rdb, c.Redis.KeyPrefix, time.Duration(c.Redis.DedupeTTLSec)*time.Second)
	}

	// 3. Postgres（事件与 slot 进度落库）
	if c.Postgres.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := progress.NewPostgresPool(ctx, c.Postgres.DSN)
		if err == nil {
			sc.PgPool = pool
			sc.Store = progress.NewPostgresStore(pool)
			if c.Postgres.AutoMigrate {
				err = sc.Store.EnsureSchema(ctx)
			}
		}
		cancel()
		if err != nil {
			sc.Close()
			logger.Errorf("Postgres 初始化失败: %v", err)
			return nil, err
		}
	}

	// 4. slot 空块校验
	if c.SlotChecker.Enabled {
		checker, err := geyser.NewSlotChecker(c.Rpc.Endpoint)
		if err != nil {
			sc.Close()
			return nil, fmt.Errorf("slot checker: %w", err)
		}
		sc.SlotChecker = checker
	}

	logger.Infof("服务上下文初始化完成: kafka=%v redis=%v postgres=%v slot_checker=%v",
		sc.Publisher != nil, sc.Redis != nil, sc.Store != nil, sc.SlotChecker != nil)
	return sc, nil
}

// 以下方法避免把 nil 指针包装成非 nil 接口

// EventSink Kafka 与 Postgres 均未启用时返回 nil
func (sc *ServiceContext) EventSink() processor.EventSink {
	var sinks processor.Sinks
	if sc.Publisher != nil {
		sinks = append(sinks, sc.Publisher)
	}
	if sc.Store != nil {
		sinks = append(sinks, sc.Store)
	}
	switch len(sinks) {
	case 0:
		return nil
	case 1:
		return sinks[0]
	default:
		return sinks
	}
}

func (sc *ServiceContext) AccountSink() processor.AccountSink {
	if sc.Publisher == nil {
		return nil
	}
	return sc.Publisher
}

func (sc *ServiceContext) Deduper() processor.SignatureDeduper {
	if sc.Progress == nil {
		return nil
	}
	return sc.Progress
}

func (sc *ServiceContext) SlotProgress() processor.SlotProgress {
	var stores processor.SlotProgresses
	if sc.Progress != nil {
		stores = append(stores, sc.Progress)
	}
	if sc.Store != nil {
		stores = append(stores, sc.Store)
	}
	switch len(stores) {
	case 0:
		return nil
	case 1:
		return stores[0]
	default:
		return stores
	}
}

func (sc *ServiceContext) GapChecker() processor.GapChecker {
	if sc.SlotChecker == nil {
		return nil
	}
	return sc.SlotChecker
}

// Close 关闭服务上下文中的资源
func (sc *ServiceContext) Close() {
	if sc.Publisher != nil {
		sc.Publisher.Close()
		sc.Publisher = nil
	}
	if sc.Redis != nil {
		if err := sc.Redis.Close(); err != nil {
			logger.Warnf("close redis failed: %v", err)
		}
		sc.Redis = nil
	}
	if sc.PgPool != nil {
		sc.PgPool.Close()
		sc.PgPool = nil
		sc.Store = nil
	}
}
