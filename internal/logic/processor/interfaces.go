package processor

import (
	"context"

	"geyser-stream-sol/internal/logic/core"
	"geyser-stream-sol/internal/types"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// EventSink 事件下游，由 mq.EventPublisher 实现
type EventSink interface {
	Publish(ctx context.Context, events []*core.Event) error
}

// AccountSink 账户更新下游，由 mq.EventPublisher 实现
type AccountSink interface {
	PublishAccount(ctx context.Context, update *pb.SubscribeUpdateAccount) error
}

// SignatureDeduper 签名去重，由 progress.RedisProgressStore 实现；
// 下游发布失败时通过 Forget 撤销登记
type SignatureDeduper interface {
	MarkIfNew(ctx context.Context, sig types.Signature) (bool, error)
	Forget(ctx context.Context, sigs ...types.Signature) error
}

// SlotProgress slot 处理进度，由 progress.RedisProgressStore 实现
type SlotProgress interface {
	MarkSlotProcessed(ctx context.Context, slot uint64) error
}

// GapChecker 接收订阅流中跳过的 slot 区间，由 grpc.SlotChecker 实现
type GapChecker interface {
	Submit(from, to uint64)
}
