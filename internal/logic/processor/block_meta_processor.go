package processor

import (
	"context"
	"time"

	"geyser-stream-sol/internal/logic/core"
	"geyser-stream-sol/internal/logic/txadapter"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/zeromicro/go-zero/core/logx"
)

// BlockMetaProcessor 统计区块到达延迟，并把 slot 缺口交给 GapChecker 校验
type BlockMetaProcessor struct {
	maxLatencyWarn time.Duration
	gaps           GapChecker   // 可为空
	progress       SlotProgress // 可为空
	redisTimeout   time.Duration
	lastSlot       uint64
	now            func() time.Time
	logx.Logger
}

func NewBlockMetaProcessor(maxLatencyWarn time.Duration, gaps GapChecker, progress SlotProgress) *BlockMetaProcessor {
	return &BlockMetaProcessor{
		maxLatencyWarn: maxLatencyWarn,
		gaps:           gaps,
		progress:       progress,
		redisTimeout:   time.Second,
		now:            time.Now,
		Logger:         logx.WithContext(context.Background()).WithFields(logx.Field("service", "block_meta_processor")),
	}
}

func (p *BlockMetaProcessor) OnBlockMeta(update *pb.SubscribeUpdateBlockMeta) {
	meta := txadapter.AdaptBlockMeta(update)
	if meta == nil {
		return
	}
	p.observe(meta)
}

// observe 返回区块延迟（毫秒），节点未提供 block_time 时为 -1
func (p *BlockMetaProcessor) observe(meta *core.BlockMeta) int64 {
	latency := int64(-1)
	if meta.BlockTime > 0 {
		// block_time 精度为秒，延迟包含最多 1s 的截断误差
		latency = p.now().UnixMilli() - meta.BlockTime*1000
		if p.maxLatencyWarn > 0 && time.Duration(latency)*time.Millisecond > p.maxLatencyWarn {
			p.Errorf("block latency too high: slot=%d latency=%dms", meta.Slot, latency)
		} else {
			p.Infof("received block meta at slot %v, latency to blockTime: %v ms, txs=%d",
				meta.Slot, latency, meta.TransactionCount)
		}
	} else {
		p.Infof("received block meta at slot %v without block time", meta.Slot)
	}

	// processed 级别下区块可能乱序到达，只处理前进的 slot
	if meta.Slot > p.lastSlot {
		if p.lastSlot > 0 && meta.Slot > p.lastSlot+1 && p.gaps != nil {
			p.gaps.Submit(p.lastSlot+1, meta.Slot-1)
		}
		p.lastSlot = meta.Slot
	}

	if p.progress != nil {
		ctx, cancel := context.WithTimeout(context.Background(), p.redisTimeout)
		defer cancel()
		if err := p.progress.MarkSlotProcessed(ctx, meta.Slot); err != nil {
			p.Errorf("mark slot %d processed failed: %v", meta.Slot, err)
		}
	}
	return latency
}
