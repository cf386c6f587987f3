package txadapter

import (
	"geyser-stream-sol/internal/logic/core"
	"geyser-stream-sol/internal/types"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// AdaptBlockMeta 转换区块元数据；blockhash 非法时保持零值
func AdaptBlockMeta(update *pb.SubscribeUpdateBlockMeta) *core.BlockMeta {
	meta := &core.BlockMeta{
		Slot:             update.GetSlot(),
		ParentSlot:       update.GetParentSlot(),
		BlockHeight:      update.GetBlockHeight().GetBlockHeight(),
		BlockTime:        update.GetBlockTime().GetTimestamp(),
		TransactionCount: update.GetExecutedTransactionCount(),
	}
	if h, err := types.HashFromBase58(update.GetBlockhash()); err == nil {
		meta.BlockHash = h
	}
	return meta
}
