package pumpfun

import (
	"geyser-stream-sol/internal/logic/eventparser/common"
	"geyser-stream-sol/internal/types"
)

const completeEventSize = 32*3 + 8

// CompleteEvent bonding curve 完成（可迁移至 AMM）事件
type CompleteEvent struct {
	User         types.Pubkey
	Mint         types.Pubkey
	BondingCurve types.Pubkey
	Timestamp    int64
}

var CompleteKind = common.NewBorshKind[CompleteEvent]("pumpfun.CompleteEvent", CompleteEventDiscriminator, completeEventSize)

func (e CompleteEvent) EventKey() types.Pubkey {
	return e.Mint
}
