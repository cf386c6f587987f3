package raydiumcpmm

import (
	"geyser-stream-sol/internal/logic/eventparser/common"
	"geyser-stream-sol/internal/types"
)

// SwapEventSize 32 + 8*6 + 1；较新版本在末尾追加 mint 与手续费字段，解析时忽略
const SwapEventSize = 81

// SwapEvent Raydium CPMM 在 swap 指令中通过 "Program data: " 输出的事件
type SwapEvent struct {
	PoolID            types.Pubkey
	InputVaultBefore  uint64
	OutputVaultBefore uint64
	InputAmount       uint64
	OutputAmount      uint64
	InputTransferFee  uint64
	OutputTransferFee uint64
	BaseInput         bool
}

var SwapKind = common.NewBorshKind[SwapEvent]("raydiumcpmm.SwapEvent", SwapEventDiscriminator, SwapEventSize)

func (e SwapEvent) EventKey() types.Pubkey {
	return e.PoolID
}
