package pumpfun

import (
	"geyser-stream-sol/internal/logic/eventparser/common"
	"geyser-stream-sol/internal/types"
)

// TradeEventSize 是 TradeEvent 的 borsh 固定长度（不含判别符）：
// 32 + 8 + 8 + 1 + 32 + 8 + 8*4 = 121
const TradeEventSize = 121

// TradeEvent Pump.fun bonding curve 的买卖事件。
// 示例交易：
// Buy: https://solscan.io/tx/26N7CkAScr2msSTHNoEGtfwWkHwrsqRhwUPjh366SyYG5oY4CojjDQFZR8ZPN7nt5JEqqYBBvWndHxNQcf1mkBzz
// Sell: https://solscan.io/tx/3NCxJ1jNF1SHjjGKDxMhnzyqwSdEDoitPLzvEdfBZrTPXhxA21YkydApvP8rLzeM36Bpa2jWqnrgryhw9oqgBLpv
type TradeEvent struct {
	Mint                 types.Pubkey
	SolAmount            uint64 // lamports
	TokenAmount          uint64 // 最小单位
	IsBuy                bool
	User                 types.Pubkey
	Timestamp            int64 // unix 秒
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	RealSolReserves      uint64
	RealTokenReserves    uint64
}

var TradeKind = common.NewBorshKind[TradeEvent]("pumpfun.TradeEvent", TradeEventDiscriminator, TradeEventSize)

func (e TradeEvent) EventKey() types.Pubkey {
	return e.Mint
}

func (e TradeEvent) Side() string {
	if e.IsBuy {
		return "buy"
	}
	return "sell"
}

// ParseTradeEvent 从一笔交易的日志中取出最后一个可解码的 TradeEvent
func ParseTradeEvent(logs []string) (TradeEvent, bool) {
	return common.ParseLogs(logs, TradeKind)
}
