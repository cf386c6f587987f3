package pumpfun

import (
	"geyser-stream-sol/internal/logic/eventparser/common"
)

// BuyArgs buy 指令参数
//
// Pump.fun 交易账户结构：
//  0. Global 配置账户（不可变）
//  1. 手续费账户
//  2. 被购买代币的 Mint
//  3. Bonding Curve 主账户（池子地址）
//  4. Bonding Curve Vault（池子 TokenAccount）
//  5. 用户 Associated Token Account（User TokenAccount）
//  6. 用户主账户（用户地址）
//  7. System Program
//  8. Token Program
//  9. Creator Vault
//  10. Event Authority (事件地址)
//  11. Pump.fun 程序账户
type BuyArgs struct {
	Amount     uint64
	MaxSolCost uint64
}

// SellArgs sell 指令参数，账户布局同 buy
type SellArgs struct {
	Amount       uint64
	MinSolOutput uint64
}

// CreateArgs create 指令参数
type CreateArgs struct {
	Name   string
	Symbol string
	Uri    string
}

var (
	BuyKind         = common.NewLenientBorshKind[BuyArgs]("pumpfun.Buy", Buy, 16)
	SellKind        = common.NewLenientBorshKind[SellArgs]("pumpfun.Sell", Sell, 16)
	CreateInstrKind = common.NewLenientBorshKind[CreateArgs]("pumpfun.Create", Create, 12)
)
