package pumpfun

import (
	"geyser-stream-sol/internal/consts"
	"geyser-stream-sol/internal/logic/eventparser/common"
	"geyser-stream-sol/internal/types"
)

// 日志事件判别符：sha256("event:<Name>")[:8]
const (
	TradeEventDiscriminator    common.Discriminator = 0xbddb7fd34ee661ee
	CreateEventDiscriminator   common.Discriminator = 0x1b72a94ddeeb6376
	CompleteEventDiscriminator common.Discriminator = 0x5f72619cd42e9808
)

// 指令判别符：sha256("global:<name>")[:8]
const (
	Create common.Discriminator = 0x181ec828051c0777
	Buy    common.Discriminator = 0x66063d1201daebea
	Sell   common.Discriminator = 0x33e685a4017f83ad
)

// RegisterKinds 注册 Pump.fun 的日志事件类型，TradeEvent 优先
func RegisterKinds(r *common.Registry) {
	common.Register(r, consts.DexPumpfun, TradeKind)
	common.Register(r, consts.DexPumpfun, CreateKind)
	common.Register(r, consts.DexPumpfun, CompleteKind)
}

// RegisterInstructionKinds 注册 Pump.fun Program 的指令类型
func RegisterInstructionKinds(m map[types.Pubkey]*common.Registry) {
	r := common.NewRegistry()
	common.Register(r, consts.DexPumpfun, BuyKind)
	common.Register(r, consts.DexPumpfun, SellKind)
	common.Register(r, consts.DexPumpfun, CreateInstrKind)
	m[consts.PumpFunProgram] = r
}
