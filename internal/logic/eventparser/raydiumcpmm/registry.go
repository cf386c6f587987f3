package raydiumcpmm

import (
	"geyser-stream-sol/internal/consts"
	"geyser-stream-sol/internal/logic/eventparser/common"
	"geyser-stream-sol/internal/types"
)

const SwapEventDiscriminator common.Discriminator = 0x40c6cde8260871e2

const (
	SwapBaseInput  common.Discriminator = 0x8fbe5adac41e33de
	SwapBaseOutput common.Discriminator = 0x37d96256a34ab4ad
)

// RegisterKinds 注册 Raydium CPMM 的日志事件类型
func RegisterKinds(r *common.Registry) {
	common.Register(r, consts.DexRaydiumCPMM, SwapKind)
}

// RegisterInstructionKinds 注册 Raydium CPMM Program 的指令类型（仅 swap）
func RegisterInstructionKinds(m map[types.Pubkey]*common.Registry) {
	r := common.NewRegistry()
	common.Register(r, consts.DexRaydiumCPMM, SwapBaseInputKind)
	common.Register(r, consts.DexRaydiumCPMM, SwapBaseOutputKind)
	m[consts.RaydiumCPMMProgram] = r
}
