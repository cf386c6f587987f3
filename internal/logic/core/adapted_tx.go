package core

import (
	"geyser-stream-sol/internal/types"
)

// AdaptedInstruction 表示一条主指令或 inner 指令，来源于 Solana Transaction 中的 message.instructions 或 innerInstructions。
// 所有指令在预处理阶段已展平，并补充了位置信息（IxIndex、InnerIndex），以支持顺序遍历与事件定位。
type AdaptedInstruction struct {
	IxIndex    uint16         // 主指令索引（从 0 开始）
	InnerIndex uint16         // Inner 指令在主指令中的序号，主指令本身为 0，CPI 调用从 1 开始
	ProgramID  types.Pubkey   // 指令对应的程序 ID
	Accounts   []types.Pubkey // 指令涉及的账户列表，保持原始顺序
	Data       []byte         // 指令原始数据
}

// TokenBalance 表示某个 SPL Token 账户在交易执行前后的余额信息。
type TokenBalance struct {
	Decimals     uint8
	PreBalance   uint64 // 交易执行前余额（最小单位）
	PostBalance  uint64 // 交易执行后余额
	TokenAccount types.Pubkey
	Token        types.Pubkey
	Owner        types.Pubkey
}

// AdaptedTx 是 gRPC 推送交易的内存表示：签名、账户、展平后的指令、日志与余额。
// 是事件解析流程的核心输入结构体。
type AdaptedTx struct {
	Slot      uint64
	TxIndex   uint32          // 当前交易在区块中的序号
	Signature types.Signature // 交易签名
	IsVote    bool
	Failed    bool   // meta.err 非空
	Fee       uint64 // lamports
	// ComputeUnits 为 0 表示节点未提供
	ComputeUnits uint64

	// AccountKeys 为完整账户列表：message.accountKeys + ALT writable + ALT readonly
	AccountKeys []types.Pubkey
	Signers     []types.Pubkey

	// Instructions 表示交易中的所有指令（包括主指令和 inner 指令），已按执行顺序展平。
	Instructions []*AdaptedInstruction

	// LogMessages 即 LogBatch：交易执行过程中产生的程序日志，顺序即执行顺序。
	LogMessages []string

	// Balances 记录交易中涉及的 SPL Token 账户余额快照（交易前后余额）。
	Balances map[types.Pubkey]*TokenBalance
}

// ProgramIDs 返回交易中出现过的去重程序 ID（保持首次出现顺序）
func (tx *AdaptedTx) ProgramIDs() []types.Pubkey {
	seen := make(map[types.Pubkey]struct{}, 8)
	ids := make([]types.Pubkey, 0, 8)
	for _, ix := range tx.Instructions {
		if _, ok := seen[ix.ProgramID]; ok {
			continue
		}
		seen[ix.ProgramID] = struct{}{}
		ids = append(ids, ix.ProgramID)
	}
	return ids
}
