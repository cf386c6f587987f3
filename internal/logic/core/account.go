package core

import (
	"geyser-stream-sol/internal/types"

	"github.com/blocto/solana-go-sdk/program/token"
)

// AdaptedAccount 是一次账户更新的内存表示
type AdaptedAccount struct {
	Slot      uint64
	IsStartup bool // 订阅建立时推送的初始快照
	Pubkey    types.Pubkey
	Owner     types.Pubkey
	Lamports  uint64
	// TxnSignature 引起本次变更的交易；启动快照等场景为空
	TxnSignature *types.Signature
	WriteVersion uint64
	Data         []byte

	// TokenAccount 仅当 owner 为 SPL Token 程序且数据可解码时非空
	TokenAccount *token.TokenAccount
}

// BlockMeta 区块元数据（不含交易）
type BlockMeta struct {
	Slot             uint64
	ParentSlot       uint64
	BlockHeight      uint64
	BlockTime        int64 // Unix 秒，0 表示节点未提供
	BlockHash        types.Hash
	TransactionCount uint64
}
