package raydiumcpmm

import (
	"geyser-stream-sol/internal/logic/eventparser/common"
	"geyser-stream-sol/internal/types"
)

// Raydium CPMM Swap 账户结构（固定顺序）:
//
// 0 - Payer（交易发起人，Writable、Signer、Fee Payer）
// 1 - Authority（Raydium Vault 授权账户）
// 2 - Amm Config（AMM 配置账户）
// 3 - Pool (AMM 池子地址）
// 4 - Input Token Account（用户输入TokenAccount）
// 5 - Output Token Account（用户输出TokenAccount）
// 6 - Input Vault（池子输入TokenVault）
// 7 - Output Vault（池子输出TokenVault）
// 8 - Input Token Program（Token Program，Program 类型）
// 9 - Output Token Program（Token Program，Program 类型）
// 10 - Input Token Mint（输入 Token Mint 地址）
// 11 - Output Token Mint（输出 Token Mint 地址）
//
// 典型示例交易链接：
// swapBaseInput: https://solscan.io/tx/318RwCgKihTL1CtGv2WnSxzVKvMWqJaZAPQE6ZUNA3dSnqtBr8BpLvcjZzf1MvUM71GaRQynKL6EqVFAYhEbKQho
// swapBaseOutput: https://solscan.io/tx/2oYhut5RS46rJqZNcCmzNpnDmfYrWjDbFyskWigWJ1zAuHJ8dRHgiEWPFQb6yzzX1eg3wjuf1WpRe2BbqtpK1YiV
const (
	SwapPoolAccountIndex        = 3
	SwapInputVaultAccountIndex  = 6
	SwapOutputVaultAccountIndex = 7
	SwapInputMintAccountIndex   = 10
	SwapOutputMintAccountIndex  = 11
	swapMinAccounts             = 12
)

// SwapBaseInputArgs 精确输入
type SwapBaseInputArgs struct {
	AmountIn         uint64
	MinimumAmountOut uint64
}

// SwapBaseOutputArgs 精确输出
type SwapBaseOutputArgs struct {
	MaxAmountIn uint64
	AmountOut   uint64
}

// SwapAccounts swap 指令中的池子相关账户，分区 key 为池子地址
type SwapAccounts struct {
	Pool        types.Pubkey
	InputVault  types.Pubkey
	OutputVault types.Pubkey
	InputMint   types.Pubkey
	OutputMint  types.Pubkey
}

func (a SwapAccounts) EventKey() types.Pubkey {
	return a.Pool
}

func swapAccountsFrom(accounts []types.Pubkey) (SwapAccounts, bool) {
	if !HasSwapAccounts(len(accounts)) {
		return SwapAccounts{}, false
	}
	return SwapAccounts{
		Pool:        accounts[SwapPoolAccountIndex],
		InputVault:  accounts[SwapInputVaultAccountIndex],
		OutputVault: accounts[SwapOutputVaultAccountIndex],
		InputMint:   accounts[SwapInputMintAccountIndex],
		OutputMint:  accounts[SwapOutputMintAccountIndex],
	}, true
}

// SwapBaseInputInstruction swapBaseInput 参数 + 账户
type SwapBaseInputInstruction struct {
	SwapBaseInputArgs
	SwapAccounts
}

// SwapBaseOutputInstruction swapBaseOutput 参数 + 账户
type SwapBaseOutputInstruction struct {
	SwapBaseOutputArgs
	SwapAccounts
}

func (a SwapBaseInputArgs) BindAccounts(accounts []types.Pubkey) (any, bool) {
	sa, ok := swapAccountsFrom(accounts)
	if !ok {
		return nil, false
	}
	return SwapBaseInputInstruction{SwapBaseInputArgs: a, SwapAccounts: sa}, true
}

func (a SwapBaseOutputArgs) BindAccounts(accounts []types.Pubkey) (any, bool) {
	sa, ok := swapAccountsFrom(accounts)
	if !ok {
		return nil, false
	}
	return SwapBaseOutputInstruction{SwapBaseOutputArgs: a, SwapAccounts: sa}, true
}

var (
	SwapBaseInputKind  = common.NewBorshKind[SwapBaseInputArgs]("raydiumcpmm.SwapBaseInput", SwapBaseInput, 16)
	SwapBaseOutputKind = common.NewBorshKind[SwapBaseOutputArgs]("raydiumcpmm.SwapBaseOutput", SwapBaseOutput, 16)
)

// HasSwapAccounts 校验 swap 指令的账户数量是否满足固定布局
func HasSwapAccounts(accounts int) bool {
	return accounts >= swapMinAccounts
}
