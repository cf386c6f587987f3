package consts

import "geyser-stream-sol/internal/types"

// Base58 地址常量（可读性高，适合配置与日志使用）
const (
	//  Programs
	SystemProgramStr    = "11111111111111111111111111111111"
	TokenProgramStr     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	TokenProgram2022Str = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"

	WSOLMintStr = "So11111111111111111111111111111111111111112"
	USDCMintStr = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	// Pump.fun bonding curve 程序
	PumpFunProgramStr = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

	// Raydium CPMM 程序
	RaydiumCPMMProgramStr = "CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C"
)

// 公钥形式的地址常量，用于链上比对
var (
	SystemProgram    = types.PubkeyFromBase58(SystemProgramStr)
	TokenProgram     = types.PubkeyFromBase58(TokenProgramStr)
	TokenProgram2022 = types.PubkeyFromBase58(TokenProgram2022Str)

	WSOLMint = types.PubkeyFromBase58(WSOLMintStr)
	USDCMint = types.PubkeyFromBase58(USDCMintStr)

	PumpFunProgram     = types.PubkeyFromBase58(PumpFunProgramStr)
	RaydiumCPMMProgram = types.PubkeyFromBase58(RaydiumCPMMProgramStr)
)

// IsSPLTokenProgram 判断 owner / programId 是否为 SPL Token（含 Token-2022）
func IsSPLTokenProgram(programID types.Pubkey) bool {
	return programID == TokenProgram || programID == TokenProgram2022
}
