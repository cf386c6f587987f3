package txadapter

import (
	"fmt"

	"geyser-stream-sol/internal/consts"
	"geyser-stream-sol/internal/logic/core"
	"geyser-stream-sol/internal/types"

	"github.com/blocto/solana-go-sdk/program/token"
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// SPL Token 账户的固定布局长度；Token-2022 带扩展的账户更长，不做解码
const splTokenAccountSize = 165

// AdaptAccount 将 gRPC 账户更新转换为 AdaptedAccount；
// owner 为 SPL Token 程序且数据长度为 165 字节时，附带解码后的 TokenAccount。
func AdaptAccount(update *pb.SubscribeUpdateAccount) (*core.AdaptedAccount, error) {
	info := update.GetAccount()
	if info == nil {
		return nil, fmt.Errorf("AdaptAccount: missing account info, slot=%d", update.GetSlot())
	}

	pubkey, err := types.PubkeyFromBytes(info.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("AdaptAccount: pubkey: %w", err)
	}
	owner, err := types.PubkeyFromBytes(info.Owner)
	if err != nil {
		return nil, fmt.Errorf("AdaptAccount: owner: %w", err)
	}

	account := &core.AdaptedAccount{
		Slot:         update.GetSlot(),
		IsStartup:    update.GetIsStartup(),
		Pubkey:       pubkey,
		Owner:        owner,
		Lamports:     info.Lamports,
		WriteVersion: info.WriteVersion,
		Data:         info.Data,
	}

	if len(info.TxnSignature) > 0 {
		sig, err := types.SignatureFromBytes(info.TxnSignature)
		if err != nil {
			return nil, fmt.Errorf("AdaptAccount: txn signature: %w", err)
		}
		account.TxnSignature = &sig
	}

	if consts.IsSPLTokenProgram(owner) && len(info.Data) == splTokenAccountSize {
		if ta, err := token.TokenAccountFromData(info.Data); err == nil {
			account.TokenAccount = &ta
		}
	}
	return account, nil
}
