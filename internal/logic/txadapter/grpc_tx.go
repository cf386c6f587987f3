package txadapter

import (
	"errors"
	"fmt"

	"geyser-stream-sol/internal/consts"
	"geyser-stream-sol/internal/logic/core"
	"geyser-stream-sol/internal/types"
	"geyser-stream-sol/internal/utils"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

var ErrInvalidTransaction = errors.New("invalid transaction")

// buildFullAccountKeys 构造交易中完整的账户 Pubkey 列表。
// 拼接 message.accountKeys 与 Address Lookup Table 中的 writable / readonly 地址，
// 供后续通过 accountIndex 索引使用。
func buildFullAccountKeys(
	accountKeys, loadedWritable, loadedReadonly [][]byte,
) ([]types.Pubkey, error) {
	total := len(accountKeys) + len(loadedWritable) + len(loadedReadonly)
	pubkeys := make([]types.Pubkey, total)

	i := 0 // 写入索引
	for _, group := range [][][]byte{accountKeys, loadedWritable, loadedReadonly} {
		for _, b := range group {
			if len(b) != 32 {
				return nil, fmt.Errorf("invalid pubkey at index %d: len=%d", i, len(b))
			}
			copy(pubkeys[i][:], b)
			i++
		}
	}
	return pubkeys, nil
}

// accountAt 越界时返回 error，避免节点数据异常导致 panic
func accountAt(accountKeys []types.Pubkey, idx uint32) (types.Pubkey, error) {
	if int(idx) >= len(accountKeys) {
		return types.Pubkey{}, fmt.Errorf("%w: account index %d out of range %d", ErrInvalidTransaction, idx, len(accountKeys))
	}
	return accountKeys[idx], nil
}

func resolveAccounts(accountKeys []types.Pubkey, indexes []byte) ([]types.Pubkey, error) {
	accounts := make([]types.Pubkey, 0, len(indexes))
	for _, idx := range indexes {
		key, err := accountAt(accountKeys, uint32(idx))
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, key)
	}
	return accounts, nil
}

// buildAdaptedInstructions 扁平化主指令与 inner 指令：
//   - IxIndex：主指令索引；
//   - InnerIndex：0 表示主指令，1 及以上表示对应的 inner 指令序号。
func buildAdaptedInstructions(
	tx *pb.SubscribeUpdateTransactionInfo,
	accountKeys []types.Pubkey,
) ([]*core.AdaptedInstruction, error) {
	rawInstructions := tx.GetTransaction().GetMessage().GetInstructions()
	rawInners := tx.GetMeta().GetInnerInstructions()

	// 假设每条主指令平均含有 2 条 inner 指令，最低保留 32 条
	instructions := make([]*core.AdaptedInstruction, 0, max(len(rawInstructions)*2, 32))
	innerIndex := 0

	for i, inst := range rawInstructions {
		programID, err := accountAt(accountKeys, inst.ProgramIdIndex)
		if err != nil {
			return nil, err
		}
		accounts, err := resolveAccounts(accountKeys, inst.Accounts)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, &core.AdaptedInstruction{
			IxIndex:    uint16(i),
			InnerIndex: 0,
			ProgramID:  programID,
			Accounts:   accounts,
			Data:       inst.Data,
		})

		// 每个主指令最多对应一个 inner 指令块，且按主指令索引递增排列，顺序匹配即可
		if innerIndex < len(rawInners) && int(rawInners[innerIndex].Index) == i {
			for j, inner := range rawInners[innerIndex].Instructions {
				innerProgram, err := accountAt(accountKeys, inner.ProgramIdIndex)
				if err != nil {
					return nil, err
				}
				innerAccounts, err := resolveAccounts(accountKeys, inner.Accounts)
				if err != nil {
					return nil, err
				}
				instructions = append(instructions, &core.AdaptedInstruction{
					IxIndex:    uint16(i),
					InnerIndex: uint16(j + 1),
					ProgramID:  innerProgram,
					Accounts:   innerAccounts,
					Data:       inner.Data,
				})
			}
			innerIndex++
		}
	}
	return instructions, nil
}

// buildAdaptedBalances 合并 Pre/PostTokenBalances，仅处理标准 SPL Token（含 Token-2022）账户。
// 先处理 Post（最终状态），再以 Pre 补充；只出现在 Pre 中的账户通常已被关闭。
func buildAdaptedBalances(
	meta *pb.TransactionStatusMeta,
	accountKeys []types.Pubkey,
) map[types.Pubkey]*core.TokenBalance {
	postList := meta.GetPostTokenBalances()
	preList := meta.GetPreTokenBalances()

	capacity := len(preList) + len(postList)
	balanceMap := make(map[types.Pubkey]*core.TokenBalance, capacity)
	resolver := newPubkeyResolver(capacity)

	isSPL := func(programID string) bool {
		// 旧版本节点不返回 programId，此时视为标准 Token
		return programID == "" || programID == consts.TokenProgramStr || programID == consts.TokenProgram2022Str
	}

	for _, post := range postList {
		if !isSPL(post.ProgramId) || int(post.AccountIndex) >= len(accountKeys) {
			continue
		}
		account := accountKeys[post.AccountIndex]
		balanceMap[account] = &core.TokenBalance{
			TokenAccount: account,
			Token:        resolver.resolve(post.Mint),
			Owner:        resolver.resolve(post.Owner),
			PostBalance:  utils.ParseUint64(post.GetUiTokenAmount().GetAmount()),
			Decimals:     uint8(post.GetUiTokenAmount().GetDecimals()),
		}
	}

	for _, pre := range preList {
		if !isSPL(pre.ProgramId) || int(pre.AccountIndex) >= len(accountKeys) {
			continue
		}
		account := accountKeys[pre.AccountIndex]
		amount := utils.ParseUint64(pre.GetUiTokenAmount().GetAmount())
		if tb, ok := balanceMap[account]; ok {
			tb.PreBalance = amount
			continue
		}
		balanceMap[account] = &core.TokenBalance{
			TokenAccount: account,
			Token:        resolver.resolve(pre.Mint),
			Owner:        resolver.resolve(pre.Owner),
			PreBalance:   amount,
			Decimals:     uint8(pre.GetUiTokenAmount().GetDecimals()),
		}
	}
	return balanceMap
}

// AdaptGrpcTx 将 gRPC 推送的交易解析为 AdaptedTx：
//  1. 构建 accountKeys（含 Address Lookup）；
//  2. 构建指令（主 + inner）；
//  3. 构建 Token 余额；
//  4. 复制日志、手续费、CU 与失败标记。
//
// 任何 panic 都会被 recover 为 error。
func AdaptGrpcTx(update *pb.SubscribeUpdateTransaction) (_ *core.AdaptedTx, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("AdaptGrpcTx panic: %v", r)
		}
	}()

	tx := update.GetTransaction()
	msg := tx.GetTransaction().GetMessage()
	meta := tx.GetMeta()
	if msg == nil || meta == nil {
		return nil, fmt.Errorf("%w: missing message or meta", ErrInvalidTransaction)
	}

	accountKeys, err := buildFullAccountKeys(
		msg.AccountKeys,
		meta.LoadedWritableAddresses,
		meta.LoadedReadonlyAddresses,
	)
	if err != nil {
		return nil, fmt.Errorf("buildFullAccountKeys: %w", err)
	}
	if len(accountKeys) == 0 {
		return nil, fmt.Errorf("%w: empty accountKeys", ErrInvalidTransaction)
	}

	// 优先使用 update 上的签名，其次取交易中的首个签名
	rawSig := tx.GetSignature()
	if len(rawSig) == 0 && len(tx.GetTransaction().GetSignatures()) > 0 {
		rawSig = tx.GetTransaction().GetSignatures()[0]
	}
	signature, err := types.SignatureFromBytes(rawSig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}

	// 前 N 个账户即为 signer
	signerCount := int(msg.GetHeader().GetNumRequiredSignatures())
	if signerCount == 0 || len(accountKeys) < signerCount {
		return nil, fmt.Errorf("%w: signer count %d", ErrInvalidTransaction, signerCount)
	}

	instructions, err := buildAdaptedInstructions(tx, accountKeys)
	if err != nil {
		return nil, err
	}

	return &core.AdaptedTx{
		Slot:         update.GetSlot(),
		TxIndex:      uint32(tx.GetIndex()),
		Signature:    signature,
		IsVote:       tx.GetIsVote(),
		Failed:       meta.GetErr() != nil,
		Fee:          meta.GetFee(),
		ComputeUnits: meta.GetComputeUnitsConsumed(),
		AccountKeys:  accountKeys,
		Signers:      accountKeys[:signerCount:signerCount],
		Instructions: instructions,
		LogMessages:  meta.GetLogMessages(),
		Balances:     buildAdaptedBalances(meta, accountKeys),
	}, nil
}
