package eventparser

import (
	"encoding/binary"
	"testing"

	"geyser-stream-sol/internal/consts"
	"geyser-stream-sol/internal/logic/core"
	"geyser-stream-sol/internal/logic/eventparser/common"
	"geyser-stream-sol/internal/logic/eventparser/pumpfun"
	"geyser-stream-sol/internal/logic/eventparser/raydiumcpmm"
	"geyser-stream-sol/internal/types"

	"github.com/near/borsh-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mint = types.PubkeyFromBase58("EPjFWdd5AufqSSqeM2qN1xyybapC8G4wEGGkZwyTDt1v")
	pool = types.PubkeyFromBase58("So11111111111111111111111111111111111111112")
)

func tradePayload(t *testing.T, e pumpfun.TradeEvent) []byte {
	payload, err := borsh.Serialize(e)
	require.NoError(t, err)
	return payload
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
	assert.Equal(t, []string{
		"pumpfun.TradeEvent",
		"pumpfun.CreateEvent",
		"pumpfun.CompleteEvent",
		"raydiumcpmm.SwapEvent",
	}, LogKinds().Kinds())
}

func TestParseLogs_MultiKindUsesRegistrationOrder(t *testing.T) {
	trade := pumpfun.TradeEvent{Mint: mint, SolAmount: 1, IsBuy: true}
	swap := raydiumcpmm.SwapEvent{PoolID: pool, InputAmount: 3}
	swapPayload, err := borsh.Serialize(swap)
	require.NoError(t, err)

	m, ok := ParseLogs([]string{
		common.EncodeProgramData(pumpfun.TradeEventDiscriminator, tradePayload(t, trade)),
		common.EncodeProgramData(raydiumcpmm.SwapEventDiscriminator, swapPayload),
	})
	require.True(t, ok)
	assert.Equal(t, "pumpfun.TradeEvent", m.Kind)
	assert.Equal(t, trade, m.Value)
}

func TestExtractEvents(t *testing.T) {
	trade := pumpfun.TradeEvent{Mint: mint, SolAmount: 5_000, TokenAmount: 7, IsBuy: true}
	payload := tradePayload(t, trade)

	buyDisc := pumpfun.Buy.Bytes()
	buyData := binary.LittleEndian.AppendUint64(buyDisc[:], 7)
	buyData = binary.LittleEndian.AppendUint64(buyData, 6_000)

	tx := &core.AdaptedTx{
		Slot:      300_000_000,
		TxIndex:   4,
		Signature: types.Signature{1, 2, 3},
		LogMessages: []string{
			"Program 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P invoke [1]",
			"Program log: Instruction: Buy",
			common.EncodeProgramData(pumpfun.TradeEventDiscriminator, payload),
		},
		Instructions: []*core.AdaptedInstruction{
			{IxIndex: 0, ProgramID: consts.SystemProgram, Data: []byte{2, 0, 0, 0}},
			{IxIndex: 1, ProgramID: consts.PumpFunProgram, Data: buyData},
		},
	}

	events := ExtractEvents(tx)
	require.Len(t, events, 2)

	logEvent := events[0]
	assert.Equal(t, "pumpfun.TradeEvent", logEvent.Kind)
	assert.Equal(t, core.SourceLog, logEvent.Source)
	assert.Equal(t, core.BuildEventID(4, core.SourceLog, 2), logEvent.ID)
	assert.Equal(t, uint64(300_000_000), logEvent.Slot)
	assert.Equal(t, trade, logEvent.Data)
	assert.Equal(t, mint[:], logEvent.Key())
	assert.Equal(t, consts.DexPumpfun, logEvent.Dex)

	frame, ok := common.DecodeProgramData(tx.LogMessages[2])
	require.True(t, ok)
	assert.Equal(t, frame, logEvent.Frame)

	ixEvent := events[1]
	assert.Equal(t, "pumpfun.Buy", ixEvent.Kind)
	assert.Equal(t, core.SourceInstruction, ixEvent.Source)
	assert.Equal(t, pumpfun.BuyArgs{Amount: 7, MaxSolCost: 6_000}, ixEvent.Data)
	assert.Equal(t, tx.Signature[:32], ixEvent.Key())
}

func TestExtractEvents_CpmmSwapKeyedByPool(t *testing.T) {
	disc := raydiumcpmm.SwapBaseInput.Bytes()
	data := binary.LittleEndian.AppendUint64(disc[:], 1_000)
	data = binary.LittleEndian.AppendUint64(data, 990)

	accounts := make([]types.Pubkey, 12)
	for i := range accounts {
		accounts[i][0] = byte(i + 1)
	}
	accounts[raydiumcpmm.SwapPoolAccountIndex] = pool

	tx := &core.AdaptedTx{
		Signature: types.Signature{9},
		Instructions: []*core.AdaptedInstruction{
			{IxIndex: 0, ProgramID: consts.RaydiumCPMMProgram, Accounts: accounts, Data: data},
			{IxIndex: 1, ProgramID: consts.RaydiumCPMMProgram, Accounts: accounts[:5], Data: data},
		},
	}

	events := ExtractEvents(tx)
	require.Len(t, events, 2)

	swap, ok := events[0].Data.(raydiumcpmm.SwapBaseInputInstruction)
	require.True(t, ok)
	assert.Equal(t, uint64(1_000), swap.AmountIn)
	assert.Equal(t, pool, swap.Pool)
	assert.Equal(t, accounts[10], swap.InputMint)
	assert.Equal(t, pool[:], events[0].Key())

	// 账户不足时只保留参数，key 退化为交易签名
	assert.Equal(t, raydiumcpmm.SwapBaseInputArgs{AmountIn: 1_000, MinimumAmountOut: 990}, events[1].Data)
	assert.Equal(t, tx.Signature[:32], events[1].Key())
}

func TestExtractEvents_CpiEventFillsTruncatedLogs(t *testing.T) {
	trade := pumpfun.TradeEvent{Mint: mint, SolAmount: 1}
	tag := common.EventCpiTag.Bytes()
	disc := pumpfun.TradeEventDiscriminator.Bytes()
	cpiData := append(append(tag[:], disc[:]...), tradePayload(t, trade)...)

	cpiIx := &core.AdaptedInstruction{IxIndex: 0, InnerIndex: 2, ProgramID: consts.PumpFunProgram, Data: cpiData}

	truncated := &core.AdaptedTx{
		LogMessages:  []string{"Log truncated"},
		Instructions: []*core.AdaptedInstruction{cpiIx},
	}
	events := ExtractEvents(truncated)
	require.Len(t, events, 1)
	assert.Equal(t, trade, events[0].Data)
	assert.Equal(t, core.SourceInstruction, events[0].Source)

	// 日志中已存在同类型事件时不重复输出
	withLogs := &core.AdaptedTx{
		LogMessages:  []string{common.EncodeProgramData(pumpfun.TradeEventDiscriminator, tradePayload(t, trade))},
		Instructions: []*core.AdaptedInstruction{cpiIx},
	}
	events = ExtractEvents(withLogs)
	require.Len(t, events, 1)
	assert.Equal(t, core.SourceLog, events[0].Source)
}

func TestExtractEvents_SkipsFailedAndEmpty(t *testing.T) {
	assert.Nil(t, ExtractEvents(nil))
	assert.Empty(t, ExtractEvents(&core.AdaptedTx{}))

	trade := pumpfun.TradeEvent{Mint: mint}
	failed := &core.AdaptedTx{
		Failed:      true,
		LogMessages: []string{common.EncodeProgramData(pumpfun.TradeEventDiscriminator, tradePayload(t, trade))},
	}
	assert.Nil(t, ExtractEvents(failed))
}
