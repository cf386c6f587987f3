package eventparser

import (
	"runtime/debug"
	"sync"

	"geyser-stream-sol/internal/logic/core"
	"geyser-stream-sol/internal/logic/eventparser/common"
	"geyser-stream-sol/internal/logic/eventparser/pumpfun"
	"geyser-stream-sol/internal/logic/eventparser/raydiumcpmm"
	"geyser-stream-sol/internal/pkg/logger"
	"geyser-stream-sol/internal/types"
)

var (
	// logKinds 日志事件注册表，注册顺序即多类型命中时的优先级
	logKinds = common.NewRegistry()

	// instrKinds 是 Solana ProgramID → 指令类型注册表的路由表
	instrKinds = map[types.Pubkey]*common.Registry{}

	initOnce sync.Once
)

// Init 注册所有协议的事件与指令类型，可重复调用
func Init() {
	initOnce.Do(func() {
		pumpfun.RegisterKinds(logKinds)
		raydiumcpmm.RegisterKinds(logKinds)

		pumpfun.RegisterInstructionKinds(instrKinds)
		raydiumcpmm.RegisterInstructionKinds(instrKinds)
	})
}

// LogKinds 返回日志事件注册表（只读使用）
func LogKinds() *common.Registry {
	Init()
	return logKinds
}

// ParseLogs 在所有已注册类型中解析一批日志，按注册顺序返回第一个命中的类型的最后一个事件
func ParseLogs(logs []string) (common.Match, bool) {
	return LogKinds().ParseLogs(logs)
}

// ExtractEvents 从一笔交易中解析所有事件：
//  1. 日志事件：每个已注册类型取最后一个可解码的实例；
//  2. 指令事件：已注册 Program 的指令参数；
//  3. emit_cpi! 事件：仅当同类型事件未在日志中出现时补充（日志被截断的情况）。
func ExtractEvents(tx *core.AdaptedTx) (result []*core.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[eventparser::ExtractEvents] panic tx=%s: %+v\nstack: %s", tx.Signature, r, debug.Stack())
			result = nil
		}
	}()

	Init()
	if tx == nil || tx.Failed {
		return nil
	}

	fromLogs := make(map[string]struct{}, 2)
	for _, m := range logKinds.ParseAllKinds(tx.LogMessages) {
		fromLogs[m.Kind] = struct{}{}
		result = append(result, buildEvent(tx, m, core.SourceLog, core.LogPosition(m.Line)))
	}

	for _, ix := range tx.Instructions {
		r, ok := instrKinds[ix.ProgramID]
		if !ok {
			continue
		}
		pos := core.InstructionPosition(ix.IxIndex, ix.InnerIndex)

		if frame, ok := common.UnwrapEventCpi(ix.Data); ok {
			m, ok := logKinds.DecodeFrame(frame)
			if !ok {
				continue
			}
			if _, dup := fromLogs[m.Kind]; dup {
				continue
			}
			result = append(result, buildEvent(tx, m, core.SourceInstruction, pos))
			continue
		}

		if m, ok := r.DecodeFrame(ix.Data); ok {
			m.BindAccounts(ix.Accounts)
			result = append(result, buildEvent(tx, m, core.SourceInstruction, pos))
		}
	}
	return result
}

func buildEvent(tx *core.AdaptedTx, m common.Match, source core.EventSource, position uint32) *core.Event {
	return &core.Event{
		ID:            core.BuildEventID(tx.TxIndex, source, position),
		Kind:          m.Kind,
		Dex:           m.Dex,
		Discriminator: uint64(m.Discriminator),
		Source:        source,
		Slot:          tx.Slot,
		TxIndex:       tx.TxIndex,
		Signature:     tx.Signature,
		Frame:         m.Frame,
		Data:          m.Value,
	}
}
