package core

import (
	"geyser-stream-sol/internal/types"
)

// EventSource 事件来源：程序日志（Program data）或指令数据
type EventSource uint8

const (
	SourceLog         EventSource = 0
	SourceInstruction EventSource = 1
)

func (s EventSource) String() string {
	if s == SourceInstruction {
		return "instruction"
	}
	return "log"
}

// KeyedEvent 由具体事件类型实现，提供 Kafka 分区 key（通常为 mint 或 pool）
type KeyedEvent interface {
	EventKey() types.Pubkey
}

// Event 是从一笔交易中解析出的单个类型化事件（不可变值，由调用方持有）
type Event struct {
	ID            uint64          // 交易内唯一事件 ID，见 BuildEventID
	Kind          string          // 事件类型名称，如 "pumpfun.TradeEvent"
	Dex           int             // 协议来源，见 consts.DexName
	Discriminator uint64          // 8 字节判别符（大端）
	Source        EventSource     // 日志事件 / 指令事件
	Slot          uint64          // 所属 slot
	TxIndex       uint32          // 交易在区块中的序号
	Signature     types.Signature // 交易签名
	Frame         []byte          // 原始帧：判别符 + payload，原样转发到 Kafka
	Data          any             // 解码后的具体事件结构（值类型）
}

// Key 返回分区 key；事件未实现 KeyedEvent 时退化为交易签名前 32 字节
func (e *Event) Key() []byte {
	if keyed, ok := e.Data.(KeyedEvent); ok {
		k := keyed.EventKey()
		return k[:]
	}
	return e.Signature[:32]
}

// MaxEventPosition position 的最大值（30 bit）
const MaxEventPosition = 1<<30 - 1

// BuildEventID 构造事件 ID（uint64，写入 BIGINT 仍为正数，按交易顺序递增）：
//
//	[ 32 bits txIndex ] [ 1 bit source ] [ 30 bits position ]
//
// position 对日志事件为日志行号（见 LogPosition），对指令事件见 InstructionPosition。
func BuildEventID(txIndex uint32, source EventSource, position uint32) uint64 {
	if position > MaxEventPosition {
		position = MaxEventPosition
	}
	return uint64(txIndex)<<31 | uint64(source&1)<<30 | uint64(position)
}

// LogPosition 将日志行号转换为 position
func LogPosition(line int) uint32 {
	switch {
	case line < 0:
		return 0
	case line > MaxEventPosition:
		return MaxEventPosition
	}
	return uint32(line)
}

// InstructionPosition 将指令位置编码为 position：ixIndex<<15 | innerIndex。
// 单笔交易的指令追踪长度远小于 2^15，两部分都不会溢出。
func InstructionPosition(ixIndex, innerIndex uint16) uint32 {
	return uint32(ixIndex&0x7fff)<<15 | uint32(innerIndex&0x7fff)
}
