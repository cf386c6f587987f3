package pumpfun

import (
	"geyser-stream-sol/internal/logic/eventparser/common"
	"geyser-stream-sol/internal/types"
)

// 三个 borsh 字符串各自至少 4 字节长度前缀，外加 3 个 Pubkey
const createEventMinSize = 4*3 + 32*3

// CreateEvent 新币创建事件，字符串为变长字段。
// 示例交易：https://solscan.io/tx/5hHxQWz2H7FNv7oNoDHTmqhAGZLDjW5dTgX1sazUAPnXoY5MqirHnV5oPoJPQSAH6A11ynzKeqmTVB7Cy52iTbcK
type CreateEvent struct {
	Name         string
	Symbol       string
	Uri          string
	Mint         types.Pubkey
	BondingCurve types.Pubkey
	User         types.Pubkey
}

var CreateKind = common.NewBorshKind[CreateEvent]("pumpfun.CreateEvent", CreateEventDiscriminator, createEventMinSize)

func (e CreateEvent) EventKey() types.Pubkey {
	return e.Mint
}
