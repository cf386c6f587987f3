package core

import (
	"testing"

	"geyser-stream-sol/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestBuildEventID_LogLinesDoNotCollide(t *testing.T) {
	// 超过 16 bit 的日志行号仍得到不同的 ID
	a := BuildEventID(7, SourceLog, LogPosition(1))
	b := BuildEventID(7, SourceLog, LogPosition(65_537))
	assert.NotEqual(t, a, b)
	assert.Equal(t, uint32(65_537), LogPosition(65_537))

	assert.Equal(t, uint32(0), LogPosition(-1))
	assert.Equal(t, uint32(MaxEventPosition), LogPosition(MaxEventPosition+10))
	assert.Equal(t, BuildEventID(7, SourceLog, MaxEventPosition), BuildEventID(7, SourceLog, MaxEventPosition+1))
}

func TestBuildEventID_Layout(t *testing.T) {
	logID := BuildEventID(3, SourceLog, 5)
	ixID := BuildEventID(3, SourceInstruction, 5)
	assert.NotEqual(t, logID, ixID)
	assert.Equal(t, uint64(3)<<31|5, logID)
	assert.Equal(t, uint64(3)<<31|1<<30|5, ixID)

	// txIndex 为高位，ID 按交易顺序递增，且写入 BIGINT 不为负
	assert.Less(t, BuildEventID(3, SourceInstruction, MaxEventPosition), BuildEventID(4, SourceLog, 0))
	assert.LessOrEqual(t, BuildEventID(^uint32(0), SourceInstruction, MaxEventPosition), uint64(1<<63-1))
}

func TestInstructionPosition(t *testing.T) {
	assert.Equal(t, uint32(2)<<15|3, InstructionPosition(2, 3))
	assert.NotEqual(t, InstructionPosition(0, 300), InstructionPosition(1, 44))
	assert.LessOrEqual(t, InstructionPosition(0x7fff, 0x7fff), uint32(MaxEventPosition))
}

type keyed struct{ k types.Pubkey }

func (e keyed) EventKey() types.Pubkey { return e.k }

func TestEventKey(t *testing.T) {
	ev := &Event{Signature: types.Signature{1, 2}, Data: keyed{k: types.Pubkey{9}}}
	assert.Equal(t, byte(9), ev.Key()[0])

	ev.Data = struct{}{}
	assert.Equal(t, ev.Signature[:32], ev.Key())
}
