package progress

import (
	"context"
	"os"
	"testing"
	"time"

	"geyser-stream-sol/internal/logic/core"
	"geyser-stream-sol/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := NewPostgresPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewPostgresStore(pool)
	require.NoError(t, store.EnsureSchema(ctx))
	// 重复执行不报错
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func TestPostgresStore_PublishIsIdempotent(t *testing.T) {
	store := newTestPostgresStore(t)
	ctx := context.Background()

	var sig types.Signature
	now := time.Now().UnixNano()
	for i := 0; i < 8; i++ {
		sig[i] = byte(now >> (8 * i))
	}
	t.Cleanup(func() {
		_, _ = store.pool.Exec(ctx, `DELETE FROM program_events WHERE signature = $1`, sig.String())
	})

	events := []*core.Event{
		{ID: core.BuildEventID(3, core.SourceLog, 5), Kind: "pumpfun.TradeEvent", Dex: 1, Discriminator: 0xbddb7fd34ee661ee,
			Slot: 300_000_000, TxIndex: 3, Signature: sig, Frame: []byte{0xbd, 1, 2}},
		{ID: core.BuildEventID(3, core.SourceInstruction, 1), Kind: "pumpfun.Buy", Dex: 1, Source: core.SourceInstruction,
			Slot: 300_000_000, TxIndex: 3, Signature: sig, Frame: []byte{0x66, 3}},
	}
	require.NoError(t, store.Publish(ctx, events))
	require.NoError(t, store.Publish(ctx, events))

	stored, err := store.EventsBySignature(ctx, sig)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, events[0].ID, stored[0].EventID)
	assert.Equal(t, "pumpfun.TradeEvent", stored[0].Kind)
	assert.Equal(t, core.SourceLog, stored[0].Source)
	assert.Equal(t, uint64(300_000_000), stored[0].Slot)
	assert.Equal(t, []byte{0xbd, 1, 2}, stored[0].Frame)
	assert.Equal(t, core.SourceInstruction, stored[1].Source)
}

func TestPostgresStore_SlotProgress(t *testing.T) {
	store := newTestPostgresStore(t)
	ctx := context.Background()

	slot := uint64(time.Now().UnixNano() & 0x7fffffffffff)
	t.Cleanup(func() {
		_, _ = store.pool.Exec(ctx, `DELETE FROM progress_slot WHERE slot = $1`, int64(slot))
	})

	status, err := store.GetSlotStatus(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, SlotUnknown, status)

	require.NoError(t, store.MarkSlotStatus(ctx, slot, SlotPending))
	require.NoError(t, store.MarkSlotProcessed(ctx, slot))
	status, err = store.GetSlotStatus(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, SlotProcessed, status)

	last, err := store.LastSlot(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, last, slot)
}
