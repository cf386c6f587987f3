package grpc

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeRanges(t *testing.T) {
	now := time.Now()
	merged := mergeRanges([]SlotRange{
		{From: 20, To: 25, SubmitAt: now},
		{From: 10, To: 12, SubmitAt: now},
		{From: 13, To: 15, SubmitAt: now},
	})
	require.Len(t, merged, 1)
	assert.Equal(t, uint64(10), merged[0].From)
	assert.Equal(t, uint64(25), merged[0].To)

	assert.Nil(t, mergeRanges(nil))
}

func TestMergeRanges_SplitsLargeRange(t *testing.T) {
	merged := mergeRanges([]SlotRange{{From: 0, To: 25000}})
	require.Len(t, merged, 3)
	for _, r := range merged {
		assert.LessOrEqual(t, r.To-r.From+1, uint64(10000))
	}
	assert.Equal(t, uint64(0), merged[0].From)
	assert.Equal(t, uint64(25000), merged[2].To)
}

func TestFillEmptySlots(t *testing.T) {
	empty := make(map[uint64]struct{})
	fillEmptySlots(100, 106, []uint64{104, 101}, empty)
	assert.Len(t, empty, 5)
	for _, s := range []uint64{100, 102, 103, 105, 106} {
		assert.Contains(t, empty, s)
	}

	empty = make(map[uint64]struct{})
	fillEmptySlots(1, 3, nil, empty)
	assert.Len(t, empty, 3)

	empty = make(map[uint64]struct{})
	fillEmptySlots(1, 3, []uint64{1, 2, 3}, empty)
	assert.Empty(t, empty)
}

func TestSlotInFailedRanges(t *testing.T) {
	failed := []SlotRange{{From: 10, To: 20}, {From: 40, To: 50}}
	assert.False(t, slotInFailedRanges(5, failed))
	assert.True(t, slotInFailedRanges(10, failed))
	assert.True(t, slotInFailedRanges(20, failed))
	assert.False(t, slotInFailedRanges(30, failed))
	assert.True(t, slotInFailedRanges(45, failed))
	assert.False(t, slotInFailedRanges(51, failed))
}

func TestCheckSlotRanges(t *testing.T) {
	s := newSlotChecker(func(ctx context.Context, from, to uint64) ([]uint64, error) {
		return []uint64{102}, nil
	})
	defer s.Stop()

	result := s.checkSlotRanges([]SlotRange{{From: 100, To: 104}})
	assert.Equal(t, []uint64{100, 101, 103, 104}, result.Empty)
	assert.Equal(t, []uint64{102}, result.Missing)
}

func TestCheckSlotRanges_FailedQueryIsInconclusive(t *testing.T) {
	var calls atomic.Int32
	s := newSlotChecker(func(ctx context.Context, from, to uint64) ([]uint64, error) {
		calls.Add(1)
		return nil, errors.New("rpc unavailable")
	})
	defer s.Stop()

	result := s.checkSlotRanges([]SlotRange{{From: 7, To: 9}})
	assert.Empty(t, result.Empty)
	assert.Empty(t, result.Missing)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetBlocksWithRetry_RecoversPanic(t *testing.T) {
	s := newSlotChecker(func(ctx context.Context, from, to uint64) ([]uint64, error) {
		panic("bad response")
	})
	defer s.Stop()

	_, err := s.getBlocksWithRetry(1, 2, 3)
	assert.Error(t, err)
}

func TestSubmit_RejectsInvertedRange(t *testing.T) {
	s := newSlotChecker(nil)
	defer s.Stop()

	s.Submit(10, 5)
	assert.Len(t, s.rangeCh, 0)
	s.Submit(5, 10)
	assert.Len(t, s.rangeCh, 1)
}

func TestNewSlotChecker_RequiresEndpoint(t *testing.T) {
	_, err := NewSlotChecker("")
	assert.Error(t, err)
}
