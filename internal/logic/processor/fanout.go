package processor

import (
	"context"
	"errors"

	"geyser-stream-sol/internal/logic/core"
)

// Sinks 依次写入多个下游；某个下游失败不影响其余下游
type Sinks []EventSink

func (s Sinks) Publish(ctx context.Context, events []*core.Event) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Publish(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SlotProgresses 同时记录到多个进度存储
type SlotProgresses []SlotProgress

func (s SlotProgresses) MarkSlotProcessed(ctx context.Context, slot uint64) error {
	var errs []error
	for _, p := range s {
		if err := p.MarkSlotProcessed(ctx, slot); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
