package processor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"geyser-stream-sol/internal/consts"
	"geyser-stream-sol/internal/logic/core"
	"geyser-stream-sol/internal/logic/eventparser"
	"geyser-stream-sol/internal/logic/txadapter"
	"geyser-stream-sol/internal/types"
	"geyser-stream-sol/internal/utils"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/zeromicro/go-zero/core/logx"
)

const (
	defaultTxChanSize = 4096
	defaultBatchSize  = 64
)

type TxProcessorOptions struct {
	ChanSize     int
	BatchSize    int           // 单批最多处理的交易数
	Workers      int           // 并发解析协程数，默认 CpuCount+2
	Sink         EventSink     // 为空时只打印日志
	Deduper      SignatureDeduper
	SendTimeout  time.Duration // 单批事件发布超时
	RedisTimeout time.Duration
	OnEvent      func(*core.Event) // 每个新事件的回调，默认打印日志
}

// TxProcessor 接收交易更新，微批并发解析事件，去重后发布
type TxProcessor struct {
	txChan  chan *pb.SubscribeUpdateTransaction
	opts    TxProcessorOptions
	dropped atomic.Uint64
	ctx     context.Context
	cancel  func(err error)
	logx.Logger
}

type parsedTx struct {
	update *pb.SubscribeUpdateTransaction
	tx     *core.AdaptedTx
	events []*core.Event
}

func NewTxProcessor(opts TxProcessorOptions) *TxProcessor {
	if opts.ChanSize <= 0 {
		opts.ChanSize = defaultTxChanSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = consts.CpuCount + 2
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}
	if opts.RedisTimeout <= 0 {
		opts.RedisTimeout = time.Second
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	p := &TxProcessor{
		txChan: make(chan *pb.SubscribeUpdateTransaction, opts.ChanSize),
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		Logger: logx.WithContext(ctx).WithFields(logx.Field("service", "tx_processor")),
	}
	if p.opts.OnEvent == nil {
		p.opts.OnEvent = p.logEvent
	}
	eventparser.Init()
	return p
}

// OnTransaction 供订阅流回调，不阻塞接收协程；队列满时丢弃并计数
func (p *TxProcessor) OnTransaction(update *pb.SubscribeUpdateTransaction) {
	select {
	case p.txChan <- update:
	default:
		n := p.dropped.Add(1)
		p.Errorf("tx chan is full, dropped tx at slot %d (total dropped %d)", update.GetSlot(), n)
	}
}

func (p *TxProcessor) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *TxProcessor) Start() {
	batch := make([]*pb.SubscribeUpdateTransaction, 0, p.opts.BatchSize)
	for {
		select {
		case <-p.ctx.Done():
			return
		case update := <-p.txChan:
			batch = append(batch[:0], update)
			batch = p.drain(batch)
			p.ProcessBatch(batch)
			if len(p.txChan) > p.opts.BatchSize {
				p.Debugf("tx chan len:%v", len(p.txChan))
			}
		}
	}
}

func (p *TxProcessor) Stop() {
	p.cancel(errors.New("service stop"))
}

// drain 非阻塞地取出已排队的交易，凑满一批
func (p *TxProcessor) drain(batch []*pb.SubscribeUpdateTransaction) []*pb.SubscribeUpdateTransaction {
	for len(batch) < p.opts.BatchSize {
		select {
		case update := <-p.txChan:
			batch = append(batch, update)
		default:
			return batch
		}
	}
	return batch
}

// ProcessBatch 并发解析一批交易，返回去重后发布的事件
func (p *TxProcessor) ProcessBatch(updates []*pb.SubscribeUpdateTransaction) []*core.Event {
	if len(updates) == 0 {
		return nil
	}

	results := utils.ParallelMap(updates, p.opts.Workers, p.parseTx)

	total := 0
	for _, r := range results {
		total += len(r.events)
	}
	if total == 0 {
		return nil
	}

	events := make([]*core.Event, 0, total)
	var claimed []types.Signature
	for _, r := range results {
		if len(r.events) == 0 {
			continue
		}
		isNew, marked := p.claim(r.tx)
		if !isNew {
			continue
		}
		if marked {
			claimed = append(claimed, r.tx.Signature)
		}
		events = append(events, r.events...)
	}
	if len(events) == 0 {
		return nil
	}

	for _, ev := range events {
		p.opts.OnEvent(ev)
	}

	if p.opts.Sink != nil {
		ctx, cancel := context.WithTimeout(p.ctx, p.opts.SendTimeout)
		defer cancel()
		if err := p.opts.Sink.Publish(ctx, events); err != nil {
			p.Errorf("publish %d events failed: %v", len(events), err)
			// 发布失败时撤销签名登记，重推的同一交易仍会被处理
			p.release(claimed)
		}
	}
	return events
}

func (p *TxProcessor) parseTx(update *pb.SubscribeUpdateTransaction) parsedTx {
	if err := txadapter.ValidateGrpcTx(update); err != nil {
		if !errors.Is(err, txadapter.ErrVoteTx) && !errors.Is(err, txadapter.ErrFailedTx) {
			p.Debugf("skip tx at slot %d: %v", update.GetSlot(), err)
		}
		return parsedTx{update: update}
	}
	tx, err := txadapter.AdaptGrpcTx(update)
	if err != nil {
		p.Debugf("skip tx at slot %d: %v", update.GetSlot(), err)
		return parsedTx{update: update}
	}
	return parsedTx{
		update: update,
		tx:     tx,
		events: eventparser.ExtractEvents(tx),
	}
}

// claim 登记交易签名。isNew=false 表示重复交易；marked 表示本次确实写入了登记。
// Redis 不可用时按新交易处理（至少一次）
func (p *TxProcessor) claim(tx *core.AdaptedTx) (isNew, marked bool) {
	if p.opts.Deduper == nil {
		return true, false
	}
	ctx, cancel := context.WithTimeout(p.ctx, p.opts.RedisTimeout)
	defer cancel()
	ok, err := p.opts.Deduper.MarkIfNew(ctx, tx.Signature)
	if err != nil {
		p.Errorf("dedupe tx %s failed: %v", tx.Signature, err)
		return true, false
	}
	if !ok {
		p.Debugf("duplicate tx %s, skipped", tx.Signature)
	}
	return ok, ok
}

func (p *TxProcessor) release(sigs []types.Signature) {
	if p.opts.Deduper == nil || len(sigs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(p.ctx, p.opts.RedisTimeout)
	defer cancel()
	if err := p.opts.Deduper.Forget(ctx, sigs...); err != nil {
		p.Errorf("release %d signatures failed: %v", len(sigs), err)
	}
}

func (p *TxProcessor) logEvent(ev *core.Event) {
	p.Infof("[%s] %s slot=%d tx=%s source=%s data=%+v",
		consts.DexName(ev.Dex), ev.Kind, ev.Slot, ev.Signature, ev.Source, ev.Data)
}
