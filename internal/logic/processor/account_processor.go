package processor

import (
	"context"
	"time"

	"geyser-stream-sol/internal/logic/core"
	"geyser-stream-sol/internal/logic/txadapter"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/zeromicro/go-zero/core/logx"
)

// AccountProcessor 打印账户更新，配置了下游时原样转发
type AccountProcessor struct {
	sink        AccountSink
	sendTimeout time.Duration
	onAccount   func(*core.AdaptedAccount)
	logx.Logger
}

func NewAccountProcessor(sink AccountSink, sendTimeout time.Duration) *AccountProcessor {
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}
	p := &AccountProcessor{
		sink:        sink,
		sendTimeout: sendTimeout,
		Logger:      logx.WithContext(context.Background()).WithFields(logx.Field("service", "account_processor")),
	}
	p.onAccount = p.logAccount
	return p
}

func (p *AccountProcessor) OnAccount(update *pb.SubscribeUpdateAccount) {
	acc, err := txadapter.AdaptAccount(update)
	if err != nil {
		p.Errorf("adapt account update at slot %d failed: %v", update.GetSlot(), err)
		return
	}
	p.onAccount(acc)

	if p.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.sendTimeout)
	defer cancel()
	if err := p.sink.PublishAccount(ctx, update); err != nil {
		p.Errorf("publish account %s failed: %v", acc.Pubkey, err)
	}
}

func (p *AccountProcessor) logAccount(acc *core.AdaptedAccount) {
	if ta := acc.TokenAccount; ta != nil {
		p.Infof("token account %s slot=%d mint=%s owner=%s amount=%d startup=%v",
			acc.Pubkey, acc.Slot, ta.Mint.ToBase58(), ta.Owner.ToBase58(), ta.Amount, acc.IsStartup)
		return
	}
	p.Infof("account %s slot=%d owner=%s lamports=%d data_len=%d startup=%v",
		acc.Pubkey, acc.Slot, acc.Owner, acc.Lamports, len(acc.Data), acc.IsStartup)
}
