package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"geyser-stream-sol/internal/config"
	"geyser-stream-sol/internal/pkg/logger"
	"geyser-stream-sol/internal/types"

	"github.com/blocto/solana-go-sdk/client"
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// getMultipleAccounts 单次请求的账户上限
const maxAccountsPerRequest = 100

type accountFetcher interface {
	GetMultipleAccounts(ctx context.Context, addrs []string) ([]client.AccountInfo, error)
	GetSlot(ctx context.Context) (uint64, error)
}

// AccountSnapshotService 通过 JSON-RPC 拉取订阅账户的当前状态，
// 以账户更新的形式交给 handler，补齐订阅建立之前的账户数据
type AccountSnapshotService struct {
	client   accountFetcher
	accounts []string
	interval time.Duration
	handler  func(*pb.SubscribeUpdateAccount)
	stopChan chan struct{}
	ctx      context.Context
	cancel   func(err error)
}

func NewAccountSnapshotService(cfg config.RpcConfig, accounts []string, handler func(*pb.SubscribeUpdateAccount)) (*AccountSnapshotService, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("account snapshot needs rpc endpoint")
	}
	return newAccountSnapshotService(client.NewClient(cfg.Endpoint), accounts,
		time.Duration(cfg.SnapshotIntervalSec)*time.Second, handler)
}

func newAccountSnapshotService(c accountFetcher, accounts []string, interval time.Duration, handler func(*pb.SubscribeUpdateAccount)) (*AccountSnapshotService, error) {
	if handler == nil {
		return nil, errors.New("account snapshot handler is nil")
	}
	for _, a := range accounts {
		if _, err := types.TryPubkeyFromBase58(a); err != nil {
			return nil, fmt.Errorf("invalid account %q: %w", a, err)
		}
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	return &AccountSnapshotService{
		client:   c,
		accounts: accounts,
		interval: interval,
		handler:  handler,
		stopChan: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (s *AccountSnapshotService) Start() {
	// 初始快照，失败重试
	const retryCount = 3
	for i := 0; i <= retryCount; i++ {
		n, err := s.update(true)
		if err == nil {
			logger.Infof("[AccountSnapshot] 初始快照完成, 账户数: %d", n)
			break
		}
		logger.Warnf("[AccountSnapshot] 第 %d 次初始快照失败: %v", i+1, err)
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}

	if s.interval > 0 {
		s.scheduleNext()
	}
	<-s.stopChan
}

func (s *AccountSnapshotService) scheduleNext() {
	time.AfterFunc(s.interval, func() {
		if _, err := s.update(false); err != nil {
			logger.Warnf("[AccountSnapshot] 周期性更新失败: %v", err)
		}
		select {
		case <-s.ctx.Done():
			return
		default:
			s.scheduleNext()
		}
	})
}

func (s *AccountSnapshotService) Stop() {
	s.cancel(errors.New("AccountSnapshotService stop"))
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
}

// update 拉取全部账户并逐个回调，返回回调的账户数
func (s *AccountSnapshotService) update(startup bool) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[AccountSnapshot] update panic: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("update panic: %v", r)
		}
	}()

	if len(s.accounts) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	slot, err := s.client.GetSlot(ctx)
	if err != nil {
		return 0, fmt.Errorf("GetSlot failed: %w", err)
	}

	for start := 0; start < len(s.accounts); start += maxAccountsPerRequest {
		end := min(start+maxAccountsPerRequest, len(s.accounts))
		chunk := s.accounts[start:end]

		begin := time.Now()
		infos, err := s.client.GetMultipleAccounts(ctx, chunk)
		if err != nil {
			return n, fmt.Errorf("GetMultipleAccounts failed: %w", err)
		}
		if len(infos) != len(chunk) {
			return n, fmt.Errorf("返回账户数与请求不一致: got=%d want=%d", len(infos), len(chunk))
		}
		logger.Debugf("[AccountSnapshot] GetMultipleAccounts 成功, 账户数: %d, 耗时: %v", len(chunk), time.Since(begin))

		for i, info := range infos {
			pubkey := types.PubkeyFromBase58(chunk[i])
			if types.Pubkey(info.Owner).IsZero() && info.Lamports == 0 {
				logger.Warnf("[AccountSnapshot] 账户不存在: %s", chunk[i])
				continue
			}
			s.handler(toAccountUpdate(slot, startup, pubkey, info))
			n++
		}
	}
	return n, nil
}

func toAccountUpdate(slot uint64, startup bool, pubkey types.Pubkey, info client.AccountInfo) *pb.SubscribeUpdateAccount {
	owner := types.Pubkey(info.Owner)
	return &pb.SubscribeUpdateAccount{
		Slot:      slot,
		IsStartup: startup,
		Account: &pb.SubscribeUpdateAccountInfo{
			Pubkey:     pubkey[:],
			Lamports:   info.Lamports,
			Owner:      owner[:],
			Executable: info.Executable,
			RentEpoch:  info.RentEpoch,
			Data:       info.Data,
		},
	}
}
