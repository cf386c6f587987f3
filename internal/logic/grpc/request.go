package grpc

import (
	"strings"

	"geyser-stream-sol/internal/config"
	"geyser-stream-sol/internal/consts"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// ParseCommitment 未识别的值按 processed 处理（配置加载时已校验）
func ParseCommitment(s string) pb.CommitmentLevel {
	switch strings.ToLower(s) {
	case "confirmed":
		return pb.CommitmentLevel_CONFIRMED
	case "finalized":
		return pb.CommitmentLevel_FINALIZED
	default:
		return pb.CommitmentLevel_PROCESSED
	}
}

// BuildTransactionsRequest 订阅涉及指定账户的交易，vote / failed 按配置过滤
func BuildTransactionsRequest(cfg config.SubscribeConfig) *pb.SubscribeRequest {
	commitment := ParseCommitment(cfg.Commitment)
	return &pb.SubscribeRequest{
		Transactions: map[string]*pb.SubscribeRequestFilterTransactions{
			consts.DefaultSubscribeFilterName: {
				Vote:            boolPtr(cfg.Vote),
				Failed:          boolPtr(cfg.Failed),
				AccountInclude:  cfg.AccountInclude,
				AccountExclude:  cfg.AccountExclude,
				AccountRequired: cfg.AccountRequired,
			},
		},
		Commitment: &commitment,
	}
}

// BuildAccountsRequest 订阅指定账户或指定 owner 下的账户变更
func BuildAccountsRequest(cfg config.SubscribeConfig) *pb.SubscribeRequest {
	commitment := ParseCommitment(cfg.Commitment)
	return &pb.SubscribeRequest{
		Accounts: map[string]*pb.SubscribeRequestFilterAccounts{
			consts.DefaultSubscribeFilterName: {
				Account: cfg.Accounts,
				Owner:   cfg.Owners,
			},
		},
		Commitment: &commitment,
	}
}

// BuildBlocksMetaRequest 只订阅区块元数据（不含交易），用于延迟统计
func BuildBlocksMetaRequest(cfg config.SubscribeConfig) *pb.SubscribeRequest {
	commitment := ParseCommitment(cfg.Commitment)
	return &pb.SubscribeRequest{
		BlocksMeta: map[string]*pb.SubscribeRequestFilterBlocksMeta{
			consts.DefaultSubscribeFilterName: {},
		},
		Commitment: &commitment,
	}
}

// PingRequest 客户端心跳，以及对服务端 ping 的应答
func PingRequest() *pb.SubscribeRequest {
	return &pb.SubscribeRequest{
		Ping: &pb.SubscribeRequestPing{Id: 1},
	}
}

func boolPtr(b bool) *bool {
	return &b
}
