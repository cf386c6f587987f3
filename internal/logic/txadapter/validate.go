package txadapter

import (
	"errors"
	"fmt"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

var (
	ErrVoteTx   = errors.New("vote transaction skipped")
	ErrFailedTx = errors.New("transaction execution failed")
)

// ValidateGrpcTx 在适配之前做廉价检查，投票交易与失败交易不会产生事件
func ValidateGrpcTx(update *pb.SubscribeUpdateTransaction) error {
	tx := update.GetTransaction()
	if tx == nil {
		return fmt.Errorf("%w: nil transaction info", ErrInvalidTransaction)
	}
	if tx.Transaction == nil {
		return fmt.Errorf("%w: missing Transaction field", ErrInvalidTransaction)
	}
	if tx.Transaction.Message == nil {
		return fmt.Errorf("%w: missing Message field in transaction", ErrInvalidTransaction)
	}
	if len(tx.Transaction.Signatures) == 0 {
		return fmt.Errorf("%w: missing transaction signature", ErrInvalidTransaction)
	}
	if len(tx.Transaction.Signatures[0]) != 64 {
		return fmt.Errorf("%w: invalid transaction signature length: %d", ErrInvalidTransaction, len(tx.Transaction.Signatures[0]))
	}
	if tx.Meta == nil {
		return fmt.Errorf("%w: missing transaction meta data", ErrInvalidTransaction)
	}
	if tx.IsVote {
		return ErrVoteTx
	}
	if tx.Meta.Err != nil {
		return ErrFailedTx
	}
	return nil
}
