package processor

import (
	"fmt"
	"strings"

	"geyser-stream-sol/internal/logic/core"
	"geyser-stream-sol/internal/logic/txadapter"
	"geyser-stream-sol/internal/pkg/logger"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"google.golang.org/protobuf/encoding/protojson"
)

// TxPrinter 打印每笔交易的摘要，debug 级别下附带原始更新的 JSON
type TxPrinter struct {
	dumpRaw bool
	print   func(string)
}

func NewTxPrinter(dumpRaw bool) *TxPrinter {
	return &TxPrinter{
		dumpRaw: dumpRaw,
		print:   func(s string) { logger.Infof("%s", s) },
	}
}

func (p *TxPrinter) OnTransaction(update *pb.SubscribeUpdateTransaction) {
	if p.dumpRaw {
		raw, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(update)
		if err != nil {
			logger.Warnf("marshal tx update failed: %v", err)
		} else {
			logger.Debugf("raw tx update: %s", raw)
		}
	}

	tx, err := txadapter.AdaptGrpcTx(update)
	if err != nil {
		logger.Warnf("adapt tx at slot %d failed: %v", update.GetSlot(), err)
		return
	}
	p.print(FormatTx(tx))
}

// FormatTx 单行摘要：slot、签名、状态、手续费、CU、调用的程序与日志条数
func FormatTx(tx *core.AdaptedTx) string {
	status := "ok"
	if tx.Failed {
		status = "failed"
	}

	programs := tx.ProgramIDs()
	names := make([]string, len(programs))
	for i, id := range programs {
		names[i] = id.String()
	}

	return fmt.Sprintf("slot=%d index=%d tx=%s status=%s vote=%v fee=%d cu=%d ixs=%d logs=%d programs=[%s]",
		tx.Slot, tx.TxIndex, tx.Signature, status, tx.IsVote, tx.Fee, tx.ComputeUnits,
		len(tx.Instructions), len(tx.LogMessages), strings.Join(names, ","))
}
