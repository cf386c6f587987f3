package grpc

import (
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// UpdateHandler 接收订阅流推送的数据更新；在接收协程中同步调用，实现方应尽快返回
type UpdateHandler interface {
	OnTransaction(update *pb.SubscribeUpdateTransaction)
	OnAccount(update *pb.SubscribeUpdateAccount)
	OnBlockMeta(update *pb.SubscribeUpdateBlockMeta)
	OnSlot(update *pb.SubscribeUpdateSlot)
}

// HandlerFuncs 以函数形式实现 UpdateHandler，未设置的回调忽略对应更新
type HandlerFuncs struct {
	Transaction func(*pb.SubscribeUpdateTransaction)
	Account     func(*pb.SubscribeUpdateAccount)
	BlockMeta   func(*pb.SubscribeUpdateBlockMeta)
	Slot        func(*pb.SubscribeUpdateSlot)
}

func (h HandlerFuncs) OnTransaction(u *pb.SubscribeUpdateTransaction) {
	if h.Transaction != nil {
		h.Transaction(u)
	}
}

func (h HandlerFuncs) OnAccount(u *pb.SubscribeUpdateAccount) {
	if h.Account != nil {
		h.Account(u)
	}
}

func (h HandlerFuncs) OnBlockMeta(u *pb.SubscribeUpdateBlockMeta) {
	if h.BlockMeta != nil {
		h.BlockMeta(u)
	}
}

func (h HandlerFuncs) OnSlot(u *pb.SubscribeUpdateSlot) {
	if h.Slot != nil {
		h.Slot(u)
	}
}
