package grpc

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"geyser-stream-sol/internal/config"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

// fakeStream 按顺序返回预置的更新，并记录 Recv / Send 的调用顺序
type fakeStream struct {
	grpc.ClientStream
	mu      sync.Mutex
	updates []*pb.SubscribeUpdate
	ops     []string
	sent    []*pb.SubscribeRequest
	sendErr error
}

func (f *fakeStream) Recv() (*pb.SubscribeUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		f.ops = append(f.ops, "recv:eof")
		return nil, io.EOF
	}
	u := f.updates[0]
	f.updates = f.updates[1:]
	f.ops = append(f.ops, "recv:"+updateName(u))
	return u, nil
}

func (f *fakeStream) Send(req *pb.SubscribeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, req)
	if req.Ping != nil {
		f.ops = append(f.ops, "send:ping")
	} else {
		f.ops = append(f.ops, "send:subscribe")
	}
	return nil
}

func updateName(u *pb.SubscribeUpdate) string {
	switch u.GetUpdateOneof().(type) {
	case *pb.SubscribeUpdate_Ping:
		return "ping"
	case *pb.SubscribeUpdate_Pong:
		return "pong"
	case *pb.SubscribeUpdate_Transaction:
		return "tx"
	case *pb.SubscribeUpdate_Account:
		return "account"
	case *pb.SubscribeUpdate_BlockMeta:
		return "blockmeta"
	case *pb.SubscribeUpdate_Slot:
		return "slot"
	default:
		return "other"
	}
}

type recordingHandler struct {
	txs, accounts, metas, slots int
}

func (h *recordingHandler) OnTransaction(*pb.SubscribeUpdateTransaction) { h.txs++ }
func (h *recordingHandler) OnAccount(*pb.SubscribeUpdateAccount)         { h.accounts++ }
func (h *recordingHandler) OnBlockMeta(*pb.SubscribeUpdateBlockMeta)     { h.metas++ }
func (h *recordingHandler) OnSlot(*pb.SubscribeUpdateSlot)               { h.slots++ }

func pingUpdate() *pb.SubscribeUpdate {
	return &pb.SubscribeUpdate{UpdateOneof: &pb.SubscribeUpdate_Ping{Ping: &pb.SubscribeUpdatePing{}}}
}

func testManager(handler UpdateHandler) *GrpcStreamManager {
	return newManager(config.GrpcConfig{SendTimeoutSec: 1}, PingRequest(), handler)
}

func TestConsume_RoutesUpdatesAndRepliesPingBeforeNextRecv(t *testing.T) {
	stream := &fakeStream{updates: []*pb.SubscribeUpdate{
		pingUpdate(),
		{UpdateOneof: &pb.SubscribeUpdate_Transaction{Transaction: &pb.SubscribeUpdateTransaction{Slot: 1}}},
		{UpdateOneof: &pb.SubscribeUpdate_Pong{Pong: &pb.SubscribeUpdatePong{Id: 1}}},
		{UpdateOneof: &pb.SubscribeUpdate_Account{Account: &pb.SubscribeUpdateAccount{Slot: 2}}},
		{UpdateOneof: &pb.SubscribeUpdate_BlockMeta{BlockMeta: &pb.SubscribeUpdateBlockMeta{Slot: 3}}},
		{UpdateOneof: &pb.SubscribeUpdate_Slot{Slot: &pb.SubscribeUpdateSlot{Slot: 4}}},
		pingUpdate(),
	}}
	h := &recordingHandler{}
	m := testManager(h)

	var lastRecv atomic.Int64
	err := m.consume(context.Background(), stream, &lastRecv)
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, []string{
		"recv:ping", "send:ping",
		"recv:tx", "recv:pong", "recv:account", "recv:blockmeta", "recv:slot",
		"recv:ping", "send:ping",
		"recv:eof",
	}, stream.ops)
	require.Len(t, stream.sent, 2)
	assert.Equal(t, int32(1), stream.sent[0].GetPing().GetId())

	assert.Equal(t, 1, h.txs)
	assert.Equal(t, 1, h.accounts)
	assert.Equal(t, 1, h.metas)
	assert.Equal(t, 1, h.slots)
	assert.NotZero(t, lastRecv.Load())
}

func TestConsume_PingReplyFailureEndsStream(t *testing.T) {
	sendErr := errors.New("broken pipe")
	stream := &fakeStream{
		updates: []*pb.SubscribeUpdate{
			pingUpdate(),
			{UpdateOneof: &pb.SubscribeUpdate_Slot{Slot: &pb.SubscribeUpdateSlot{Slot: 4}}},
		},
		sendErr: sendErr,
	}
	h := &recordingHandler{}
	m := testManager(h)

	err := m.consume(context.Background(), stream, nil)
	assert.ErrorIs(t, err, sendErr)
	assert.Equal(t, 0, h.slots)
	assert.Equal(t, []string{"recv:ping"}, stream.ops)
}

func TestConsume_HandlerPanicDoesNotStopStream(t *testing.T) {
	var accounts int
	handler := HandlerFuncs{
		Transaction: func(*pb.SubscribeUpdateTransaction) { panic("boom") },
		Account:     func(*pb.SubscribeUpdateAccount) { accounts++ },
	}
	stream := &fakeStream{updates: []*pb.SubscribeUpdate{
		{UpdateOneof: &pb.SubscribeUpdate_Transaction{Transaction: &pb.SubscribeUpdateTransaction{}}},
		{UpdateOneof: &pb.SubscribeUpdate_Account{Account: &pb.SubscribeUpdateAccount{}}},
		{UpdateOneof: &pb.SubscribeUpdate_BlockMeta{BlockMeta: &pb.SubscribeUpdateBlockMeta{}}},
	}}

	err := testManager(handler).consume(context.Background(), stream, nil)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, accounts)
}

func TestSendWithTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	err := sendWithTimeout(context.Background(), func(int) error {
		<-block
		return nil
	}, 1, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	want := errors.New("send failed")
	err = sendWithTimeout(context.Background(), func(int) error { return want }, 1, time.Second)
	assert.ErrorIs(t, err, want)
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in     string
		target string
		secure bool
	}{
		{"http://127.0.0.1:10000", "127.0.0.1:10000", false},
		{"https://solana-yellowstone-grpc.publicnode.com", "solana-yellowstone-grpc.publicnode.com:443", true},
		{"https://grpc.example.com:2053/", "grpc.example.com:2053", true},
		{"grpc.example.com:2053", "grpc.example.com:2053", true},
		{"", "", true},
	}
	for _, tt := range tests {
		target, secure := parseEndpoint(tt.in)
		assert.Equal(t, tt.target, target, tt.in)
		assert.Equal(t, tt.secure, secure, tt.in)
	}
}

func TestNewGrpcStreamManager_RejectsBadInput(t *testing.T) {
	_, err := NewGrpcStreamManager(config.GrpcConfig{Endpoint: "http://127.0.0.1:1"}, nil, HandlerFuncs{})
	assert.Error(t, err)

	_, err = NewGrpcStreamManager(config.GrpcConfig{Endpoint: "http://127.0.0.1:1"}, PingRequest(), nil)
	assert.Error(t, err)

	_, err = NewGrpcStreamManager(config.GrpcConfig{}, PingRequest(), HandlerFuncs{})
	assert.Error(t, err)
}

func TestReconnect_IgnoresStaleStream(t *testing.T) {
	m := testManager(HandlerFuncs{})
	current, cancelCurrent := context.WithCancel(context.Background())
	defer cancelCurrent()
	stale, cancelStale := context.WithCancel(context.Background())
	defer cancelStale()

	var cancelled bool
	m.connCtx = current
	m.connCancel = func() { cancelled = true }

	m.reconnect(stale)
	assert.False(t, cancelled)
}

func TestReconnect_NoopWhenStopped(t *testing.T) {
	m := testManager(HandlerFuncs{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cancelled bool
	m.connCtx = ctx
	m.connCancel = func() { cancelled = true }
	m.stopped = true

	m.reconnect(ctx)
	assert.False(t, cancelled)
}

func TestIdleWatchdog_CancelsIdleConnection(t *testing.T) {
	m := newManager(config.GrpcConfig{SendTimeoutSec: 1}, PingRequest(), HandlerFuncs{})
	m.recvTimeout = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var lastRecv atomic.Int64
	lastRecv.Store(time.Now().Add(-time.Minute).UnixNano())

	done := make(chan struct{})
	go func() {
		m.idleWatchdog(ctx, cancel, &lastRecv)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("watchdog did not fire")
	}
	assert.Error(t, ctx.Err())
}

func TestHandlerFuncs_NilCallbacksIgnored(t *testing.T) {
	var h UpdateHandler = HandlerFuncs{}
	assert.NotPanics(t, func() {
		h.OnTransaction(&pb.SubscribeUpdateTransaction{})
		h.OnAccount(&pb.SubscribeUpdateAccount{})
		h.OnBlockMeta(&pb.SubscribeUpdateBlockMeta{})
		h.OnSlot(&pb.SubscribeUpdateSlot{})
	})
}
