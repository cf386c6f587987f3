package grpc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"geyser-stream-sol/internal/config"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/zeromicro/go-zero/core/logx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
)

var ErrManagerStopped = errors.New("grpc stream manager is stopped")

type GrpcStreamManager struct {
	mu                 sync.Mutex                // 保护连接状态
	sendMu             sync.Mutex                // stream.Send 不允许并发调用（ping 协程与 ping 应答）
	conn               *grpc.ClientConn          // gRPC 连接对象
	client             pb.GeyserClient           // gRPC 客户端
	stream             pb.Geyser_SubscribeClient // 当前订阅流
	stopped            bool                      // 标记是否已经停止
	reconnectAttempts  int                       // 已重连次数
	reconnectInterval  time.Duration             // 重连基础间隔
	xToken             string                    // 认证用的 x-token
	streamPingInterval time.Duration             // 应用层 ping 间隔
	connCtx            context.Context           // 当前连接的 context
	connCancel         context.CancelFunc        // 当前连接的 cancel 函数
	recvTimeout        time.Duration             // 超过该时长未收到更新则重连，0 表示不检测
	sendTimeout        time.Duration             // 单次 Send 超时
	request            *pb.SubscribeRequest      // 订阅请求，重连时重发
	handler            UpdateHandler
	logx.Logger
}

func NewGrpcStreamManager(cfg config.GrpcConfig, req *pb.SubscribeRequest, handler UpdateHandler) (*GrpcStreamManager, error) {
	if req == nil {
		return nil, errors.New("subscribe request is nil")
	}
	if handler == nil {
		return nil, errors.New("update handler is nil")
	}

	target, secure := parseEndpoint(cfg.Endpoint)
	if target == "" {
		return nil, errors.New("grpc endpoint is empty")
	}

	var creds credentials.TransportCredentials
	if secure {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		creds = insecure.NewCredentials()
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ConnectTimeoutSec)*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		target,
		grpc.WithTransportCredentials(creds),
		grpc.WithInitialWindowSize(int32(cfg.InitialWindowSize)),
		grpc.WithInitialConnWindowSize(int32(cfg.InitialConnWindowSize)),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(cfg.MaxCallSendMsgSize),
			grpc.MaxCallRecvMsgSize(cfg.MaxCallRecvMsgSize),
		),
		grpc.WithBlock(),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                time.Duration(cfg.KeepalivePingIntervalSec) * time.Second,
			Timeout:             time.Duration(cfg.KeepalivePingTimeoutSec) * time.Second,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s: %w", target, err)
	}

	m := newManager(cfg, req, handler)
	m.conn = conn
	m.client = pb.NewGeyserClient(conn)
	return m, nil
}

func newManager(cfg config.GrpcConfig, req *pb.SubscribeRequest, handler UpdateHandler) *GrpcStreamManager {
	return &GrpcStreamManager{
		reconnectInterval:  time.Duration(cfg.ReconnectIntervalSec) * time.Second,
		xToken:             cfg.XToken,
		streamPingInterval: time.Duration(cfg.StreamPingIntervalSec) * time.Second,
		recvTimeout:        time.Duration(cfg.RecvTimeoutSec) * time.Second,
		sendTimeout:        time.Duration(cfg.SendTimeoutSec) * time.Second,
		request:            req,
		handler:            handler,
		Logger:             logx.WithContext(context.Background()).WithFields(logx.Field("service", "GrpcStream")),
	}
}

// parseEndpoint 去掉 scheme：http:// 使用明文连接，https:// 或无 scheme 使用 TLS。
// 未带端口的 https 地址补 443
func parseEndpoint(endpoint string) (target string, secure bool) {
	endpoint = strings.TrimSpace(endpoint)
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	case strings.HasPrefix(endpoint, "https://"):
		target = strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/")
		if target != "" && !strings.Contains(target, ":") {
			target += ":443"
		}
		return target, true
	default:
		return endpoint, true
	}
}

func (m *GrpcStreamManager) Start() {
	m.mustConnect()
}

func (m *GrpcStreamManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.Errorf("close grpc conn failed: %v", err)
		}
		m.conn = nil
	}
	m.Infof("grpc stream manager stopped")
}

func (m *GrpcStreamManager) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// 内部循环直到连接成功
func (m *GrpcStreamManager) mustConnect() {
	for {
		if m.isStopped() {
			return
		}

		if m.reconnectAttempts > 0 {
			if m.reconnectAttempts > 3 {
				time.Sleep(m.reconnectInterval * 2)
			} else {
				time.Sleep(m.reconnectInterval)
			}
		}
		m.Infof("connecting... attempt %d", m.reconnectAttempts+1)
		m.reconnectAttempts++
		err := m.connect()
		if err == nil {
			return
		}
		if errors.Is(err, ErrManagerStopped) {
			return
		}
		m.Errorf("connect failed: %v, will retry...", err)
	}
}

// connect 只尝试一次连接
func (m *GrpcStreamManager) connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrManagerStopped
	}

	// 先关闭旧的 context，旧的 goroutine 随之退出
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	connCtx, connCancel := context.WithCancel(context.Background())

	metaCtx := metadata.NewOutgoingContext(
		connCtx,
		metadata.New(map[string]string{"x-token": m.xToken}),
	)
	stream, err := m.client.Subscribe(metaCtx)
	if err != nil {
		connCancel()
		return fmt.Errorf("subscribe: %w", err)
	}

	if err := m.send(connCtx, stream, m.request); err != nil {
		connCancel()
		return fmt.Errorf("send subscribe request: %w", err)
	}

	m.connCtx, m.connCancel = connCtx, connCancel
	m.stream = stream
	m.reconnectAttempts = 0
	m.Infof("connection established")

	var lastRecv atomic.Int64
	lastRecv.Store(time.Now().UnixNano())

	go m.pingLoop(connCtx, stream)
	go m.recvLoop(connCtx, stream, &lastRecv)
	if m.recvTimeout > 0 {
		go m.idleWatchdog(connCtx, connCancel, &lastRecv)
	}
	return nil
}

func (m *GrpcStreamManager) recvLoop(ctx context.Context, stream pb.Geyser_SubscribeClient, lastRecv *atomic.Int64) {
	err := m.consume(ctx, stream, lastRecv)
	if ctx.Err() != nil && m.isStopped() {
		return
	}
	if errors.Is(err, io.EOF) {
		m.Infof("stream closed by server (EOF), will reconnect")
	} else {
		m.Errorf("stream error: %v, will reconnect", err)
	}
	m.reconnect(ctx)
}

// consume 循环接收并分发更新，直到流出错。
// 服务端 ping 在下一次 Recv 之前同步应答
func (m *GrpcStreamManager) consume(ctx context.Context, stream pb.Geyser_SubscribeClient, lastRecv *atomic.Int64) error {
	for {
		update, err := stream.Recv()
		if err != nil {
			return err
		}
		if lastRecv != nil {
			lastRecv.Store(time.Now().UnixNano())
		}
		if err := m.handleUpdate(ctx, stream, update); err != nil {
			return err
		}
	}
}

func (m *GrpcStreamManager) handleUpdate(ctx context.Context, stream pb.Geyser_SubscribeClient, update *pb.SubscribeUpdate) error {
	switch u := update.GetUpdateOneof().(type) {
	case *pb.SubscribeUpdate_Ping:
		if err := m.send(ctx, stream, PingRequest()); err != nil {
			return fmt.Errorf("reply ping: %w", err)
		}
		m.Debugf("replied server ping")
	case *pb.SubscribeUpdate_Pong:
		m.Debugf("received pong, id=%d", u.Pong.GetId())
	default:
		m.dispatch(update)
	}
	return nil
}

// dispatch handler 的 panic 只影响当前这条更新
func (m *GrpcStreamManager) dispatch(update *pb.SubscribeUpdate) {
	defer func() {
		if r := recover(); r != nil {
			m.Errorf("panic in update handler: %v", r)
		}
	}()

	switch u := update.GetUpdateOneof().(type) {
	case *pb.SubscribeUpdate_Transaction:
		m.handler.OnTransaction(u.Transaction)
	case *pb.SubscribeUpdate_Account:
		m.handler.OnAccount(u.Account)
	case *pb.SubscribeUpdate_BlockMeta:
		m.handler.OnBlockMeta(u.BlockMeta)
	case *pb.SubscribeUpdate_Slot:
		m.handler.OnSlot(u.Slot)
	default:
		m.Debugf("ignored update %T", u)
	}
}

func (m *GrpcStreamManager) send(ctx context.Context, stream pb.Geyser_SubscribeClient, req *pb.SubscribeRequest) error {
	return sendWithTimeout(ctx, func(r *pb.SubscribeRequest) error {
		m.sendMu.Lock()
		defer m.sendMu.Unlock()
		return stream.Send(r)
	}, req, m.sendTimeout)
}

// 带超时的 Send
func sendWithTimeout[T any](ctx context.Context, sendFunc func(T) error, req T, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sendFunc(req)
	}()

	select {
	case <-timeoutCtx.Done():
		return timeoutCtx.Err()
	case err := <-done:
		return err
	}
}

// 心跳
func (m *GrpcStreamManager) pingLoop(ctx context.Context, stream pb.Geyser_SubscribeClient) {
	if m.streamPingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.streamPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// 这里只记录日志，不触发重连
			if err := m.send(ctx, stream, PingRequest()); err != nil {
				m.Errorf("ping failed: %v", err)
			}
		}
	}
}

// idleWatchdog 超过 recvTimeout 没有收到任何更新时取消当前连接，Recv 随之返回错误并触发重连
func (m *GrpcStreamManager) idleWatchdog(ctx context.Context, cancel context.CancelFunc, lastRecv *atomic.Int64) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle := time.Since(time.Unix(0, lastRecv.Load()))
			if idle > m.recvTimeout {
				m.Errorf("%v未收到任何更新，触发重连", m.recvTimeout)
				cancel()
				return
			}
		}
	}
}

// reconnect 只处理属于当前连接的断开，旧连接残留的 goroutine 不会重复触发
func (m *GrpcStreamManager) reconnect(streamCtx context.Context) {
	m.mu.Lock()
	if m.stopped || (m.connCtx != nil && m.connCtx != streamCtx) {
		m.mu.Unlock()
		return
	}
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.mu.Unlock()

	go m.mustConnect()
}
