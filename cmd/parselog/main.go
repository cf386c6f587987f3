package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"geyser-stream-sol/internal/config"
	"geyser-stream-sol/internal/logic/eventparser"
	geyser "geyser-stream-sol/internal/logic/grpc"
	"geyser-stream-sol/internal/logic/processor"
	"geyser-stream-sol/internal/pkg/logger"
	"geyser-stream-sol/internal/svc"

	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"
)

var configFile = flag.String("f", "etc/grpc.yaml", "the config file")

// 订阅涉及 pump.fun / Raydium CPMM 的交易，从日志与指令中解析事件并发布
func main() {
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
		}
	}()

	flag.Parse()

	c := config.MustLoad(*configFile)
	if err := logger.Init(c.LogConf.ToLogOption()); err != nil {
		panic(err)
	}
	defer logger.Sync()

	eventparser.Init()

	serviceContext, err := svc.NewServiceContext(c)
	if err != nil {
		panic(err)
	}
	defer serviceContext.Close()

	txProcessor := processor.NewTxProcessor(processor.TxProcessorOptions{
		Sink:         serviceContext.EventSink(),
		Deduper:      serviceContext.Deduper(),
		SendTimeout:  time.Duration(c.TimeConf.EventSendTimeoutMs) * time.Millisecond,
		RedisTimeout: time.Duration(c.TimeConf.RedisTimeoutMs) * time.Millisecond,
	})

	grpcService, err := geyser.NewGrpcStreamManager(
		c.Grpc,
		geyser.BuildTransactionsRequest(c.Subscribe),
		geyser.HandlerFuncs{Transaction: txProcessor.OnTransaction},
	)
	if err != nil {
		panic(err)
	}

	sg := zerosvc.NewServiceGroup()
	sg.Add(txProcessor)
	sg.Add(grpcService)

	logx.Infof("Starting parselog service, kinds=%v", eventparser.LogKinds().Kinds())

	// 启动服务
	go sg.Start()

	// 等待退出信号
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logx.Info("Shutting down services...")
	sg.Stop()
	logx.Infof("dropped txs: %d", txProcessor.Dropped())
}
