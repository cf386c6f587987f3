package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"geyser-stream-sol/internal/config"
	geyser "geyser-stream-sol/internal/logic/grpc"
	"geyser-stream-sol/internal/logic/processor"
	"geyser-stream-sol/internal/pkg/logger"
	"geyser-stream-sol/internal/service"
	"geyser-stream-sol/internal/svc"

	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"
)

var (
	configFile = flag.String("f", "etc/grpc.yaml", "the config file")
	snapshot   = flag.Bool("snapshot", true, "fetch current state of subscribe.accounts via rpc before streaming")
)

// 订阅账户更新并打印，SPL Token 账户附带解码结果
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

	if len(c.Subscribe.Accounts) == 0 && len(c.Subscribe.Owners) == 0 {
		logx.Error("subscribe.accounts and subscribe.owners are both empty")
		return
	}

	serviceContext, err := svc.NewServiceContext(c)
	if err != nil {
		panic(err)
	}
	defer serviceContext.Close()

	accountProcessor := processor.NewAccountProcessor(serviceContext.AccountSink(),
		time.Duration(c.TimeConf.EventSendTimeoutMs)*time.Millisecond)

	grpcService, err := geyser.NewGrpcStreamManager(
		c.Grpc,
		geyser.BuildAccountsRequest(c.Subscribe),
		geyser.HandlerFuncs{Account: accountProcessor.OnAccount},
	)
	if err != nil {
		panic(err)
	}

	sg := zerosvc.NewServiceGroup()
	sg.Add(grpcService)

	if *snapshot && c.Rpc.Endpoint != "" && len(c.Subscribe.Accounts) > 0 {
		snapshotService, err := service.NewAccountSnapshotService(c.Rpc, c.Subscribe.Accounts, accountProcessor.OnAccount)
		if err != nil {
			panic(err)
		}
		sg.Add(snapshotService)
	}

	logx.Infof("Starting accounts stream, accounts=%d owners=%d", len(c.Subscribe.Accounts), len(c.Subscribe.Owners))
	go sg.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logx.Info("Shutting down services...")
	sg.Stop()
}
