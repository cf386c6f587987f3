package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"geyser-stream-sol/internal/config"
	geyser "geyser-stream-sol/internal/logic/grpc"
	"geyser-stream-sol/internal/logic/processor"
	"geyser-stream-sol/internal/pkg/logger"

	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"
)

var configFile = flag.String("f", "etc/grpc.yaml", "the config file")

// 订阅交易并逐笔打印摘要；日志级别为 debug 时同时输出原始更新的 JSON
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

	printer := processor.NewTxPrinter(strings.EqualFold(c.LogConf.Level, "debug"))
	grpcService, err := geyser.NewGrpcStreamManager(
		c.Grpc,
		geyser.BuildTransactionsRequest(c.Subscribe),
		geyser.HandlerFuncs{Transaction: printer.OnTransaction},
	)
	if err != nil {
		panic(err)
	}

	sg := zerosvc.NewServiceGroup()
	sg.Add(grpcService)

	logx.Infof("Starting transactions stream, account_include=%v", c.Subscribe.AccountInclude)
	go sg.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logx.Info("Shutting down services...")
	sg.Stop()
}
