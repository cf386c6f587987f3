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
	"geyser-stream-sol/internal/svc"

	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"
)

var configFile = flag.String("f", "etc/grpc.yaml", "the config file")

// 订阅区块元数据，统计区块到达延迟；开启 slot_checker 时校验跳过的 slot
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

	serviceContext, err := svc.NewServiceContext(c)
	if err != nil {
		panic(err)
	}
	defer serviceContext.Close()

	blockMetaProcessor := processor.NewBlockMetaProcessor(
		time.Duration(c.Grpc.MaxLatencyWarnMs)*time.Millisecond,
		serviceContext.GapChecker(),
		serviceContext.SlotProgress(),
	)

	grpcService, err := geyser.NewGrpcStreamManager(
		c.Grpc,
		geyser.BuildBlocksMetaRequest(c.Subscribe),
		geyser.HandlerFuncs{BlockMeta: blockMetaProcessor.OnBlockMeta},
	)
	if err != nil {
		panic(err)
	}

	sg := zerosvc.NewServiceGroup()
	if checker := serviceContext.SlotChecker; checker != nil {
		checker.OnResult(func(r geyser.SlotCheckResult) {
			logx.Infof("slot check: empty=%d missing=%d", len(r.Empty), len(r.Missing))
		})
		sg.Add(checker)
	}
	sg.Add(grpcService)

	logx.Infof("Starting block latency monitor, commitment=%s", c.Subscribe.Commitment)
	go sg.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logx.Info("Shutting down services...")
	sg.Stop()
}
