package mq

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"geyser-stream-sol/internal/config"
	"geyser-stream-sol/internal/consts"
	"geyser-stream-sol/internal/logic/core"
	"geyser-stream-sol/internal/logic/eventparser/pumpfun"
	"geyser-stream-sol/internal/logic/eventparser/raydiumcpmm"
	"geyser-stream-sol/internal/types"
	"geyser-stream-sol/internal/utils"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBrokers(t *testing.T) string {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("KAFKA_BROKERS not set")
	}
	return brokers
}

func testTopicConfig(brokers string) config.KafkaProducerConfig {
	return config.KafkaProducerConfig{
		Enabled:    true,
		Brokers:    brokers,
		Topic:      fmt.Sprintf("geyser-stream-sol-test-%d", time.Now().UnixNano()),
		Partitions: 3,
	}
}

// 不可达 broker：消息只进入本地队列，不会有回执
func unreachableProducer(t *testing.T) *kafka.Producer {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":   "127.0.0.1:1",
		"delivery.timeout.ms": 60000,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		producer.Purge(kafka.PurgeQueue | kafka.PurgeInFlight)
		producer.Close()
	})
	return producer
}

func testJobs(n int) []*KafkaJob {
	jobs := make([]*KafkaJob, n)
	for i := range jobs {
		jobs[i] = &KafkaJob{Topic: "events", Partition: kafka.PartitionAny, Key: []byte{byte(i)}, Value: []byte{byte(i)}}
	}
	return jobs
}

func TestSendKafkaJobs_Empty(t *testing.T) {
	assert.Empty(t, SendKafkaJobs(context.Background(), nil, nil, time.Second))
}

func TestSendKafkaJobs_TimeoutKeepsJobOrder(t *testing.T) {
	producer := unreachableProducer(t)
	jobs := testJobs(3)

	start := time.Now()
	reports := SendKafkaJobs(context.Background(), producer, jobs, 200*time.Millisecond)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.Len(t, reports, len(jobs))
	for i, r := range reports {
		assert.Same(t, jobs[i], r.Job)
		assert.ErrorIs(t, r.Err, ErrDeliveryTimeout)
	}
	assert.Len(t, failedReports(reports), 3)
}

func TestSendKafkaJobs_ContextCancelled(t *testing.T) {
	producer := unreachableProducer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports := SendKafkaJobs(ctx, producer, testJobs(2), time.Minute)
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestFailedReports(t *testing.T) {
	jobs := testJobs(3)
	reports := []DeliveryReport{
		{Job: jobs[0]},
		{Job: jobs[1], Err: ErrDeliveryTimeout},
		{Job: jobs[2]},
	}
	failed := failedReports(reports)
	require.Len(t, failed, 1)
	assert.Same(t, jobs[1], failed[0].Job)
}

// consumeAll 从 topic 起始位置读取 n 条消息
func consumeAll(t *testing.T, brokers, topic string, n int) []*kafka.Message {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"group.id":           topic + "-reader",
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	require.NoError(t, err)
	defer consumer.Close()
	require.NoError(t, consumer.SubscribeTopics([]string{topic}, nil))

	var msgs []*kafka.Message
	deadline := time.Now().Add(30 * time.Second)
	for len(msgs) < n && time.Now().Before(deadline) {
		msg, err := consumer.ReadMessage(time.Second)
		if err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	require.Len(t, msgs, n)
	return msgs
}

func headerValue(msg *kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestSendKafkaJobs_RealKafkaReportsOffsets(t *testing.T) {
	cfg := testTopicConfig(testBrokers(t))
	producer, err := NewKafkaProducer(cfg)
	require.NoError(t, err)
	defer producer.Close()

	jobs := testJobs(4)
	for _, job := range jobs {
		job.Topic = cfg.Topic
		job.Partition = 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	reports := SendKafkaJobs(ctx, producer, jobs, 10*time.Second)
	require.Empty(t, failedReports(reports))
	for i := 1; i < len(reports); i++ {
		assert.Greater(t, int64(reports[i].Offset), int64(reports[i-1].Offset))
	}
}

func TestEventPublisher_RealKafkaRoundTrip(t *testing.T) {
	brokers := testBrokers(t)
	cfg := testTopicConfig(brokers)
	producer, err := NewKafkaProducer(cfg)
	require.NoError(t, err)
	publisher := NewEventPublisher(producer, cfg.Topic, cfg.Partitions, 10*time.Second)
	defer publisher.Close()

	var mint, pool types.Pubkey
	mint[0], pool[0] = 7, 9
	sig := types.Signature{0: 1, 63: 2}
	events := []*core.Event{
		{
			Kind: "pumpfun.TradeEvent", Dex: consts.DexPumpfun, Source: core.SourceLog, Signature: sig,
			Frame: []byte{1, 2, 3, 4, 5, 6, 7, 8, 0xaa}, Data: pumpfun.TradeEvent{Mint: mint, IsBuy: true},
		},
		{
			Kind: "raydiumcpmm.SwapBaseInput", Dex: consts.DexRaydiumCPMM, Source: core.SourceInstruction, Signature: sig,
			Frame: []byte{8, 7, 6, 5, 4, 3, 2, 1, 0xbb},
			Data:  raydiumcpmm.SwapBaseInputInstruction{SwapAccounts: raydiumcpmm.SwapAccounts{Pool: pool}},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	require.NoError(t, publisher.Publish(ctx, events))

	byKind := make(map[string]*kafka.Message)
	for _, msg := range consumeAll(t, brokers, cfg.Topic, len(events)) {
		byKind[headerValue(msg, HeaderKind)] = msg
	}

	for _, ev := range events {
		msg, ok := byKind[ev.Kind]
		require.True(t, ok, ev.Kind)
		assert.Equal(t, sig.String(), headerValue(msg, HeaderSignature))
		assert.Equal(t, int32(utils.PartitionHashBytes(ev.Key(), uint32(cfg.Partitions))), msg.TopicPartition.Partition)

		typ, body, err := utils.DecodeEvent(msg.Value)
		require.NoError(t, err)
		assert.Equal(t, EventType(ev), typ)
		assert.Equal(t, ev.Frame, body)
	}
	assert.Equal(t, mint[:], byKind["pumpfun.TradeEvent"].Key)
	assert.Equal(t, pool[:], byKind["raydiumcpmm.SwapBaseInput"].Key)
}
