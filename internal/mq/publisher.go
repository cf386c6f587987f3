package mq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geyser-stream-sol/internal/logic/core"
	"geyser-stream-sol/internal/utils"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/zeromicro/go-zero/core/logx"
)

// AccountUpdateEventType 账户更新消息的类型前缀，body 为 protobuf 编码的 SubscribeUpdateAccount
const AccountUpdateEventType uint32 = 0xff00

const (
	HeaderKind      = "kind"
	HeaderSignature = "signature"
)

var ErrPartialPublish = errors.New("some kafka messages failed")

// EventType 计算消息前缀：高位为协议编号，最低位为事件来源（日志 / 指令）
func EventType(ev *core.Event) uint32 {
	return uint32(ev.Dex)<<8 | uint32(ev.Source)
}

// BuildEventJobs 将事件编码为 Kafka 消息，按事件 key（mint / pool）选择分区，保证同一资产内有序
func BuildEventJobs(topic string, partitions int, events []*core.Event) []*KafkaJob {
	jobs := make([]*KafkaJob, 0, len(events))
	for _, ev := range events {
		key := ev.Key()
		jobs = append(jobs, &KafkaJob{
			Topic:     topic,
			Partition: int32(utils.PartitionHashBytes(key, uint32(partitions))),
			Key:       key,
			Value:     utils.EncodeEvent(EventType(ev), ev.Frame),
			Headers: []kafka.Header{
				{Key: HeaderKind, Value: []byte(ev.Kind)},
				{Key: HeaderSignature, Value: []byte(ev.Signature.String())},
			},
		})
	}
	return jobs
}

// EventPublisher 把解析出的事件发布到单一事件 topic
type EventPublisher struct {
	producer   *kafka.Producer
	topic      string
	partitions int
	timeout    time.Duration // 单条消息等待 ack 的超时
	logx.Logger
}

func NewEventPublisher(producer *kafka.Producer, topic string, partitions int, timeout time.Duration) *EventPublisher {
	return &EventPublisher{
		producer:   producer,
		topic:      topic,
		partitions: max(partitions, 1),
		timeout:    timeout,
		Logger:     logx.WithContext(context.Background()).WithFields(logx.Field("service", "event_publisher")),
	}
}

// Publish 并发发送并等待全部 ack；部分失败时返回 ErrPartialPublish
func (p *EventPublisher) Publish(ctx context.Context, events []*core.Event) error {
	if len(events) == 0 {
		return nil
	}
	reports := SendKafkaJobs(ctx, p.producer, BuildEventJobs(p.topic, p.partitions, events), p.timeout)
	failed := failedReports(reports)
	for _, f := range failed {
		p.Errorf("kafka 发送失败: partition=%d, err=%v", f.Job.Partition, f.Err)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: ok=%d, failed=%d", ErrPartialPublish, len(reports)-len(failed), len(failed))
	}
	return nil
}

// PublishAccount 将原始账户更新以 protobuf 形式发布，分区 key 为账户地址
func (p *EventPublisher) PublishAccount(ctx context.Context, update *pb.SubscribeUpdateAccount) error {
	value, err := utils.EncodeProtoEvent(AccountUpdateEventType, update)
	if err != nil {
		return err
	}
	key := update.GetAccount().GetPubkey()
	job := &KafkaJob{
		Topic:     p.topic,
		Partition: int32(utils.PartitionHashBytes(key, uint32(p.partitions))),
		Key:       key,
		Value:     value,
	}
	return SendKafkaJobs(ctx, p.producer, []*KafkaJob{job}, p.timeout)[0].Err
}

// Close 等待缓冲区中的消息发送完成后关闭生产者
func (p *EventPublisher) Close() {
	if p.producer == nil {
		return
	}
	if remaining := p.producer.Flush(5000); remaining > 0 {
		p.Errorf("kafka 关闭时仍有 %d 条消息未发送", remaining)
	}
	p.producer.Close()
}
