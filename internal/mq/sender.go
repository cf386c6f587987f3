package mq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

var ErrDeliveryTimeout = errors.New("kafka delivery timeout")

// KafkaJob 表示一条需要发送的 Kafka 消息
type KafkaJob struct {
	Topic     string
	Partition int32
	Key       []byte
	Value     []byte
	Headers   []kafka.Header
}

func (j *KafkaJob) message(opaque int) *kafka.Message {
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &j.Topic, Partition: j.Partition},
		Key:            j.Key,
		Value:          j.Value,
		Headers:        j.Headers,
		Opaque:         opaque,
	}
}

// DeliveryReport 单条消息的投递结果，Err 为 nil 表示 broker 已确认
type DeliveryReport struct {
	Job    *KafkaJob
	Offset kafka.Offset
	Err    error
}

// SendKafkaJobs 发送一批消息并等待 ack，返回与 jobs 一一对应的投递结果。
// 整批共用一个带缓冲的 delivery 通道，以 Opaque 序号对应到 job；
// timeout 或 ctx 结束时仍未确认的消息记为失败，之后到达的回执落入缓冲区后随通道一起回收。
func SendKafkaJobs(ctx context.Context, producer *kafka.Producer, jobs []*KafkaJob, timeout time.Duration) []DeliveryReport {
	reports := make([]DeliveryReport, len(jobs))
	if len(jobs) == 0 {
		return reports
	}

	deliveryChan := make(chan kafka.Event, len(jobs))
	pending := 0
	for i, job := range jobs {
		reports[i].Job = job
		if err := producer.Produce(job.message(i), deliveryChan); err != nil {
			reports[i].Err = fmt.Errorf("produce error: %w", err)
			continue
		}
		reports[i].Err = ErrDeliveryTimeout
		pending++
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for pending > 0 {
		select {
		case e := <-deliveryChan:
			msg, ok := e.(*kafka.Message)
			if !ok {
				continue
			}
			i, ok := msg.Opaque.(int)
			if !ok || i < 0 || i >= len(reports) {
				continue
			}
			reports[i].Err = msg.TopicPartition.Error
			reports[i].Offset = msg.TopicPartition.Offset
			pending--
		case <-timer.C:
			return reports
		case <-ctx.Done():
			for i := range reports {
				if errors.Is(reports[i].Err, ErrDeliveryTimeout) {
					reports[i].Err = fmt.Errorf("ctx cancelled: %w", ctx.Err())
				}
			}
			return reports
		}
	}
	return reports
}

// failedReports 过滤出失败的投递
func failedReports(reports []DeliveryReport) []DeliveryReport {
	var failed []DeliveryReport
	for _, r := range reports {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
