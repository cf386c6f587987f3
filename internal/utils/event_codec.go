package utils

import (
	"encoding/binary"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// EventTypeSize 消息前缀长度
const EventTypeSize = 4

var ErrShortEvent = errors.New("event message shorter than type prefix")

// EncodeEvent 将原始事件帧编码为带事件类型前缀的二进制数据：
// - 前 4 字节为事件类型（uint32，小端序）
// - 后续为原始帧（判别符 + borsh payload），原样透传
func EncodeEvent(eventType uint32, frame []byte) []byte {
	buf := make([]byte, EventTypeSize, EventTypeSize+len(frame))
	binary.LittleEndian.PutUint32(buf, eventType)
	return append(buf, frame...)
}

// DecodeEvent 是 EncodeEvent 的逆过程，返回的 body 与 msg 共享底层数组
func DecodeEvent(msg []byte) (eventType uint32, body []byte, err error) {
	if len(msg) < EventTypeSize {
		return 0, nil, ErrShortEvent
	}
	return binary.LittleEndian.Uint32(msg[:EventTypeSize]), msg[EventTypeSize:], nil
}

// EncodeProtoEvent 同 EncodeEvent，但 body 为 protobuf 序列化数据（使用 MarshalAppend）
func EncodeProtoEvent(eventType uint32, msg proto.Message) ([]byte, error) {
	const extraBuffer = 32 // 多预留一些空间，降低 MarshalAppend 触发扩容的概率

	buf := make([]byte, EventTypeSize, EventTypeSize+proto.Size(msg)+extraBuffer)
	binary.LittleEndian.PutUint32(buf, eventType)

	opts := proto.MarshalOptions{Deterministic: true}
	result, err := opts.MarshalAppend(buf, msg)
	if err != nil {
		return nil, fmt.Errorf("EncodeProtoEvent: marshal %T: %w", msg, err)
	}
	return result, nil
}
