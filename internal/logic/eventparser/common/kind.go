package common

import (
	"errors"
	"fmt"

	"geyser-stream-sol/internal/pkg/logger"

	"github.com/near/borsh-go"
)

var (
	ErrPayloadTooShort = errors.New("payload too short")
	ErrTrailingBytes   = errors.New("trailing bytes after payload")
)

// Kind 描述一种事件：固定判别符 + 解码函数。解码只会在判别符完全匹配后进行，
// 传入的 payload 已去掉前 8 字节判别符。
type Kind[T any] struct {
	Name          string
	Discriminator Discriminator
	Decode        func(payload []byte) (T, error)
}

// NewBorshKind 构造 borsh 布局的事件类型，payload 必须恰好是一个完整的 T：
// 不足或有多余字节都视为解码失败。minSize 为 payload 的最小字节数（0 表示不校验）。
func NewBorshKind[T any](name string, disc Discriminator, minSize int) Kind[T] {
	return newBorshKind[T](name, disc, minSize, false)
}

// NewLenientBorshKind 同 NewBorshKind，但忽略尾部多余字节（指令参数在程序升级后常在末尾追加可选字段）
func NewLenientBorshKind[T any](name string, disc Discriminator, minSize int) Kind[T] {
	return newBorshKind[T](name, disc, minSize, true)
}

func newBorshKind[T any](name string, disc Discriminator, minSize int, lenient bool) Kind[T] {
	return Kind[T]{
		Name:          name,
		Discriminator: disc,
		Decode: func(payload []byte) (T, error) {
			var event T
			if len(payload) < minSize {
				return event, fmt.Errorf("%s: %w: got=%d, want>=%d", name, ErrPayloadTooShort, len(payload), minSize)
			}
			if err := borsh.Deserialize(&event, payload); err != nil {
				return event, fmt.Errorf("%s: borsh deserialize: %w", name, err)
			}
			if lenient {
				return event, nil
			}
			// borsh 编码唯一，重新序列化的长度即实际读取的字节数
			encoded, err := borsh.Serialize(event)
			if err != nil {
				return event, fmt.Errorf("%s: borsh serialize: %w", name, err)
			}
			if len(encoded) != len(payload) {
				var zero T
				return zero, fmt.Errorf("%s: %w: read=%d, got=%d", name, ErrTrailingBytes, len(encoded), len(payload))
			}
			return event, nil
		},
	}
}

// decode 调用解码函数，并把 panic 转为 error
func (k Kind[T]) decode(payload []byte) (event T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			event, err = zero, fmt.Errorf("%s: decode panic: %v", k.Name, r)
		}
	}()
	return k.Decode(payload)
}

// DecodeFrame 校验帧的判别符并解码其余字节；判别符不匹配或解码失败时 ok=false
func DecodeFrame[T any](frame []byte, kind Kind[T]) (T, bool) {
	var zero T
	disc, payload, ok := SplitFrame(frame)
	if !ok || disc != kind.Discriminator {
		return zero, false
	}
	event, err := kind.decode(payload)
	if err != nil {
		logger.Debugf("[eventparser] 判别符匹配但解码失败，跳过: kind=%s, err=%v", kind.Name, err)
		return zero, false
	}
	return event, true
}

// ParseLogs 从后往前扫描日志，返回最后一条（按时间顺序）能被 kind 成功解码的事件。
// 匹配后解码失败的行会被跳过，继续向前寻找更早的完整事件。
func ParseLogs[T any](logs []string, kind Kind[T]) (T, bool) {
	event, _, _, ok := scanLogs(logs, kind)
	return event, ok
}

// scanLogs 同 ParseLogs，额外返回命中的帧与日志行号
func scanLogs[T any](logs []string, kind Kind[T]) (event T, frame []byte, line int, ok bool) {
	for i := len(logs) - 1; i >= 0; i-- {
		f, found := DecodeProgramData(logs[i])
		if !found {
			continue
		}
		if event, ok = DecodeFrame(f, kind); ok {
			return event, f, i, true
		}
	}
	return event, nil, -1, false
}
