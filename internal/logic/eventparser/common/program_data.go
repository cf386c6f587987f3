package common

import (
	"encoding/base64"
	"encoding/binary"
	"strings"

	"geyser-stream-sol/internal/consts"
)

// DiscriminatorSize Anchor 事件 / 指令判别符长度
const DiscriminatorSize = 8

// Discriminator 以大端 uint64 表示的 8 字节判别符，与帧前 8 字节逐字节相等等价
type Discriminator uint64

// DiscriminatorFromBytes 读取 b 的前 8 字节；长度不足时 ok=false
func DiscriminatorFromBytes(b []byte) (Discriminator, bool) {
	if len(b) < DiscriminatorSize {
		return 0, false
	}
	return Discriminator(binary.BigEndian.Uint64(b[:DiscriminatorSize])), true
}

func (d Discriminator) Bytes() [DiscriminatorSize]byte {
	var b [DiscriminatorSize]byte
	binary.BigEndian.PutUint64(b[:], uint64(d))
	return b
}

// DecodeProgramData 从单行日志中提取 "Program data: " 后的 base64 负载。
// 不带前缀的行、或 base64 非法的行都返回 ok=false，均不视为错误。
func DecodeProgramData(line string) ([]byte, bool) {
	body, found := strings.CutPrefix(line, consts.ProgramDataPrefix)
	if !found {
		return nil, false
	}
	frame, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, false
	}
	return frame, true
}

// SplitFrame 将帧拆为判别符与 payload；帧长度不足 8 字节时 ok=false
func SplitFrame(frame []byte) (disc Discriminator, payload []byte, ok bool) {
	disc, ok = DiscriminatorFromBytes(frame)
	if !ok {
		return 0, nil, false
	}
	return disc, frame[DiscriminatorSize:], true
}

// EncodeProgramData 是 DecodeProgramData 的逆过程，生成 "Program data: " + base64(disc ++ payload)
func EncodeProgramData(disc Discriminator, payload []byte) string {
	frame := make([]byte, DiscriminatorSize, DiscriminatorSize+len(payload))
	binary.BigEndian.PutUint64(frame, uint64(disc))
	frame = append(frame, payload...)
	return consts.ProgramDataPrefix + base64.StdEncoding.EncodeToString(frame)
}

// EventCpiTag Anchor emit_cpi! 自调用指令的固定前缀，其后紧跟事件判别符与 payload
const EventCpiTag Discriminator = 0xe445a52e51cb9a1d

// UnwrapEventCpi 若指令数据是 emit_cpi! 事件，返回去掉前缀后的事件帧
func UnwrapEventCpi(data []byte) ([]byte, bool) {
	disc, rest, ok := SplitFrame(data)
	if !ok || disc != EventCpiTag || len(rest) < DiscriminatorSize {
		return nil, false
	}
	return rest, true
}
