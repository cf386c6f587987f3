package progress

// SlotStatus 表示 slot 的处理状态
type SlotStatus int

const (
	SlotUnknown   SlotStatus = 0 // Redis 不存在
	SlotProcessed SlotStatus = 1 // 已处理成功
	SlotInvalid   SlotStatus = 2 // 明确结构错误、跳过
	SlotPending   SlotStatus = 3 // 正在处理
)

func (s SlotStatus) String() string {
	switch s {
	case SlotProcessed:
		return "processed"
	case SlotInvalid:
		return "invalid"
	case SlotPending:
		return "pending"
	default:
		return "unknown"
	}
}
