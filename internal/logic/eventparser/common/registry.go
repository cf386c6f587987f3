package common

import (
	"fmt"

	"geyser-stream-sol/internal/types"
)

// Match 是注册表解析出的类型擦除结果
type Match struct {
	Kind          string
	Dex           int
	Discriminator Discriminator
	Frame         []byte // 判别符 + payload
	Line          int    // 日志行号；指令数据解析时为 -1
	Value         any    // 具体事件结构（值类型）
}

// AccountBinder 由需要指令账户的指令参数类型实现：
// 返回带账户信息的事件值；账户数量不满足布局时 ok=false，保留原参数值
type AccountBinder interface {
	BindAccounts(accounts []types.Pubkey) (value any, ok bool)
}

// BindAccounts 若 m.Value 实现 AccountBinder，则替换为附带账户的事件值
func (m *Match) BindAccounts(accounts []types.Pubkey) {
	binder, ok := m.Value.(AccountBinder)
	if !ok {
		return
	}
	if v, ok := binder.BindAccounts(accounts); ok {
		m.Value = v
	}
}

type registered struct {
	name     string
	scanLogs func(logs []string) (Match, bool)
	decode   func(frame []byte) (Match, bool)
}

// Registry 是构建期确定的事件类型表：按注册顺序保存，并以判别符为键建立索引。
// 注册完成后只读，可被任意 goroutine 并发使用。
type Registry struct {
	kinds  []registered
	byDisc map[Discriminator]int
}

func NewRegistry() *Registry {
	return &Registry{byDisc: make(map[Discriminator]int)}
}

// Register 将 kind 加入注册表；判别符重复属于编码错误，直接 panic
func Register[T any](r *Registry, dex int, kind Kind[T]) {
	if _, exists := r.byDisc[kind.Discriminator]; exists {
		panic(fmt.Sprintf("eventparser: duplicate discriminator %#016x for %s", uint64(kind.Discriminator), kind.Name))
	}

	toMatch := func(v T, frame []byte, line int) Match {
		return Match{
			Kind:          kind.Name,
			Dex:           dex,
			Discriminator: kind.Discriminator,
			Frame:         frame,
			Line:          line,
			Value:         v,
		}
	}

	r.byDisc[kind.Discriminator] = len(r.kinds)
	r.kinds = append(r.kinds, registered{
		name: kind.Name,
		scanLogs: func(logs []string) (Match, bool) {
			v, frame, line, ok := scanLogs(logs, kind)
			if !ok {
				return Match{}, false
			}
			return toMatch(v, frame, line), true
		},
		decode: func(frame []byte) (Match, bool) {
			v, ok := DecodeFrame(frame, kind)
			if !ok {
				return Match{}, false
			}
			return toMatch(v, frame, -1), true
		},
	})
}

func (r *Registry) Len() int {
	return len(r.kinds)
}

// Kinds 按注册顺序返回事件类型名称
func (r *Registry) Kinds() []string {
	names := make([]string, 0, len(r.kinds))
	for _, k := range r.kinds {
		names = append(names, k.name)
	}
	return names
}

// Lookup 根据判别符查找事件类型名称
func (r *Registry) Lookup(disc Discriminator) (string, bool) {
	idx, ok := r.byDisc[disc]
	if !ok {
		return "", false
	}
	return r.kinds[idx].name, true
}

// ParseLogs 按注册顺序逐个类型独立地反向扫描日志，返回第一个成功的类型的事件。
func (r *Registry) ParseLogs(logs []string) (Match, bool) {
	for _, k := range r.kinds {
		if m, ok := k.scanLogs(logs); ok {
			return m, true
		}
	}
	return Match{}, false
}

// ParseAllKinds 对每个类型独立执行反向扫描，每个类型至多返回一个事件，结果按注册顺序排列。
func (r *Registry) ParseAllKinds(logs []string) []Match {
	var matches []Match
	for _, k := range r.kinds {
		if m, ok := k.scanLogs(logs); ok {
			matches = append(matches, m)
		}
	}
	return matches
}

// DecodeFrame 通过判别符索引直接定位类型并解码单个帧（用于指令数据）
func (r *Registry) DecodeFrame(frame []byte) (Match, bool) {
	disc, ok := DiscriminatorFromBytes(frame)
	if !ok {
		return Match{}, false
	}
	idx, ok := r.byDisc[disc]
	if !ok {
		return Match{}, false
	}
	return r.kinds[idx].decode(frame)
}
