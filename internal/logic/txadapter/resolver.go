package txadapter

import (
	"geyser-stream-sol/internal/consts"
	"geyser-stream-sol/internal/types"
)

type pubkeyKV struct {
	base58 string       // 原始 base58 字符串
	pubkey types.Pubkey // 解码后的公钥
}

// pubkeyResolver 将余额记录中的 base58 mint / owner 解析为 Pubkey，并在单笔交易内缓存结果。
// 同一交易中重复出现的地址很少，线性查找即可。
type pubkeyResolver struct {
	cache []pubkeyKV
}

func newPubkeyResolver(capacity int) *pubkeyResolver {
	return &pubkeyResolver{cache: make([]pubkeyKV, 0, capacity)}
}

// resolve 命中常用地址或缓存则直接返回，否则解码后加入缓存；非法地址返回零值
func (r *pubkeyResolver) resolve(s string) types.Pubkey {
	switch s {
	case "":
		return types.Pubkey{}
	case consts.WSOLMintStr:
		return consts.WSOLMint
	case consts.USDCMintStr:
		return consts.USDCMint
	}
	for _, kv := range r.cache {
		if kv.base58 == s {
			return kv.pubkey
		}
	}
	pk, err := types.TryPubkeyFromBase58(s)
	if err != nil {
		return types.Pubkey{}
	}
	r.cache = append(r.cache, pubkeyKV{base58: s, pubkey: pk})
	return pk
}
