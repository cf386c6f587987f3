package consts

// 事件来源协议
const (
	DexPumpfun     = iota + 1 // 1
	DexRaydiumCPMM            // 2
)

var DexNames = []string{
	"Unknown",     // 0 (保留)
	"Pumpfun",     // 1
	"RaydiumCPMM", // 2
}

func DexName(dex int) string {
	if dex >= 1 && dex < len(DexNames) {
		return DexNames[dex]
	}
	return DexNames[0] // Unknown
}
