package utils

import "strconv"

// ParseUint64 解析十进制字符串，非法输入返回 0（节点返回的 amount 均为合法整数字符串）
func ParseUint64(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
