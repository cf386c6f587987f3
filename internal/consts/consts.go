package consts

import "runtime"

// ProgramDataPrefix 标记携带 Anchor 事件（base64 编码）的程序日志行
const ProgramDataPrefix = "Program data: "

// DefaultSubscribeFilterName 订阅过滤器的默认名称
const DefaultSubscribeFilterName = "client"

// CpuCount 表示逻辑 CPU 核心数，用于控制并发任务调度上限
var CpuCount = runtime.NumCPU()
