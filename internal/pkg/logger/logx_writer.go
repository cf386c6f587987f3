package logger

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"
	"go.uber.org/zap"
)

// logxWriter 把 go-zero logx 的输出转到 zap，与 Infof 等共用 stdout / 轮转文件
type logxWriter struct {
	l *zap.Logger
}

func newLogxWriter(l *zap.Logger) logx.Writer {
	// logx 自带 caller 字段
	return &logxWriter{l: l.WithOptions(zap.WithCaller(false))}
}

func (w *logxWriter) Alert(v any) {
	w.l.Error(fmt.Sprint(v))
}

func (w *logxWriter) Close() error {
	return w.l.Sync()
}

func (w *logxWriter) Debug(v any, fields ...logx.LogField) {
	w.l.Debug(fmt.Sprint(v), toZapFields(fields)...)
}

func (w *logxWriter) Error(v any, fields ...logx.LogField) {
	w.l.Error(fmt.Sprint(v), toZapFields(fields)...)
}

func (w *logxWriter) Info(v any, fields ...logx.LogField) {
	w.l.Info(fmt.Sprint(v), toZapFields(fields)...)
}

// Severe 不退出进程
func (w *logxWriter) Severe(v any) {
	w.l.Error(fmt.Sprint(v))
}

func (w *logxWriter) Slow(v any, fields ...logx.LogField) {
	w.l.Warn(fmt.Sprint(v), toZapFields(fields)...)
}

func (w *logxWriter) Stack(v any) {
	w.l.Error(fmt.Sprint(v), zap.Stack("stack"))
}

func (w *logxWriter) Stat(v any, fields ...logx.LogField) {
	w.l.Info(fmt.Sprint(v), toZapFields(fields)...)
}

func toZapFields(fields []logx.LogField) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	zf := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		zf = append(zf, zap.Any(f.Key, f.Value))
	}
	return zf
}

// logxLevel logx 没有 warn 级别，warn 及以上只放行 error
func logxLevel(level string) uint32 {
	switch strings.ToLower(level) {
	case "debug":
		return logx.DebugLevel
	case "", "info":
		return logx.InfoLevel
	default:
		return logx.ErrorLevel
	}
}
