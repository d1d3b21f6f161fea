package audit

import "go.uber.org/zap"

// LogWriter is the fallback EventWriter used when no ClickHouse DSN is
// configured: every event becomes one structured log line.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a LogWriter.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(event *ToolCallEvent) {
	w.logger.Info("tool call event",
		zap.String("request_id", event.RequestID),
		zap.String("tool", event.ToolName),
		zap.String("verdict", event.Verdict),
		zap.String("category", event.Category),
		zap.String("rule_id", event.RuleID),
		zap.String("error_code", event.ErrorCode),
		zap.Bool("success", event.Success),
		zap.String("args_hash", event.ArgsHash),
		zap.Float32("latency_ms", event.LatencyMs),
	)
}

func (w *LogWriter) Close() {}
