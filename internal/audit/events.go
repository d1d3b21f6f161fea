package audit

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// EventWriter persists dispatch decisions. Write() must NEVER block the
// serving loop.
type EventWriter interface {
	Write(event *ToolCallEvent)
	Close()
}

// ToolCallEvent records one tools/call dispatch decision. Arguments for
// blocked calls are stored as hash only; the raw text is exactly what the
// safety engine refused to let through, so it never reaches a log or table.
type ToolCallEvent struct {
	RequestID   string
	Timestamp   time.Time
	ToolName    string
	ArgsPreview string // sanitized, empty for blocked calls
	ArgsHash    string
	Verdict     string // allow, block, redact
	Category    string
	RuleID      string
	ErrorCode   string // domain error code, empty on success
	Success     bool
	LatencyMs   float32
}

// PreviewLength is the max characters stored in args_preview.
const PreviewLength = 200

// HashPayload returns the stable hex hash stored alongside (or instead of)
// argument text.
func HashPayload(payload string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(payload))
}

// SanitizePreview strips control characters and truncates the payload for
// preview storage without splitting a multi-byte character.
func SanitizePreview(payload string) string {
	runes := make([]rune, 0, len(payload))
	for _, r := range payload {
		if r < 32 && r != '\t' {
			r = ' '
		}
		runes = append(runes, r)
		if len(runes) >= PreviewLength {
			break
		}
	}
	return string(runes)
}
