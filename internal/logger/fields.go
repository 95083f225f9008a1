package logger

import (
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/draft-n-pray/internal/utils"
)

// Field keys shared by the model, agent and tool logs.
const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
	FieldThread   = "thread_id"
	FieldTool     = "tool"
)

// present builds string fields from key/value pairs and skips blank values.
func present(pairs ...[2]string) []zap.Field {
	fields := make([]zap.Field, 0, len(pairs))
	for _, pair := range pairs {
		key, value := strings.TrimSpace(pair[0]), strings.TrimSpace(pair[1])
		if key == "" || value == "" {
			continue
		}
		fields = append(fields, zap.String(key, value))
	}
	return fields
}

// WithFields attaches fields to logger. A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// AI describes the provider and model behind a request.
func AI(provider, model string) []zap.Field {
	return present([2]string{FieldProvider, provider}, [2]string{FieldModel, model})
}

func WithAI(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, AI(provider, model)...)
}

// Agent describes a step of a conversation. tool may be empty.
func Agent(thread, tool string) []zap.Field {
	return present([2]string{FieldThread, thread}, [2]string{FieldTool, tool})
}

// Preview is a debug field holding at most limit runes of text.
func Preview(key, text string, limit int) zap.Field {
	return zap.String(key, utils.TruncateForLog(text, limit))
}
