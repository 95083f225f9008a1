package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls how the application logger is built.
type Options struct {
	JSON  bool
	Debug bool
	// Output is "stdout" or "stderr". Interactive commands log to stderr so the
	// conversation on stdout stays readable.
	Output string
	// File enables an additional rotating log file.
	File string
	// Quiet raises the console level to warn. The file sink keeps the full level.
	Quiet bool
}

func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	encoding := "console"

	if opts.JSON {
		encoding = "json"
	}

	if opts.Debug {
		level = zapcore.DebugLevel
	}

	consoleLevel := level
	if opts.Quiet && consoleLevel < zapcore.WarnLevel {
		consoleLevel = zapcore.WarnLevel
	}

	output := zapcore.Lock(os.Stdout)
	if strings.EqualFold(strings.TrimSpace(opts.Output), "stderr") {
		output = zapcore.Lock(os.Stderr)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(encoding), output, zap.NewAtomicLevelAt(consoleLevel)),
	}

	if file := strings.TrimSpace(opts.File); file != "" {
		rotated := zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		})
		// Files are always json: they are meant for grepping, not for reading in a terminal.
		cores = append(cores, zapcore.NewCore(newEncoder("json"), rotated, zap.NewAtomicLevelAt(level)))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))), nil
}

func newEncoder(encoding string) zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		MessageKey: "step",

		LevelKey:    "level",
		EncodeLevel: zapcore.LowercaseLevelEncoder,

		TimeKey:    "time",
		EncodeTime: zapcore.RFC3339TimeEncoder,

		CallerKey:    "caller",
		EncodeCaller: zapcore.ShortCallerEncoder,

		EncodeDuration: zapcore.StringDurationEncoder,
	}

	if encoding == "json" {
		return zapcore.NewJSONEncoder(cfg)
	}
	return zapcore.NewConsoleEncoder(cfg)
}
