// Package logger builds the process-wide zap logger.
package logger

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the level and the optional rotating log file.
type Config struct {
	Level      string
	Filename   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
	// Console receives a copy of every entry; nil means os.Stdout.
	Console io.Writer
}

// New returns a logger writing JSON lines to the console and, when Filename
// is set, to a lumberjack-rotated file. The returned func flushes buffers and
// must be called before exit.
func New(cfg Config) (*zap.Logger, func(), error) {
	level := new(zapcore.Level)
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, nil, err
		}
	}

	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}
	syncers := []zapcore.WriteSyncer{zapcore.AddSync(console)}

	var buffered *zapcore.BufferedWriteSyncer
	if cfg.Filename != "" {
		buffered = &zapcore.BufferedWriteSyncer{
			WS: zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.Filename,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
			}),
			Size:          256 * 1024,
			FlushInterval: 5 * time.Second,
		}
		syncers = append(syncers, buffered)
	}

	core := zapcore.NewCore(encoder(), zapcore.NewMultiWriteSyncer(syncers...), level)
	log := zap.New(core, zap.AddCaller())

	cleanup := func() {
		_ = log.Sync()
		if buffered != nil {
			_ = buffered.Stop()
		}
	}
	return log, cleanup, nil
}

func encoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}
