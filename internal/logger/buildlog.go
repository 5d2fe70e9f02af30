package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// BuildLog is a human-readable log file dedicated to a single build.
// Everything logged through Logger reaches both the base logger and the file.
type BuildLog struct {
	Path   string
	Logger *zap.SugaredLogger

	file *os.File
}

// NewBuildLog creates dir/build_<yyyyMMdd_HHmmss>_<label>.log and returns a
// logger that tees base into it. label must already be safe as a file name. The file records debug messages regardless of the
// console level, since patch decisions are only reproducible from the log.
func NewBuildLog(dir, label string, now time.Time, base *zap.SugaredLogger) (*BuildLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("build_%s_%s.log", now.Format("20060102_150405"), label))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open build log: %w", err)
	}

	if _, err := fmt.Fprintf(f, "===== build log: %s =====\n", label); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write build log header: %w", err)
	}

	fileCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig()),
		zapcore.AddSync(f),
		zapcore.DebugLevel,
	)

	if base == nil {
		base = global
	}

	tee := base.Desugar().WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	}))

	return &BuildLog{Path: path, Logger: tee.Sugar(), file: f}, nil
}

// Close flushes and closes the log file.
func (b *BuildLog) Close() error {
	_ = b.Logger.Sync()

	return b.file.Close()
}
