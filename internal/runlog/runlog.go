// Package runlog records a pipeline run as plain-text lines appended to a log
// file, one line per event, each tagged with the run ID.
package runlog

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Kind is the reason code of a run event.
type Kind string

const (
	RunStart        Kind = "run_start"
	SessionAcquired Kind = "session_acquired"
	ListingFetched  Kind = "listing_fetched"
	RowsDiscovered  Kind = "rows_discovered"
	RowSkipped      Kind = "row_skipped"
	GeocodeCacheHit Kind = "geocode_cache_hit"
	GeocodeFailed   Kind = "geocode_failed"
	GeocodeFallback Kind = "geocode_fallback"
	RecordAdded     Kind = "record_added"
	Fatal           Kind = "fatal"
	RunComplete     Kind = "run_complete"
)

func (k Kind) level() zapcore.Level {
	switch k {
	case Fatal:
		return zapcore.ErrorLevel
	case RowSkipped, GeocodeFailed, GeocodeFallback:
		return zapcore.WarnLevel
	case GeocodeCacheHit, RecordAdded:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger appends run events to a file and mirrors them to the global zap
// logger. Its methods never fail; write problems are dropped.
type Logger struct {
	runID string
	z     *zap.Logger
	file  *os.File
}

// Open starts a run log appending to path. When path is empty or cannot be
// opened, events go to the global logger only.
func Open(path string) *Logger {
	runID := uuid.NewString()
	core := zap.L().Core()

	var file *os.File
	if path != "" {
		f, err := openAppend(path)
		if err != nil {
			zap.L().Warn("runlog: open failed, logging to stderr only",
				zap.String("path", path), zap.Error(err))
		} else {
			file = f
			core = zapcore.NewTee(core, fileCore(f))
		}
	}

	z := zap.New(core, zap.ErrorOutput(zapcore.AddSync(io.Discard))).
		With(zap.String("run_id", runID))
	return &Logger{runID: runID, z: z, file: file}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{runID: uuid.NewString(), z: zap.NewNop()}
}

func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

func fileCore(w io.Writer) zapcore.Core {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.CallerKey = zapcore.OmitKey
	enc.StacktraceKey = zapcore.OmitKey
	return zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), zapcore.DebugLevel)
}

// RunID identifies the run on every line.
func (l *Logger) RunID() string {
	return l.runID
}

// Event records one run event.
func (l *Logger) Event(kind Kind, msg string, fields ...zap.Field) {
	if l == nil || l.z == nil {
		return
	}
	l.z.Log(kind.level(), msg, append([]zap.Field{zap.String("event", string(kind))}, fields...)...)
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.z.Sync()
	err := l.file.Close()
	l.file = nil
	return err
}
