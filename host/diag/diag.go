// Package diag is the structured fault/event log sink: a console-mirrored,
// rotated-file zap logger for humans, plus a small CBOR-encoded ring
// buffer of EDID/CSD/CID summaries a host-side tool can pull over the
// console link without re-deriving them from log text.
package diag

import (
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a *zap.Logger writing to both the console mirror and a
// rotated on-SD-card log file, plus a ring buffer of CBOR snapshots.
type Logger struct {
	*zap.Logger

	mu   sync.Mutex
	ring [][]byte
	cap  int
}

// Config selects the file-sink rotation policy, in the style of
// lumberjack.Logger's own fields.
type Config struct {
	// FilePath is the rotated diagnostic log file's path.
	FilePath string
	// MaxSizeMB is the size in megabytes a log file reaches before
	// rotation.
	MaxSizeMB int
	// MaxBackups is the number of rotated files retained.
	MaxBackups int
	// SnapshotRingSize bounds how many CBOR snapshots Logger retains.
	SnapshotRingSize int
}

// New builds a Logger writing console-encoded records (Info and above) to
// the console writer and JSON records (Debug and above) to a
// lumberjack-rotated file, mirroring the way a
// console-encoder + file-sink pair is composed in the teacher corpus.
func New(console zapcore.WriteSyncer, cfg Config) *Logger {
	fileSink := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), console, zapcore.InfoLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(fileSink), zapcore.DebugLevel),
	)

	ringCap := cfg.SnapshotRingSize
	if ringCap <= 0 {
		ringCap = 16
	}

	return &Logger{Logger: zap.New(core), cap: ringCap}
}

// FaultRecord mirrors the scan-out engine's fault payload for
// structured logging: the state at fault, the cause, and the line the
// fault occurred on.
type FaultRecord struct {
	State           string `cbor:"state"`
	Cause           string `cbor:"cause"`
	TimestampUnixNs int64  `cbor:"ts_unix_ns"`
	LineAtFault     int    `cbor:"line_at_fault"`
}

// LogFault records a ScanoutEngine fault both as a structured log line
// and as a CBOR snapshot in the ring buffer.
func (l *Logger) LogFault(rec FaultRecord) {
	l.Error("scanout fault",
		zap.String("state", rec.State),
		zap.String("cause", rec.Cause),
		zap.Int64("ts_unix_ns", rec.TimestampUnixNs),
		zap.Int("line_at_fault", rec.LineAtFault),
	)
	l.snapshot(rec)
}

// Snapshot CBOR-encodes v and appends it to the ring buffer, evicting
// the oldest entry if full.
func (l *Logger) snapshot(v interface{}) {
	enc, err := cbor.Marshal(v)
	if err != nil {
		l.Warn("diag: snapshot encode failed", zap.Error(err))
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ring = append(l.ring, enc)
	if len(l.ring) > l.cap {
		l.ring = l.ring[len(l.ring)-l.cap:]
	}
}

// LogSummary records any summary value (e.g. edid.Summary, a CSD/CID
// dump) as both a structured log line and a ring-buffer snapshot.
func (l *Logger) LogSummary(tag string, v interface{}) {
	l.Info("summary", zap.String("tag", tag), zap.Any("value", v))
	l.snapshot(v)
}

// Snapshots returns the currently buffered CBOR-encoded snapshots,
// oldest first.
func (l *Logger) Snapshots() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.ring))
	copy(out, l.ring)
	return out
}

// DecodeSnapshot is a convenience for a host-side tool: it CBOR-decodes
// one ring-buffer entry into v.
func DecodeSnapshot(entry []byte, v interface{}) error {
	if err := cbor.Unmarshal(entry, v); err != nil {
		return errors.Wrap(err, "diag: decode snapshot")
	}
	return nil
}
