// Package monitoring owns the three log streams used by the pipelines.
//
//   - ops:   per-item success/failure, batch lifecycle and summaries
//   - diag:  tuning context (ICP convergence, scaler statistics)
//   - trace: high-frequency telemetry (per-iteration ICP residuals)
//
// Streams are disabled until SetLogWriters is called with a non-nil writer.
package monitoring

import (
	"io"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer

	// JSON switches every stream to the zap JSON encoder.
	JSON bool
}

var (
	mu          sync.RWMutex
	opsLogger   *zap.SugaredLogger
	diagLogger  *zap.SugaredLogger
	traceLogger *zap.SugaredLogger
)

// SetLogWriters configures all three logging streams at once.
// Pass nil for any writer to disable that stream.
func SetLogWriters(w LogWriters) {
	mu.Lock()
	defer mu.Unlock()
	opsLogger = newLogger("ops", w.Ops, w.JSON)
	diagLogger = newLogger("diag", w.Diag, w.JSON)
	traceLogger = newLogger("trace", w.Trace, w.JSON)
}

// SetLogger routes all three streams to an existing zap logger. Passing nil
// disables every stream.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		opsLogger, diagLogger, traceLogger = nil, nil, nil
		return
	}
	opsLogger = l.Named("ops").Sugar()
	diagLogger = l.Named("diag").Sugar()
	traceLogger = l.Named("trace").Sugar()
}

func newLogger(name string, w io.Writer, json bool) *zap.SugaredLogger {
	if w == nil {
		return nil
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if json {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel)
	return zap.New(core).Named(name).Sugar()
}

// Opsf logs to the ops stream (actionable warnings, errors, lifecycle events).
func Opsf(format string, args ...interface{}) {
	mu.RLock()
	l := opsLogger
	mu.RUnlock()
	if l != nil {
		l.Infof(format, args...)
	}
}

// Warnf logs a warning on the ops stream.
func Warnf(format string, args ...interface{}) {
	mu.RLock()
	l := opsLogger
	mu.RUnlock()
	if l != nil {
		l.Warnf(format, args...)
	}
}

// Diagf logs to the diag stream (day-to-day diagnostics, tuning context).
func Diagf(format string, args ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Debugf(format, args...)
	}
}

// Tracef logs to the trace stream.
func Tracef(format string, args ...interface{}) {
	mu.RLock()
	l := traceLogger
	mu.RUnlock()
	if l != nil {
		l.Debugf(format, args...)
	}
}
