package logger

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// AsyncConfig configures the async logger wrapper.
type AsyncConfig struct {
	Enabled      bool
	QueueSize    int
	WorkerCount  int
	DropWhenFull bool
}

type logLevel int

const (
	logLevelDebug logLevel = iota
	logLevelInfo
	logLevelWarn
	logLevelError
	logLevelCritical
	logLevelException
)

type asyncEntry struct {
	base  Logger
	level logLevel
	msg   string
	err   error
	args  []any
}

type asyncDispatcher struct {
	entries      chan asyncEntry
	dropWhenFull bool
	dropped      atomic.Int64
	mu           sync.RWMutex
	wg           sync.WaitGroup
	stopOnce     sync.Once
	stopped      atomic.Bool
}

// AsyncLogger queues log entries and writes them through worker goroutines, so callers
// only pay for a channel send (or nothing at all when DropWhenFull is set and the queue is full).
type AsyncLogger struct {
	base       Logger
	root       Logger
	dispatcher *asyncDispatcher
}

// WrapAsync wraps a logger with async dispatch when enabled.
func WrapAsync(base Logger, cfg AsyncConfig) Logger {
	if !cfg.Enabled {
		return base
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}

	dispatcher := &asyncDispatcher{
		entries:      make(chan asyncEntry, queueSize),
		dropWhenFull: cfg.DropWhenFull,
	}
	for i := 0; i < workerCount; i++ {
		dispatcher.wg.Add(1)
		go func() {
			defer dispatcher.wg.Done()
			for entry := range dispatcher.entries {
				write(entry.base, entry)
			}
		}()
	}

	return &AsyncLogger{
		base:       base,
		root:       base,
		dispatcher: dispatcher,
	}
}

// Debug logs a debug-level message asynchronously.
func (l *AsyncLogger) Debug(msg string, args ...any) {
	l.enqueue(asyncEntry{level: logLevelDebug, msg: msg, args: args})
}

// Info logs an info-level message asynchronously.
func (l *AsyncLogger) Info(msg string, args ...any) {
	l.enqueue(asyncEntry{level: logLevelInfo, msg: msg, args: args})
}

// Warn logs a warn-level message asynchronously.
func (l *AsyncLogger) Warn(msg string, args ...any) {
	l.enqueue(asyncEntry{level: logLevelWarn, msg: msg, args: args})
}

// Error logs an error-level message asynchronously.
func (l *AsyncLogger) Error(msg string, args ...any) {
	l.enqueue(asyncEntry{level: logLevelError, msg: msg, args: args})
}

// Critical logs a critical-level message asynchronously.
func (l *AsyncLogger) Critical(msg string, args ...any) {
	l.enqueue(asyncEntry{level: logLevelCritical, msg: msg, args: args})
}

// Exception logs an error with stack information asynchronously. The stack recorded is the
// worker's, so callers that need the exact call site should log synchronously.
func (l *AsyncLogger) Exception(msg string, err error, args ...any) {
	l.enqueue(asyncEntry{level: logLevelException, msg: msg, err: err, args: args})
}

// With returns a new logger with additional fields.
func (l *AsyncLogger) With(args ...any) Logger {
	return &AsyncLogger{
		base:       l.base.With(args...),
		root:       l.root,
		dispatcher: l.dispatcher,
	}
}

// WithContext returns a new logger with the given context.
func (l *AsyncLogger) WithContext(ctx context.Context) Logger {
	return &AsyncLogger{
		base:       l.base.WithContext(ctx),
		root:       l.root,
		dispatcher: l.dispatcher,
	}
}

// Dropped reports how many entries were discarded because the queue was full.
func (l *AsyncLogger) Dropped() int64 {
	return l.dispatcher.dropped.Load()
}

// Close drains the queue, stops async workers and closes the wrapped logger when it
// holds resources. Entries logged after Close are written synchronously.
func (l *AsyncLogger) Close() error {
	l.dispatcher.stop()
	if closer, ok := l.root.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (l *AsyncLogger) enqueue(entry asyncEntry) {
	entry.base = l.base
	l.dispatcher.mu.RLock()
	defer l.dispatcher.mu.RUnlock()
	if l.dispatcher.stopped.Load() {
		write(l.base, entry)
		return
	}

	if l.dispatcher.dropWhenFull {
		select {
		case l.dispatcher.entries <- entry:
		default:
			l.dispatcher.dropped.Add(1)
		}
		return
	}

	l.dispatcher.entries <- entry
}

func write(base Logger, entry asyncEntry) {
	switch entry.level {
	case logLevelDebug:
		base.Debug(entry.msg, entry.args...)
	case logLevelInfo:
		base.Info(entry.msg, entry.args...)
	case logLevelWarn:
		base.Warn(entry.msg, entry.args...)
	case logLevelError:
		base.Error(entry.msg, entry.args...)
	case logLevelCritical:
		base.Critical(entry.msg, entry.args...)
	case logLevelException:
		base.Exception(entry.msg, entry.err, entry.args...)
	}
}

func (d *asyncDispatcher) stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped.Store(true)
		close(d.entries)
		d.mu.Unlock()
		d.wg.Wait()
	})
}
