// Package logger provides the process-wide structured logger used by all
// knowledge-base components. Log calls made before Init are dropped.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu       sync.RWMutex
	instance *log.Logger
)

// Options configures the global logger.
type Options struct {
	// Debug lowers the level so diagnostic output from fallback paths
	// (tokenizer engine failures, LLM degradation) becomes visible.
	Debug bool
	// Output defaults to stderr when nil.
	Output io.Writer
}

// Init installs the global logger. It must be called once at startup; tests
// may call it again to redirect output.
func Init(opts Options) {
	level := log.InfoLevel
	if opts.Debug {
		level = log.DebugLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	mu.Lock()
	defer mu.Unlock()
	instance = log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
}

func get() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// Debug writes a message at DEBUG level.
func Debug(message string, keyvals ...any) {
	if l := get(); l != nil {
		l.Debug(message, keyvals...)
	}
}

// Info writes a message at INFO level.
func Info(message string, keyvals ...any) {
	if l := get(); l != nil {
		l.Info(message, keyvals...)
	}
}

// Warn writes a message at WARN level.
func Warn(message string, keyvals ...any) {
	if l := get(); l != nil {
		l.Warn(message, keyvals...)
	}
}

// Error writes a message at ERROR level.
func Error(message string, keyvals ...any) {
	if l := get(); l != nil {
		l.Error(message, keyvals...)
	}
}

// Fatal writes a message at FATAL level and terminates the program.
func Fatal(message string, keyvals ...any) {
	if l := get(); l != nil {
		l.Fatal(message, keyvals...)
	}
	os.Exit(1)
}
