package logger

import (
	"fmt"
	"log"
	"sync"

	"github.com/fatih/color"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NoticeLevel
	ErrorLevel
)

// palette is cycled through as chains are registered
var palette = []color.Attribute{
	color.FgHiGreen,
	color.FgYellow,
	color.FgMagenta,
	color.FgHiBlue,
	color.FgRed,
	color.FgBlue,
	color.FgGreen,
	color.FgCyan,
}

var (
	chainMu       sync.RWMutex
	chainPrefixes = map[uint64]string{}
	chainColors   = map[uint64]color.Attribute{}
)

// RegisterChain associates a chain id with a display name used as a log
// prefix. Names come from the topology config rather than a baked-in table.
func RegisterChain(chainID uint64, name string) {
	chainMu.Lock()
	defer chainMu.Unlock()
	chainPrefixes[chainID] = fmt.Sprintf("[%s] ", name)
	chainColors[chainID] = palette[len(chainColors)%len(palette)]
}

func chainPrefix(chainID uint64, coloring bool) string {
	chainMu.RLock()
	prefix, ok := chainPrefixes[chainID]
	attr := chainColors[chainID]
	chainMu.RUnlock()
	if !ok {
		prefix = fmt.Sprintf("[CHAIN %d] ", chainID)
		attr = color.FgWhite
	}
	if coloring {
		prefix = color.New(attr).Sprint(prefix)
	}
	return prefix
}

// Logger is a simple interface for logging messages.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})
	InfoWithChain(chainID uint64, format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})
	ErrorWithChain(chainID uint64, format string, args ...interface{})

	// Debug logs a debug message.
	Debug(format string, args ...interface{})
	DebugWithChain(chainID uint64, format string, args ...interface{})

	// Notice logs a notice message.
	Notice(format string, args ...interface{})
	NoticeWithChain(chainID uint64, format string, args ...interface{})
}

// EmptyLogger is a simple implementation of the Logger interface that does nothing.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Info(_ string, _ ...interface{})                      {}
func (l *EmptyLogger) InfoWithChain(_ uint64, _ string, _ ...interface{})   {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})                     {}
func (l *EmptyLogger) ErrorWithChain(_ uint64, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Debug(_ string, _ ...interface{})                     {}
func (l *EmptyLogger) DebugWithChain(_ uint64, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{})                    {}
func (l *EmptyLogger) NoticeWithChain(_ uint64, _ string, _ ...interface{}) {}

// StdLogger is a standard implementation of the Logger interface that logs messages to the console.
type StdLogger struct {
	enableColoring bool
	level          Level
	mu             sync.Mutex
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(enableColoring bool, level Level) *StdLogger {
	return &StdLogger{
		enableColoring: enableColoring,
		level:          level,
	}
}

// formatMessage prepends the log level and chain prefix, colored if enabled.
func (l *StdLogger) formatMessage(level Level, chainID uint64, withChain bool, format string) string {
	var levelStr string
	switch level {
	case DebugLevel:
		levelStr = "[DEBUG]  "
	case InfoLevel:
		levelStr = "[INFO]   "
	case NoticeLevel:
		levelStr = "[NOTICE] "
	case ErrorLevel:
		levelStr = "[ERROR]  "
	}

	if !withChain {
		return levelStr + format
	}
	return levelStr + chainPrefix(chainID, l.enableColoring) + format
}

func (l *StdLogger) logf(level Level, chainID uint64, withChain bool, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= level {
		log.Printf(l.formatMessage(level, chainID, withChain, format), args...)
	}
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.logf(InfoLevel, 0, false, format, args...)
}

func (l *StdLogger) InfoWithChain(chainID uint64, format string, args ...interface{}) {
	l.logf(InfoLevel, chainID, true, format, args...)
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.logf(ErrorLevel, 0, false, format, args...)
}

func (l *StdLogger) ErrorWithChain(chainID uint64, format string, args ...interface{}) {
	l.logf(ErrorLevel, chainID, true, format, args...)
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.logf(DebugLevel, 0, false, format, args...)
}

func (l *StdLogger) DebugWithChain(chainID uint64, format string, args ...interface{}) {
	l.logf(DebugLevel, chainID, true, format, args...)
}

func (l *StdLogger) Notice(format string, args ...interface{}) {
	l.logf(NoticeLevel, 0, false, format, args...)
}

func (l *StdLogger) NoticeWithChain(chainID uint64, format string, args ...interface{}) {
	l.logf(NoticeLevel, chainID, true, format, args...)
}
