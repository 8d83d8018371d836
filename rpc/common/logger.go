package common

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboat's logger.ILogger)
// --------------------------------------------------------------------------

// dSOLogger writes "LEVEL | name | message" lines. The level can change while
// other goroutines log.
type dSOLogger struct {
	name   string
	level  atomic.Int32
	logger *log.Logger
}

func (l *dSOLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *dSOLogger) enabled(level logger.LogLevel) bool {
	return logger.LogLevel(l.level.Load()) >= level
}

func (l *dSOLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(logger.DEBUG) {
		l.log("DEBUG", format, args...)
	}
}

func (l *dSOLogger) Infof(format string, args ...interface{}) {
	if l.enabled(logger.INFO) {
		l.log("INFO", format, args...)
	}
}

func (l *dSOLogger) Warningf(format string, args ...interface{}) {
	if l.enabled(logger.WARNING) {
		l.log("WARN", format, args...)
	}
}

func (l *dSOLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(logger.ERROR) {
		l.log("ERROR", format, args...)
	}
}

// Panicf always panics, after logging if CRITICAL is enabled
func (l *dSOLogger) Panicf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	if l.enabled(logger.CRITICAL) {
		l.logger.Printf("%-5s | %-15s | %s", "PANIC", l.name, message)
	}
	panic(message)
}

func (l *dSOLogger) log(levelStr string, format string, args ...interface{}) {
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger implements the logger.Factory interface
func CreateLogger(pkgName string) logger.ILogger {
	l := &dSOLogger{
		name:   pkgName,
		logger: log.New(os.Stdout, "", log.Ldate|log.Ltime),
	}
	l.SetLevel(logger.INFO)
	return l
}

// ParseLogLevel converts debug, info, warn(ing) or error into a log level
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info", "":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level %q (expected debug, info, warn or error)", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// LoggerNames lists the named loggers of the server
var LoggerNames = []string{
	"locks",
	"eviction",
	"objects",
	"rpc",
	"transport/rpc",
}

var factoryOnce sync.Once

// InitLoggers installs the custom logger factory and sets the level of every
// named logger
func InitLoggers(config ServerConfig) error {
	level, err := ParseLogLevel(config.LogLevel)
	if err != nil {
		return err
	}

	// Set as the global logger factory, once per process
	factoryOnce.Do(func() { logger.SetLoggerFactory(CreateLogger) })

	for _, name := range LoggerNames {
		logger.GetLogger(name).SetLevel(level)
	}
	return nil
}
