package logger

import (
	"fmt"
	"log"
	"strings"

	"github.com/rollbar/rollbar-go"
)

type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(value string) Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// StdLogger writes to a *log.Logger. When rollbar reporting is enabled,
// warnings and errors are also sent to rollbar.
type StdLogger struct {
	std     *log.Logger
	level   Level
	rollbar bool
}

var _ Logger = (*StdLogger)(nil)

func New(std *log.Logger, level Level) *StdLogger {
	return &StdLogger{std: std, level: level}
}

type RollbarConfig struct {
	Token       string
	Environment string
	ServerHost  string
	CodeVersion string
}

// NewRollbar returns a StdLogger that also reports to rollbar. An empty token
// yields a plain StdLogger.
func NewRollbar(std *log.Logger, level Level, conf RollbarConfig) *StdLogger {
	l := New(std, level)
	if conf.Token == "" {
		return l
	}
	rollbar.SetToken(conf.Token)
	rollbar.SetEnvironment(conf.Environment)
	rollbar.SetServerHost(conf.ServerHost)
	rollbar.SetCodeVersion(conf.CodeVersion)
	rollbar.SetEnabled(true)
	l.rollbar = true
	return l
}

// Close flushes pending rollbar items.
func (l *StdLogger) Close() {
	if l.rollbar {
		rollbar.Close()
	}
}

func (l *StdLogger) Debug(msg string, args ...interface{}) {
	l.print(LevelDebug, msg, args)
}

func (l *StdLogger) Info(msg string, args ...interface{}) {
	l.print(LevelInfo, msg, args)
}

func (l *StdLogger) Warn(msg string, args ...interface{}) {
	l.print(LevelWarn, msg, args)
	if l.rollbar {
		rollbar.Warning(prepare(msg, args)...)
	}
}

func (l *StdLogger) Error(msg string, args ...interface{}) {
	l.print(LevelError, msg, args)
	if l.rollbar {
		rollbar.Error(prepare(msg, args)...)
	}
}

func (l *StdLogger) print(level Level, msg string, args []interface{}) {
	if level < l.level {
		return
	}
	l.std.Printf("%s %s", level, format(msg, args))
}

// expected args: error | map[string]interface{} | anything printable
func prepare(msg string, args []interface{}) []interface{} {
	out := make([]interface{}, 0, len(args)+1)
	out = append(out, msg)
	return append(out, args...)
}

func format(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case error:
			parts = append(parts, "error="+v.Error())
		case map[string]interface{}:
			for key, value := range v {
				parts = append(parts, fmt.Sprintf("%s=%v", key, value))
			}
		default:
			parts = append(parts, fmt.Sprintf("%+v", v))
		}
	}
	return strings.Join(parts, " ")
}

// Nop discards everything.
type Nop struct{}

func (Nop) Debug(string, ...interface{}) {}
func (Nop) Info(string, ...interface{})  {}
func (Nop) Warn(string, ...interface{})  {}
func (Nop) Error(string, ...interface{}) {}
