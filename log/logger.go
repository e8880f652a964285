package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a small leveled logger used across the gateway.
// A zero-configured logger writes colored text to stdout.
type Logger struct {
	writer io.Writer

	Name  string
	Level Level

	TimeFormat string
	File       string
	NoColor    bool
	JSON       bool
	NoTerminal bool
	Rotation   *Rotation
}

// Rotation configures file rotation for loggers with a File target.
type Rotation struct {
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service,omitempty"`
	Message   string `json:"message"`
}

func New(name string, level Level) *Logger {
	l := &Logger{
		Name:  name,
		Level: level,

		TimeFormat: "2006-01-02 15:04:05",
		Rotation: &Rotation{
			MaxSize:    128,
			MaxBackups: 5,
			MaxAge:     16,
		},
	}

	l.setupWriter()
	return l
}

// NewFile creates a logger that additionally writes to a rotated file.
func NewFile(name string, level Level, file string, noTerminal bool) *Logger {
	l := New(name, level)
	l.File = file
	l.NoTerminal = noTerminal

	l.setupWriter()
	return l
}

// Discard returns a logger that drops everything.
// Useful as a default inside components that accept an optional logger.
func Discard() *Logger {
	return &Logger{
		writer: io.Discard,
		Level:  Fatal + 1,
	}
}

func (l *Logger) setupWriter() {
	var writers []io.Writer

	if !l.NoTerminal {
		writers = append(writers, os.Stdout)
	}

	if l.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   l.File,
			MaxSize:    l.Rotation.MaxSize,
			MaxBackups: l.Rotation.MaxBackups,
			MaxAge:     l.Rotation.MaxAge,
			Compress:   l.Rotation.Compress,
		})
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	l.writer = io.MultiWriter(writers...)
}

func (l *Logger) log(level Level, msg string, args ...any) {
	if level < l.Level {
		return
	}

	timestamp := time.Now().Format(l.TimeFormat)
	formatted := fmt.Sprintf(msg, args...)

	if l.JSON {
		e := entry{
			Timestamp: timestamp,
			Level:     level.String(),
			Message:   formatted,
		}
		if l.Name != "" {
			e.Service = l.Name
		}

		bytes, _ := json.Marshal(e)
		fmt.Fprintf(l.writer, "%s\n", bytes)
	} else {
		prefix := fmt.Sprintf("[%s] %-5s", timestamp, level)
		if l.Name != "" {
			prefix = fmt.Sprintf("%s [%s]", prefix, l.Name)
		}

		if !l.NoTerminal && !l.NoColor {
			fmt.Fprintf(l.writer, "%s%s %s\033[0m\n", level.color(), prefix, formatted)
		} else {
			fmt.Fprintf(l.writer, "%s %s\n", prefix, formatted)
		}
	}

	if level == Fatal {
		os.Exit(1)
	}
}

func (l *Logger) Debug(msg string, args ...any) { l.log(Debug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(Info, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(Warn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(Error, msg, args...) }
func (l *Logger) Fatal(msg string, args ...any) { l.log(Fatal, msg, args...) }

// Named returns a child logger sharing the parent writer.
func (l *Logger) Named(name string) *Logger {
	child := *l
	if l.Name != "" {
		child.Name = fmt.Sprintf("%s/%s", l.Name, name)
	} else {
		child.Name = name
	}

	return &child
}
