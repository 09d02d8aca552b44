package logger

import (
	"fmt"
	"log"
)

type Logger interface {
	Log(format string, args ...interface{})
}

type taggedLogger struct {
	tag string
}

func NewLogger(tag string) Logger {
	return &taggedLogger{tag: tag}
}

func (l *taggedLogger) Log(format string, args ...interface{}) {
	log.Printf("[%s] %s", l.tag, fmt.Sprintf(format, args...))
}
