package ocspguard

import (
	"fmt"
	"io"
	"path"
	"runtime"

	rlog "github.com/sirupsen/logrus"

	"github.com/privacyproxy/ocspguard/internal/redact"
)

// Logger is the logging interface accepted by Options: logrus's FieldLogger
// plus SetOutput and SetLogLevel. A bare *logrus.Logger or *logrus.Entry does
// not satisfy it (neither has SetLogLevel); callers wrap theirs in an adapter
// or use DefaultLogger.
type Logger interface {
	rlog.FieldLogger
	SetOutput(output io.Writer)
	SetLogLevel(level string) error
}

// callerPrettyfier trims caller frames down to base file name and line, same
// shape a reader of this package's log lines will expect from any other
// logrus-backed component in the stack.
func callerPrettyfier(frame *runtime.Frame) (string, string) {
	return path.Base(frame.Function), fmt.Sprintf("%s:%d", path.Base(frame.File), frame.Line)
}

type defaultLogger struct {
	*rlog.Logger
}

func (l *defaultLogger) SetLogLevel(level string) error {
	parsed, err := rlog.ParseLevel(level)
	if err != nil {
		return err
	}
	l.Level = parsed
	return nil
}

// redactingFormatter masks hostnames, serial numbers and fingerprints out of
// every entry's message before handing it to the wrapped formatter. Only the
// message text is masked: structured fields (entry.Data, such as the
// fingerprint field Cache.Load attaches) reach the wrapped formatter as-is.
type redactingFormatter struct {
	wrapped rlog.Formatter
}

func (f *redactingFormatter) Format(entry *rlog.Entry) ([]byte, error) {
	redacted := *entry
	redacted.Message = redact.Line(entry.Message)
	return f.wrapped.Format(&redacted)
}

// DefaultLogger returns a Logger writing text-formatted lines to stderr at
// Info level, with caller frames attached the way every other component in
// this stack formats them, and every message passed through internal/redact.
func DefaultLogger() Logger {
	rLogger := rlog.New()
	rLogger.SetReportCaller(true)
	rLogger.SetFormatter(&redactingFormatter{
		wrapped: &rlog.TextFormatter{CallerPrettyfier: callerPrettyfier},
	})
	return &defaultLogger{Logger: rLogger}
}

// newNoopLogger discards everything; used when Options.Logger is left nil.
func newNoopLogger() Logger {
	l := rlog.New()
	l.SetOutput(io.Discard)
	return &defaultLogger{Logger: l}
}
