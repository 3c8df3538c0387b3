// Package audit provides the append-only request log sink.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry is one audit record: a message plus optional structured data.
type Entry struct {
	Message string
	Data    any
}

// Sink receives audit entries. Implementations must tolerate concurrent
// appenders and must never fail the caller: the audit trail is
// best-effort and request handling does not depend on it.
type Sink interface {
	Append(e Entry)
}

// formatter renders an entry as "[timestamp] message", optionally
// followed by the pretty-printed JSON data block.
type formatter struct{}

func (formatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := make([]byte, 0, 64+len(entry.Message))
	b = append(b, '[')
	b = entry.Time.UTC().AppendFormat(b, time.RFC3339)
	b = append(b, "] "...)
	b = append(b, entry.Message...)
	b = append(b, '\n')
	if data, ok := entry.Data["data"]; ok && data != nil {
		if pretty, err := json.MarshalIndent(data, "", "  "); err == nil {
			b = append(b, pretty...)
			b = append(b, '\n')
		}
	}
	return b, nil
}

// FileSink appends entries to a log file. logrus serializes writes, so
// concurrent appenders never interleave within an entry.
type FileSink struct {
	logger *logrus.Logger
	file   *os.File
}

// NewFileSink opens (or creates) path for appending.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	logger := logrus.New()
	logger.SetOutput(f)
	logger.SetFormatter(formatter{})
	logger.SetLevel(logrus.InfoLevel)
	return &FileSink{logger: logger, file: f}, nil
}

// Append writes the entry. Write failures are dropped.
func (s *FileSink) Append(e Entry) {
	if e.Data != nil {
		s.logger.WithField("data", e.Data).Info(e.Message)
		return
	}
	s.logger.Info(e.Message)
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	return s.file.Close()
}

// Nop discards all entries.
type Nop struct{}

// Append implements Sink.
func (Nop) Append(Entry) {}
