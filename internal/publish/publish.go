// Package publish delivers committed sections to external collaborators.
//
// Sink contract:
// - Publish never fails the caller and must not block on network
// - errors are logged and stay inside the sink
// - Close flushes what it can and releases resources
package publish

import (
	"strings"

	"github.com/temoto/wxrelay/helpers"
	"github.com/temoto/wxrelay/log2"
	"github.com/temoto/wxrelay/wxproto"
)

type Sink interface {
	Publish(bit uint8, s wxproto.Section)
	Close() error
}

// Multi fans out to every sink in order.
type Multi []Sink

func (m Multi) Publish(bit uint8, s wxproto.Section) {
	for _, sink := range m {
		sink.Publish(bit, s)
	}
}

func (m Multi) Close() error {
	errs := make([]error, 0, len(m))
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return helpers.FoldErrors(errs)
}

type LogSink struct {
	Log *log2.Log
}

func NewLogSink(log *log2.Log) *LogSink { return &LogSink{Log: log} }

func (ls *LogSink) Publish(bit uint8, s wxproto.Section) {
	ms := s.Measurements()
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = m.String()
	}
	ls.Log.Infof("publish bit=%d %s %s", bit, s.Kind(), strings.Join(parts, " "))
}

func (ls *LogSink) Close() error { return nil }
