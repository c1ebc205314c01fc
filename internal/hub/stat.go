package hub

// Values are read and modified atomically, but not consistently.

import (
	"expvar"
	"fmt"
)

type Stat struct {
	IngestConn    expvar.Int
	ServeConn     expvar.Int
	IngestOK      expvar.Int
	IngestAborted expvar.Int
	IngestDropped expvar.Int
	Sections      expvar.Int
	ServeOK       expvar.Int
	ServeAborted  expvar.Int
	RecvBytes     expvar.Int
	SendBytes     expvar.Int
}

// Handler without Stat counts here, nobody reads it.
var discardStat Stat

func (s *Stat) String() string {
	return fmt.Sprintf(`{"conn":{"ingest":%d,"serve":%d},"ingest":{"ok":%d,"aborted":%d,"dropped":%d,"sections":%d},"serve":{"ok":%d,"aborted":%d},"bytes":{"recv":%d,"send":%d}}`,
		s.IngestConn.Value(), s.ServeConn.Value(),
		s.IngestOK.Value(), s.IngestAborted.Value(), s.IngestDropped.Value(), s.Sections.Value(),
		s.ServeOK.Value(), s.ServeAborted.Value(),
		s.RecvBytes.Value(), s.SendBytes.Value())
}
