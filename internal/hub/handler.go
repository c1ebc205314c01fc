package hub

import (
	"io"

	"github.com/juju/errors"
	"github.com/temoto/wxrelay/helpers"
	"github.com/temoto/wxrelay/internal/cache"
	"github.com/temoto/wxrelay/log2"
	"github.com/temoto/wxrelay/wxproto"
)

// Publisher is notified after each committed section.
// It has no way to fail the ingest: sink errors stay inside the sink.
type Publisher interface {
	Publish(bit uint8, s wxproto.Section)
}

// Handler services one connection per call.
// Publisher and Stat are optional.
type Handler struct {
	Log       *log2.Log
	Schema    *wxproto.Schema
	Cache     *cache.Cache
	Publisher Publisher
	Stat      *Stat
}

func (h *Handler) stat() *Stat {
	if h.Stat == nil {
		return &discardStat
	}
	return h.Stat
}

// Ingest reads [type][frame] and commits sections to cache as they are decoded.
// Unsupported message type is dropped without reading further.
// Nothing is ever written back to the node.
func (h *Handler) Ingest(r io.Reader) error {
	st := h.stat()
	typ, err := readType(r)
	if err != nil {
		st.IngestAborted.Add(1)
		return errors.Annotate(err, "ingest")
	}
	if typ != wxproto.TypeWeather {
		st.IngestDropped.Add(1)
		return errors.Annotatef(ErrUnsupportedType, "ingest type=%02x", typ)
	}

	commit := func(bit uint8, s wxproto.Section) {
		h.Cache.Record(bit, s)
		st.Sections.Add(1)
		h.Log.Debugf("ingest commit bit=%d %s", bit, s)
		if h.Publisher != nil {
			h.Publisher.Publish(bit, s)
		}
	}
	header, done, err := h.Schema.ReadFrame(r, commit)
	if err != nil {
		st.IngestAborted.Add(1)
		return errors.Annotatef(err, "ingest header=%s committed=%s", header, done)
	}
	st.IngestOK.Add(1)
	return nil
}

// Serve reads [type][mask] and writes frame of cached sections in mask AND available.
// Short or unsupported request gets no response at all.
func (h *Handler) Serve(rw io.ReadWriter) error {
	st := h.stat()
	typ, err := readType(rw)
	if err != nil {
		st.ServeAborted.Add(1)
		return errors.Annotate(err, "serve")
	}
	if typ != wxproto.TypeWeather {
		st.ServeAborted.Add(1)
		return errors.Annotatef(ErrUnsupportedType, "serve type=%02x", typ)
	}
	var reqbuf [1]byte
	if n, rerr := io.ReadFull(rw, reqbuf[:]); n != 1 {
		st.ServeAborted.Add(1)
		return errors.Annotatef(wxproto.ErrMissingHeader, "serve request err=%v", rerr)
	}
	req := wxproto.Mask(reqbuf[0])

	out, values := h.Cache.Snapshot(req)
	b := make([]byte, 0, wxproto.MaxFrameSize)
	b, err = h.Schema.AppendFrame(b, out, &values)
	if err != nil {
		st.ServeAborted.Add(1)
		return errors.Annotatef(err, "serve encode req=%s out=%s", req, out)
	}
	if err = helpers.WriteAll(rw, b); err != nil {
		st.ServeAborted.Add(1)
		return errors.Annotatef(err, "serve write req=%s out=%s", req, out)
	}
	h.Log.Debugf("serve req=%s out=%s len=%d", req, out, len(b))
	st.ServeOK.Add(1)
	return nil
}

func readType(r io.Reader) (byte, error) {
	var buf [1]byte
	if n, err := io.ReadFull(r, buf[:]); n != 1 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return 0, errors.Annotatef(ErrMissingType, "read err=%v", err)
	}
	return buf[0], nil
}
