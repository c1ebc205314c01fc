package wxproto

import (
	"bytes"
	"io"
	"net"
	"strings"

	"github.com/juju/errors"
)

// Values holds decoded section per bit position.
type Values [MaxCategories]Section

type Frame struct {
	Mask   Mask
	Values Values
}

// CommitFunc receives each section as soon as it is decoded.
type CommitFunc func(bit uint8, s Section)

// NewFrame places sections at bits assigned by schema.
func (s *Schema) NewFrame(sections ...Section) (*Frame, error) {
	f := &Frame{}
	for _, sec := range sections {
		if sec == nil {
			return nil, errors.Annotate(ErrMissingValue, "NewFrame")
		}
		bit, ok := s.BitOf(sec.Kind())
		if !ok {
			return nil, errors.Annotatef(ErrUnknownCategory, "schema=%s kind=%s", s.Name, sec.Kind())
		}
		f.Mask |= Bit(bit)
		f.Values[bit] = sec
	}
	return f, nil
}

func (f *Frame) String() string {
	parts := make([]string, 0, 1+MaxCategories)
	parts = append(parts, "mask="+f.Mask.String())
	for i := uint8(0); i < MaxCategories; i++ {
		if f.Mask.Has(i) && f.Values[i] != nil {
			parts = append(parts, f.Values[i].String())
		}
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// ReadFrame reads header then sections in canonical bit order.
// commit is called right after each section is decoded, before the next one is read.
// On error, remaining bits are skipped and already committed sections stay
// committed: a frame is applied prefix-wise, not atomically. done reports committed bits.
func (s *Schema) ReadFrame(r io.Reader, commit CommitFunc) (header, done Mask, err error) {
	var buf [MaxSectionWidth]byte
	if n, rerr := io.ReadFull(r, buf[:HeaderSize]); n != HeaderSize {
		return 0, 0, errors.Annotatef(ErrMissingHeader, "read=%s", readErrString(rerr))
	}
	header = Mask(buf[0])

	for i := uint8(0); i < MaxCategories; i++ {
		if !header.Has(i) {
			continue
		}
		e, ok := s.Entry(i)
		if !ok {
			return header, done, errors.Annotatef(ErrUnknownCategory, "schema=%s bit=%d", s.Name, i)
		}
		n, rerr := io.ReadFull(r, buf[:e.Width])
		sec, _, derr := e.DecodeSection(buf[:n])
		if derr != nil {
			return header, done, errors.Annotatef(derr, "read=%s", readErrString(rerr))
		}
		if commit != nil {
			commit(i, sec)
		}
		done |= Bit(i)
	}
	return header, done, nil
}

// AppendFrame appends header out followed by sections of v for each set bit.
func (s *Schema) AppendFrame(dst []byte, out Mask, v *Values) ([]byte, error) {
	if size := s.FrameSize(out); size > MaxFrameSize {
		return dst, errors.Annotatef(ErrFrameLenOverflow, "size=%d", size)
	}
	dst = append(dst, byte(out))
	for i := uint8(0); i < MaxCategories; i++ {
		if !out.Has(i) {
			continue
		}
		e, ok := s.Entry(i)
		if !ok {
			return dst, errors.Annotatef(ErrUnknownCategory, "schema=%s bit=%d", s.Name, i)
		}
		sec := v[i]
		if sec == nil {
			return dst, errors.Annotatef(ErrMissingValue, "bit=%d kind=%s", i, e.Kind)
		}
		if sec.Kind() != e.Kind {
			return dst, errors.Annotatef(ErrUnknownCategory, "bit=%d kind=%s expect=%s", i, sec.Kind(), e.Kind)
		}
		dst = e.AppendSection(dst, sec)
	}
	return dst, nil
}

func (s *Schema) MarshalFrame(f *Frame) ([]byte, error) {
	return s.AppendFrame(make([]byte, 0, s.FrameSize(f.Mask)), f.Mask, &f.Values)
}

// UnmarshalFrame decodes exactly one frame from b.
// On error, returned frame contains sections decoded before the failure.
func (s *Schema) UnmarshalFrame(b []byte) (*Frame, error) {
	f := &Frame{}
	r := bytes.NewReader(b)
	_, done, err := s.ReadFrame(r, func(bit uint8, sec Section) { f.Values[bit] = sec })
	f.Mask = done
	if err != nil {
		return f, err
	}
	if r.Len() != 0 {
		return f, errors.Errorf("frame trailing bytes=%d", r.Len())
	}
	return f, nil
}

func readErrString(err error) string {
	switch e := err.(type) {
	case nil:
		return "ok"
	case net.Error:
		if e.Timeout() {
			return "timeout"
		}
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return "eof"
	}
	return err.Error()
}
