package wxproto

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
)

const (
	MaxCategories = 8
	MaxFrameSize  = 256
	HeaderSize    = 1

	// Dispatch byte identifying weather payload on ingest and serve connections.
	TypeWeather = byte(0x01)
)

// Mask is header byte, bit i set means category i is included.
type Mask byte

func Bit(i uint8) Mask { return Mask(1) << i }

func (m Mask) Has(i uint8) bool { return i < MaxCategories && m&Bit(i) != 0 }
func (m Mask) String() string   { return fmt.Sprintf("%02x", byte(m)) }

// Entry is one row of schema table: bit position -> kind -> fixed width.
type Entry struct {
	Bit   uint8
	Kind  Kind
	Width int
}

func (e Entry) String() string { return fmt.Sprintf("%d:%s/%d", e.Bit, e.Kind, e.Width) }

// DecodeSection either consumes exactly e.Width bytes or nothing.
func (e Entry) DecodeSection(b []byte) (Section, int, error) {
	if len(b) < e.Width {
		return nil, 0, errors.Annotatef(ErrShortRead, "section=%s got=%d expect=%d", e.Kind, len(b), e.Width)
	}
	return layouts[e.Kind].decode(b[:e.Width]), e.Width, nil
}

// AppendSection appends exactly e.Width bytes.
// Section of other kind is code error.
func (e Entry) AppendSection(dst []byte, s Section) []byte {
	var buf [MaxSectionWidth]byte
	if !layouts[e.Kind].encode(buf[:e.Width], s) {
		panic(fmt.Sprintf("code error AppendSection entry=%s section=%v", e, s))
	}
	return append(dst, buf[:e.Width]...)
}

// Schema is versioned mapping of bit positions to section layouts.
// Node and hub must use the same schema.
type Schema struct {
	Name      string
	entries   [MaxCategories]Entry
	supported Mask
}

// NewSchema assigns kinds to bits 0, 1, ... in order.
func NewSchema(name string, kinds ...Kind) *Schema {
	if len(kinds) > MaxCategories {
		panic(fmt.Sprintf("code error NewSchema name=%s kinds=%d > %d", name, len(kinds), MaxCategories))
	}
	s := &Schema{Name: name}
	for i, k := range kinds {
		if k == KindInvalid || int(k) >= len(layouts) {
			panic(fmt.Sprintf("code error NewSchema name=%s bit=%d kind=%s", name, i, k))
		}
		s.entries[i] = Entry{Bit: uint8(i), Kind: k, Width: layouts[k].width}
		s.supported |= Bit(uint8(i))
	}
	if size := s.FrameSize(s.supported); size > MaxFrameSize {
		panic(fmt.Sprintf("code error NewSchema name=%s frame size=%d > %d", name, size, MaxFrameSize))
	}
	return s
}

var (
	// Separate temperature, humidity and pressure sections.
	SchemaV1 = NewSchema("v1", KindTemperature, KindHumidity, KindPressure, KindPM, KindBattery)
	// Combined temperature-humidity-pressure section and CO2.
	SchemaV2 = NewSchema("v2", KindTHP, KindCO2, KindPM, KindBattery)

	DefaultSchema = SchemaV2
)

var schemas = []*Schema{SchemaV1, SchemaV2}

func LookupSchema(name string) (*Schema, error) {
	if name == "" {
		return DefaultSchema, nil
	}
	for _, s := range schemas {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, errors.Annotatef(ErrUnknownSchema, "name=%s", name)
}

func (s *Schema) Entry(bit uint8) (Entry, bool) {
	if bit >= MaxCategories || !s.supported.Has(bit) {
		return Entry{}, false
	}
	return s.entries[bit], true
}

func (s *Schema) Entries() []Entry {
	es := make([]Entry, 0, MaxCategories)
	for i := uint8(0); i < MaxCategories; i++ {
		if e, ok := s.Entry(i); ok {
			es = append(es, e)
		}
	}
	return es
}

func (s *Schema) BitOf(k Kind) (uint8, bool) {
	for _, e := range s.Entries() {
		if e.Kind == k {
			return e.Bit, true
		}
	}
	return 0, false
}

func (s *Schema) Supported() Mask { return s.supported }

// FrameSize returns on-wire length of frame with mask, unknown bits ignored.
func (s *Schema) FrameSize(m Mask) int {
	n := HeaderSize
	for i := uint8(0); i < MaxCategories; i++ {
		if m.Has(i) && s.supported.Has(i) {
			n += s.entries[i].Width
		}
	}
	return n
}

func (s *Schema) String() string {
	parts := make([]string, 0, MaxCategories)
	for _, e := range s.Entries() {
		parts = append(parts, e.String())
	}
	return fmt.Sprintf("%s(%s)", s.Name, strings.Join(parts, " "))
}
