package publish_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/temoto/wxrelay/internal/publish"
	"github.com/temoto/wxrelay/log2"
	"github.com/temoto/wxrelay/wxproto"
)

type countSink struct {
	n        int
	closeErr error
}

func (cs *countSink) Publish(uint8, wxproto.Section) { cs.n++ }
func (cs *countSink) Close() error                   { return cs.closeErr }

func TestMulti(t *testing.T) {
	t.Parallel()
	a, b := &countSink{}, &countSink{closeErr: fmt.Errorf("b failed")}
	m := publish.Multi{a, b}
	m.Publish(1, wxproto.CO2{PPM: 612})
	m.Publish(1, wxproto.CO2{PPM: 613})
	assert.Equal(t, 2, a.n)
	assert.Equal(t, 2, b.n)
	assert.EqualError(t, m.Close(), "b failed")
	assert.NoError(t, publish.Multi{}.Close())
}

func TestLogSink(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := log2.NewWriter(&buf, log2.LInfo)
	log.SetFlags(0)
	sink := publish.NewLogSink(log)
	sink.Publish(1, wxproto.CO2{PPM: 612})
	sink.Publish(0, wxproto.THP{Temperature: 2150, Humidity: wxproto.HumidityInvalid, Pressure: 10132500})
	assert.NoError(t, sink.Close())
	assert.Equal(t, "publish bit=1 co2 co2=612ppm\npublish bit=0 thp temperature=21.5°C pressure=101325Pa\n", buf.String())
}
