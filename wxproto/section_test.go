package wxproto_test

import (
	"encoding/hex"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/wxrelay/helpers"
	"github.com/temoto/wxrelay/wxproto"
)

func TestSectionCodec(t *testing.T) {
	t.Parallel()
	cases := []struct {
		schema *wxproto.Schema
		bit    uint8
		hex    string
		s      wxproto.Section
	}{
		{wxproto.SchemaV2, 0, "6608c701149c9a00", wxproto.THP{Temperature: 2150, Humidity: 455, Pressure: 10132500}},
		{wxproto.SchemaV2, 0, "2efbffff3fb49600", wxproto.THP{Temperature: -1234, Humidity: 0xffff, Pressure: 9876543}},
		{wxproto.SchemaV2, 1, "6402", wxproto.CO2{PPM: 612}},
		{wxproto.SchemaV2, 2, "0c0007000300", wxproto.PM{PM10: 12, PM2_5: 7, PM0_1: 3}},
		{wxproto.SchemaV2, 3, "9c0100006affffff", wxproto.Battery{Voltage: 412, Milliamps: -150}},
		{wxproto.SchemaV1, 0, "ceff", wxproto.Temperature{Raw: -50}},
		{wxproto.SchemaV1, 1, "c701", wxproto.Humidity{Raw: 455}},
		{wxproto.SchemaV1, 2, "149c9a00", wxproto.Pressure{Raw: 10132500}},
		{wxproto.SchemaV1, 3, "0c0007000300", wxproto.PM{PM10: 12, PM2_5: 7, PM0_1: 3}},
		{wxproto.SchemaV1, 4, "9c0100006affffff", wxproto.Battery{Voltage: 412, Milliamps: -150}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.schema.Name+"/"+c.s.String(), func(t *testing.T) {
			e, ok := c.schema.Entry(c.bit)
			require.True(t, ok)
			assert.Equal(t, c.s.Kind(), e.Kind)

			b := e.AppendSection(nil, c.s)
			assert.Equal(t, c.hex, hex.EncodeToString(b))
			assert.Equal(t, e.Width, len(b))

			// trailing bytes belong to next section
			input := append(helpers.MustHex(c.hex), 0xee, 0xff)
			s, n, err := e.DecodeSection(input)
			require.NoError(t, err)
			assert.Equal(t, e.Width, n)
			assert.Equal(t, c.s, s)
		})
	}
}

func TestSectionShortRead(t *testing.T) {
	t.Parallel()
	for _, e := range wxproto.SchemaV2.Entries() {
		e := e
		t.Run(e.String(), func(t *testing.T) {
			for n := 0; n < e.Width; n++ {
				s, consumed, err := e.DecodeSection(make([]byte, n))
				require.Error(t, err)
				assert.Equal(t, wxproto.ErrShortRead, errors.Cause(err))
				assert.Nil(t, s)
				assert.Equal(t, 0, consumed)
			}
		})
	}
}

func TestAppendSectionWrongKind(t *testing.T) {
	t.Parallel()
	e, _ := wxproto.SchemaV2.Entry(1)
	assert.Panics(t, func() { e.AppendSection(nil, wxproto.PM{}) })
}

func TestHumiditySentinel(t *testing.T) {
	t.Parallel()
	s := wxproto.THP{Temperature: 2150, Humidity: wxproto.HumidityInvalid, Pressure: 10132500}
	assert.False(t, s.HumidityValid())
	_, ok := s.DewPoint()
	assert.False(t, ok)

	names := make([]string, 0)
	for _, m := range s.Measurements() {
		names = append(names, m.Name)
		assert.NotEqual(t, float64(0xffff)/10, m.Value)
	}
	assert.Equal(t, []string{"temperature", "pressure"}, names)
	assert.Equal(t, "thp(21.50C n/a 101325.00Pa)", s.String())

	assert.Nil(t, wxproto.Humidity{Raw: wxproto.HumidityInvalid}.Measurements())
}

func TestMeasurements(t *testing.T) {
	t.Parallel()
	s := wxproto.THP{Temperature: 2150, Humidity: 455, Pressure: 10132500}
	ms := s.Measurements()
	require.Len(t, ms, 4)
	assert.Equal(t, wxproto.Measurement{Name: "temperature", Unit: "°C", DeviceClass: "temperature", Value: 21.5}, ms[0])
	assert.Equal(t, wxproto.Measurement{Name: "humidity", Unit: "%", DeviceClass: "humidity", Value: 45.5}, ms[1])
	assert.Equal(t, wxproto.Measurement{Name: "pressure", Unit: "Pa", DeviceClass: "pressure", Value: 101325}, ms[2])
	assert.Equal(t, "dew_point", ms[3].Name)
	assert.InDelta(t, 9.225, ms[3].Value, 0.001)
	assert.InDelta(t, 70.7, s.Fahrenheit(), 0.001)

	bat := wxproto.Battery{Voltage: 412, Milliamps: -150}.Measurements()
	require.Len(t, bat, 2)
	assert.Equal(t, 4.12, bat[0].Value)
	assert.Equal(t, "V", bat[0].Unit)
	assert.Equal(t, float64(-150), bat[1].Value)

	pm := wxproto.PM{PM10: 12, PM2_5: 7, PM0_1: 3}.Measurements()
	require.Len(t, pm, 3)
	assert.Equal(t, "pm25", pm[1].Name)
	assert.Equal(t, float64(7), pm[1].Value)
}

func TestDewPointZeroHumidity(t *testing.T) {
	t.Parallel()
	_, ok := wxproto.THP{Temperature: 100, Humidity: 0}.DewPoint()
	assert.False(t, ok)
}
