package client

import (
	"encoding/hex"
	"math"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/wxrelay/wxproto"
)

var kindByName = map[string]wxproto.Kind{
	"thp":         wxproto.KindTHP,
	"temperature": wxproto.KindTemperature,
	"humidity":    wxproto.KindHumidity,
	"pressure":    wxproto.KindPressure,
	"co2":         wxproto.KindCO2,
	"pm":          wxproto.KindPM,
	"battery":     wxproto.KindBattery,
}

var kindArgs = map[wxproto.Kind]string{
	wxproto.KindTHP:         "°C,%RH|-,Pa",
	wxproto.KindTemperature: "°C",
	wxproto.KindHumidity:    "%RH|-",
	wxproto.KindPressure:    "Pa",
	wxproto.KindCO2:         "ppm",
	wxproto.KindPM:          "pm10,pm2.5,pm0.1",
	wxproto.KindBattery:     "V,mA",
}

// parseFrame accepts either @hex (header and sections) or kind=values words.
func parseFrame(schema *wxproto.Schema, words []string) (*wxproto.Frame, error) {
	if len(words) == 1 && strings.HasPrefix(words[0], "@") {
		b, err := hex.DecodeString(words[0][1:])
		if err != nil {
			return nil, errors.Annotatef(err, "word=%s", words[0])
		}
		return schema.UnmarshalFrame(b)
	}
	sections := make([]wxproto.Section, 0, len(words))
	for _, w := range words {
		s, err := parseSection(w)
		if err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return schema.NewFrame(sections...)
}

// kind=v1,v2,...
func parseSection(word string) (wxproto.Section, error) {
	parts := strings.SplitN(word, "=", 2)
	if len(parts) != 2 {
		return nil, errors.NotValidf("word=%s expected kind=values", word)
	}
	kind, ok := kindByName[parts[0]]
	if !ok {
		return nil, errors.NotValidf("word=%s kind", word)
	}
	vs := strings.Split(parts[1], ",")
	if len(vs) != strings.Count(kindArgs[kind], ",")+1 {
		return nil, errors.NotValidf("word=%s expected %s=%s", word, parts[0], kindArgs[kind])
	}

	p := valueParser{word: word}
	var s wxproto.Section
	switch kind {
	case wxproto.KindTHP:
		s = wxproto.THP{
			Temperature: int16(p.scaled(vs[0], 100, math.MinInt16, math.MaxInt16)),
			Humidity:    p.humidity(vs[1]),
			Pressure:    uint32(p.scaled(vs[2], 100, 0, math.MaxUint32)),
		}
	case wxproto.KindTemperature:
		s = wxproto.Temperature{Raw: int16(p.scaled(vs[0], 100, math.MinInt16, math.MaxInt16))}
	case wxproto.KindHumidity:
		s = wxproto.Humidity{Raw: p.humidity(vs[0])}
	case wxproto.KindPressure:
		s = wxproto.Pressure{Raw: uint32(p.scaled(vs[0], 100, 0, math.MaxUint32))}
	case wxproto.KindCO2:
		s = wxproto.CO2{PPM: uint16(p.scaled(vs[0], 1, 0, math.MaxUint16))}
	case wxproto.KindPM:
		s = wxproto.PM{
			PM10:  uint16(p.scaled(vs[0], 1, 0, math.MaxUint16)),
			PM2_5: uint16(p.scaled(vs[1], 1, 0, math.MaxUint16)),
			PM0_1: uint16(p.scaled(vs[2], 1, 0, math.MaxUint16)),
		}
	case wxproto.KindBattery:
		s = wxproto.Battery{
			Voltage:   uint32(p.scaled(vs[0], 100, 0, math.MaxUint32)),
			Milliamps: int32(p.scaled(vs[1], 1, math.MinInt32, math.MaxInt32)),
		}
	default:
		panic("code error parseSection kind=" + kind.String())
	}
	if p.err != nil {
		return nil, p.err
	}
	return s, nil
}

// valueParser keeps first error, so one switch branch may parse several values.
type valueParser struct {
	word string
	err  error
}

func (p *valueParser) scaled(s string, scale, min, max float64) int64 {
	if p.err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = errors.Annotatef(err, "word=%s", p.word)
		return 0
	}
	x := math.Round(f * scale)
	if x < min || x > max {
		p.err = errors.NotValidf("word=%s value=%s out of range", p.word, s)
		return 0
	}
	return int64(x)
}

func (p *valueParser) humidity(s string) uint16 {
	if s == "-" {
		return wxproto.HumidityInvalid
	}
	return uint16(p.scaled(s, 10, 0, float64(wxproto.HumidityInvalid-1)))
}

func parseMask(s string) (wxproto.Mask, error) {
	x, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, errors.Annotatef(err, "mask=%s", s)
	}
	return wxproto.Mask(x), nil
}

// dialAddr turns listen url into address to connect on same host.
func dialAddr(listen, def string) (string, error) {
	if listen == "" {
		listen = def
	}
	u, err := url.ParseRequestURI(listen)
	if err != nil {
		return "", errors.Annotatef(err, "listen=%s", listen)
	}
	if u.Scheme != "tcp" {
		return "", errors.NotSupportedf("listen=%s", listen)
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		return "", errors.Annotatef(err, "listen=%s", listen)
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return "tcp://" + net.JoinHostPort(host, port), nil
}
