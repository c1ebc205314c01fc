package wxproto

import (
	"encoding/binary"
	"fmt"
	"math"
)

type Kind uint8

const (
	KindInvalid Kind = iota
	KindTHP
	KindTemperature
	KindHumidity
	KindPressure
	KindCO2
	KindPM
	KindBattery
)

var kindNames = [...]string{
	KindInvalid:     "invalid",
	KindTHP:         "thp",
	KindTemperature: "temperature",
	KindHumidity:    "humidity",
	KindPressure:    "pressure",
	KindCO2:         "co2",
	KindPM:          "pm",
	KindBattery:     "battery",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// HumidityInvalid is sent by nodes without humidity sensor.
const HumidityInvalid = uint16(0xffff)

// Section is decoded value of one category.
// Implementations are plain comparable structs.
type Section interface {
	Kind() Kind
	Measurements() []Measurement
	String() string
}

// Measurement is unit-converted value for publishing.
type Measurement struct {
	Name        string
	Unit        string
	DeviceClass string // Home Assistant sensor device class
	Value       float64
}

func (m Measurement) String() string {
	return fmt.Sprintf("%s=%g%s", m.Name, m.Value, m.Unit)
}

// Temperature in hundredths of °C, humidity in tenths of %RH, pressure in hundredths of Pa.
type THP struct {
	Temperature int16
	Humidity    uint16
	Pressure    uint32
}

func (THP) Kind() Kind { return KindTHP }

func (s THP) Celsius() float64          { return float64(s.Temperature) / 100 }
func (s THP) Fahrenheit() float64       { return s.Celsius()*9/5 + 32 }
func (s THP) Pascal() float64           { return float64(s.Pressure) / 100 }
func (s THP) HumidityValid() bool       { return s.Humidity != HumidityInvalid }
func (s THP) RelHumidity() float64      { return float64(s.Humidity) / 10 }
func (s THP) DewPoint() (float64, bool) { return dewPoint(s.Celsius(), s.Humidity) }

func (s THP) Measurements() []Measurement {
	ms := make([]Measurement, 0, 4)
	ms = append(ms, mTemperature(s.Celsius()))
	if s.HumidityValid() {
		ms = append(ms, mHumidity(s.RelHumidity()))
	}
	ms = append(ms, mPressure(s.Pascal()))
	if dp, ok := s.DewPoint(); ok {
		ms = append(ms, Measurement{Name: "dew_point", Unit: "°C", DeviceClass: "temperature", Value: dp})
	}
	return ms
}

func (s THP) String() string {
	h := "n/a"
	if s.HumidityValid() {
		h = fmt.Sprintf("%.1f%%", s.RelHumidity())
	}
	return fmt.Sprintf("thp(%.2fC %s %.2fPa)", s.Celsius(), h, s.Pascal())
}

// Temperature in hundredths of °C.
type Temperature struct{ Raw int16 }

func (Temperature) Kind() Kind         { return KindTemperature }
func (s Temperature) Celsius() float64 { return float64(s.Raw) / 100 }
func (s Temperature) Measurements() []Measurement {
	return []Measurement{mTemperature(s.Celsius())}
}
func (s Temperature) String() string { return fmt.Sprintf("temperature(%.2fC)", s.Celsius()) }

// Humidity in tenths of %RH.
type Humidity struct{ Raw uint16 }

func (Humidity) Kind() Kind             { return KindHumidity }
func (s Humidity) Valid() bool          { return s.Raw != HumidityInvalid }
func (s Humidity) RelHumidity() float64 { return float64(s.Raw) / 10 }
func (s Humidity) Measurements() []Measurement {
	if !s.Valid() {
		return nil
	}
	return []Measurement{mHumidity(s.RelHumidity())}
}
func (s Humidity) String() string {
	if !s.Valid() {
		return "humidity(n/a)"
	}
	return fmt.Sprintf("humidity(%.1f%%)", s.RelHumidity())
}

// Pressure in hundredths of Pa.
type Pressure struct{ Raw uint32 }

func (Pressure) Kind() Kind        { return KindPressure }
func (s Pressure) Pascal() float64 { return float64(s.Raw) / 100 }
func (s Pressure) Measurements() []Measurement {
	return []Measurement{mPressure(s.Pascal())}
}
func (s Pressure) String() string { return fmt.Sprintf("pressure(%.2fPa)", s.Pascal()) }

type CO2 struct{ PPM uint16 }

func (CO2) Kind() Kind { return KindCO2 }
func (s CO2) Measurements() []Measurement {
	return []Measurement{{Name: "co2", Unit: "ppm", DeviceClass: "carbon_dioxide", Value: float64(s.PPM)}}
}
func (s CO2) String() string { return fmt.Sprintf("co2(%dppm)", s.PPM) }

// Particulate matter concentrations in µg/m³.
type PM struct {
	PM10  uint16
	PM2_5 uint16
	PM0_1 uint16
}

func (PM) Kind() Kind { return KindPM }
func (s PM) Measurements() []Measurement {
	const unit = "µg/m³"
	return []Measurement{
		{Name: "pm10", Unit: unit, DeviceClass: "pm10", Value: float64(s.PM10)},
		{Name: "pm25", Unit: unit, DeviceClass: "pm25", Value: float64(s.PM2_5)},
		{Name: "pm1", Unit: unit, DeviceClass: "pm1", Value: float64(s.PM0_1)},
	}
}
func (s PM) String() string { return fmt.Sprintf("pm(10=%d 2.5=%d 0.1=%d)", s.PM10, s.PM2_5, s.PM0_1) }

// Voltage in hundredths of V.
type Battery struct {
	Voltage   uint32
	Milliamps int32
}

func (Battery) Kind() Kind       { return KindBattery }
func (s Battery) Volts() float64 { return float64(s.Voltage) / 100 }
func (s Battery) Measurements() []Measurement {
	return []Measurement{
		{Name: "voltage", Unit: "V", DeviceClass: "voltage", Value: s.Volts()},
		{Name: "current", Unit: "mA", DeviceClass: "current", Value: float64(s.Milliamps)},
	}
}
func (s Battery) String() string { return fmt.Sprintf("battery(%.2fV %dmA)", s.Volts(), s.Milliamps) }

func mTemperature(c float64) Measurement {
	return Measurement{Name: "temperature", Unit: "°C", DeviceClass: "temperature", Value: c}
}
func mHumidity(rh float64) Measurement {
	return Measurement{Name: "humidity", Unit: "%", DeviceClass: "humidity", Value: rh}
}
func mPressure(pa float64) Measurement {
	return Measurement{Name: "pressure", Unit: "Pa", DeviceClass: "pressure", Value: pa}
}

// Magnus formula, Sonntag 1990 constants.
func dewPoint(celsius float64, rawHumidity uint16) (float64, bool) {
	if rawHumidity == HumidityInvalid || rawHumidity == 0 {
		return 0, false
	}
	const a, b = 17.62, 243.12
	rh := float64(rawHumidity) / 10
	gamma := math.Log(rh/100) + a*celsius/(b+celsius)
	return b * gamma / (a - gamma), true
}

// layout binds Kind to fixed width little endian encoding.
type layout struct {
	width  int
	decode func(b []byte) Section
	encode func(b []byte, s Section) bool
}

var le = binary.LittleEndian

var layouts = [...]layout{
	KindTHP: {8,
		func(b []byte) Section {
			return THP{Temperature: int16(le.Uint16(b[0:])), Humidity: le.Uint16(b[2:]), Pressure: le.Uint32(b[4:])}
		},
		func(b []byte, s Section) bool {
			x, ok := s.(THP)
			if ok {
				le.PutUint16(b[0:], uint16(x.Temperature))
				le.PutUint16(b[2:], x.Humidity)
				le.PutUint32(b[4:], x.Pressure)
			}
			return ok
		}},
	KindTemperature: {2,
		func(b []byte) Section { return Temperature{Raw: int16(le.Uint16(b))} },
		func(b []byte, s Section) bool {
			x, ok := s.(Temperature)
			if ok {
				le.PutUint16(b, uint16(x.Raw))
			}
			return ok
		}},
	KindHumidity: {2,
		func(b []byte) Section { return Humidity{Raw: le.Uint16(b)} },
		func(b []byte, s Section) bool {
			x, ok := s.(Humidity)
			if ok {
				le.PutUint16(b, x.Raw)
			}
			return ok
		}},
	KindPressure: {4,
		func(b []byte) Section { return Pressure{Raw: le.Uint32(b)} },
		func(b []byte, s Section) bool {
			x, ok := s.(Pressure)
			if ok {
				le.PutUint32(b, x.Raw)
			}
			return ok
		}},
	KindCO2: {2,
		func(b []byte) Section { return CO2{PPM: le.Uint16(b)} },
		func(b []byte, s Section) bool {
			x, ok := s.(CO2)
			if ok {
				le.PutUint16(b, x.PPM)
			}
			return ok
		}},
	KindPM: {6,
		func(b []byte) Section {
			return PM{PM10: le.Uint16(b[0:]), PM2_5: le.Uint16(b[2:]), PM0_1: le.Uint16(b[4:])}
		},
		func(b []byte, s Section) bool {
			x, ok := s.(PM)
			if ok {
				le.PutUint16(b[0:], x.PM10)
				le.PutUint16(b[2:], x.PM2_5)
				le.PutUint16(b[4:], x.PM0_1)
			}
			return ok
		}},
	KindBattery: {8,
		func(b []byte) Section {
			return Battery{Voltage: le.Uint32(b[0:]), Milliamps: int32(le.Uint32(b[4:]))}
		},
		func(b []byte, s Section) bool {
			x, ok := s.(Battery)
			if ok {
				le.PutUint32(b[0:], x.Voltage)
				le.PutUint32(b[4:], uint32(x.Milliamps))
			}
			return ok
		}},
}

// MaxSectionWidth is the largest fixed width of any known section.
const MaxSectionWidth = 8
