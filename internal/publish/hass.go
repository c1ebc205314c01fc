package publish

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/temoto/wxrelay/wxproto"
)

// Home Assistant MQTT discovery.
// https://www.home-assistant.io/integrations/mqtt/#mqtt-discovery

const (
	DefaultDiscoveryPrefix = "homeassistant"
	DefaultTopicPrefix     = "wxrelay"

	payloadOnline  = "online"
	payloadOffline = "offline"
)

func sensorID(deviceID, name string) string { return deviceID + "_" + name }

func TopicConfig(discoveryPrefix, deviceID, name string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", discoveryPrefix, deviceID, sensorID(deviceID, name))
}

func TopicState(prefix, deviceID, name string) string {
	return fmt.Sprintf("%s/%s/%s/stat_t", prefix, deviceID, sensorID(deviceID, name))
}

func TopicAvailability(prefix, deviceID string) string {
	return fmt.Sprintf("%s/%s/availability", prefix, deviceID)
}

type discoveryDevice struct {
	IDs  string `json:"ids"`
	Name string `json:"name"`
}

type discoveryConfig struct {
	UniqueID          string          `json:"uniq_id"`
	Name              string          `json:"name"`
	DeviceClass       string          `json:"dev_cla,omitempty"`
	Unit              string          `json:"unit_of_meas,omitempty"`
	StateTopic        string          `json:"stat_t"`
	AvailabilityTopic string          `json:"avty_t"`
	Device            discoveryDevice `json:"dev"`
}

func (s *MqttSink) configMessage(m *wxproto.Measurement) (message, error) {
	id := s.opt.DeviceID
	cfg := discoveryConfig{
		UniqueID:          sensorID(id, m.Name),
		Name:              m.Name,
		DeviceClass:       m.DeviceClass,
		Unit:              m.Unit,
		StateTopic:        TopicState(s.opt.TopicPrefix, id, m.Name),
		AvailabilityTopic: TopicAvailability(s.opt.TopicPrefix, id),
		Device:            discoveryDevice{IDs: id, Name: s.opt.DeviceName},
	}
	b, err := json.Marshal(&cfg)
	if err != nil {
		return message{}, err
	}
	return message{Topic: TopicConfig(s.opt.DiscoveryPrefix, id, m.Name), Payload: b, Retain: true}, nil
}

func (s *MqttSink) stateMessage(m *wxproto.Measurement) message {
	return message{
		Topic:   TopicState(s.opt.TopicPrefix, s.opt.DeviceID, m.Name),
		Payload: []byte(formatValue(m.Value)),
	}
}

// integers without decimals, otherwise 2 digits after point
func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
