package publish

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueItem(t *testing.T) {
	t.Parallel()
	cases := []queueItem{
		{qState, message{Topic: "wxrelay/wx1/wx1_co2/stat_t", Payload: []byte("612")}},
		{qConfig, message{Topic: "homeassistant/sensor/wx1/wx1_co2/config", Payload: []byte(`{"uniq_id":"wx1_co2"}`), Retain: true}},
		{qState, message{Topic: "t", Payload: []byte{}}},
	}
	for _, c := range cases {
		b, err := c.MarshalBinary()
		require.NoError(t, err)
		var got queueItem
		require.NoError(t, got.UnmarshalBinary(b))
		assert.Equal(t, c, got)
	}
}

func TestQueueItemEmptyPayload(t *testing.T) {
	t.Parallel()
	for _, payload := range [][]byte{nil, {}} {
		qi := queueItem{qState, message{Topic: "wxrelay/wx1/wx1_co2/stat_t", Payload: payload}}
		b, err := qi.MarshalBinary()
		require.NoError(t, err)
		var got queueItem
		require.NoError(t, got.UnmarshalBinary(b))
		assert.NotNil(t, got.Payload)
		assert.Len(t, got.Payload, 0)
		assert.Equal(t, qi.Topic, got.Topic)
	}
}

func TestQueueItemInvalid(t *testing.T) {
	t.Parallel()
	var qi queueItem
	err := qi.UnmarshalBinary(nil)
	assert.True(t, errors.IsNotValid(err), err)
	err = qi.UnmarshalBinary([]byte{0x07, 0x00})
	assert.True(t, errors.IsNotValid(err), err)
	err = qi.UnmarshalBinary([]byte{qState, 0x05, 'a'})
	assert.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	t.Parallel()
	cases := []struct {
		v      float64
		expect string
	}{
		{612, "612"},
		{0, "0"},
		{-3, "-3"},
		{21.5, "21.50"},
		{1013.25, "1013.25"},
		{-12.34, "-12.34"},
	}
	for _, c := range cases {
		assert.Equal(t, c.expect, formatValue(c.v), "v=%v", c.v)
	}
}

func TestTopics(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "homeassistant/sensor/wx1/wx1_temperature/config", TopicConfig("homeassistant", "wx1", "temperature"))
	assert.Equal(t, "mydevs/wx1/wx1_temperature/stat_t", TopicState("mydevs", "wx1", "temperature"))
	assert.Equal(t, "mydevs/wx1/availability", TopicAvailability("mydevs", "wx1"))
}
