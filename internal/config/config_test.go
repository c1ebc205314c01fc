package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/temoto/wxrelay/internal/config"
	"github.com/temoto/wxrelay/log2"
	"github.com/temoto/wxrelay/wxproto"
)

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		input     string
		check     func(testing.TB, *config.Config)
		expectErr string
	}
	cases := []Case{
		{"empty", "", func(t testing.TB, c *config.Config) {
			s, err := c.Schema()
			assert.NoError(t, err)
			assert.Equal(t, wxproto.SchemaV2, s)
			assert.Equal(t, time.Duration(0), c.ReadTimeout())
			assert.Equal(t, config.DefaultMqttQueuePath, c.MqttQueuePath())
			assert.False(t, c.Mqtt.Enable)
		}, ""},

		{"hub", `
hub {
	ingest_listen = "tcp://127.0.0.1:17777"
	serve_listen = "tcp://127.0.0.1:17788"
	schema = "v1"
	read_timeout_ms = 500
	workers = 4
	log_debug = true
}
publish { log = true }
metrics { listen = ":9100" }`,
			func(t testing.TB, c *config.Config) {
				assert.Equal(t, "tcp://127.0.0.1:17777", c.Hub.IngestListen)
				assert.Equal(t, "tcp://127.0.0.1:17788", c.Hub.ServeListen)
				s, err := c.Schema()
				assert.NoError(t, err)
				assert.Equal(t, wxproto.SchemaV1, s)
				assert.Equal(t, 500*time.Millisecond, c.ReadTimeout())
				assert.Equal(t, 4, c.Hub.Workers)
				assert.True(t, c.Hub.LogDebug)
				assert.True(t, c.Publish.Log)
				assert.Equal(t, ":9100", c.Metrics.Listen)
			}, ""},

		{"mqtt", `
mqtt {
	enable = true
	broker = "tcp://broker:1883"
	device_id = "wx1"
	device_name = "Backyard"
	queue_path = "/tmp/q"
	keepalive_sec = 30
}`,
			func(t testing.TB, c *config.Config) {
				assert.True(t, c.Mqtt.Enable)
				assert.Equal(t, "tcp://broker:1883", c.Mqtt.Broker)
				assert.Equal(t, "wx1", c.Mqtt.DeviceID)
				assert.Equal(t, "Backyard", c.Mqtt.DeviceName)
				assert.Equal(t, "/tmp/q", c.MqttQueuePath())
				assert.Equal(t, 30, c.Mqtt.KeepaliveSec)
			}, ""},

		{"include-normalize", `
hub { workers = 2 }
include "./empty" {}`,
			func(t testing.TB, c *config.Config) {
				assert.Equal(t, 2, c.Hub.Workers)
			}, ""},

		{"include-optional", `
include "workers-3" {}
include "non-exist" { optional = true }`,
			func(t testing.TB, c *config.Config) {
				assert.Equal(t, 3, c.Hub.Workers)
			}, ""},

		{"include-overwrites", `
hub {
	workers = 1
	schema = "v1"
}
include "workers-3" {}`,
			func(t testing.TB, c *config.Config) {
				assert.Equal(t, 3, c.Hub.Workers)
				assert.Equal(t, "v1", c.Hub.Schema)
			}, ""},

		{"include-order", `
hub { workers = 1 }
include "workers-3" {}
include "workers-5-debug" {}`,
			func(t testing.TB, c *config.Config) {
				// later include overlays earlier, keys it does not set stay
				assert.Equal(t, 5, c.Hub.Workers)
				assert.True(t, c.Hub.LogDebug)
			}, ""},

		{"error-syntax", `hello`, nil, "key 'hello' expected start of object"},
		{"error-include-loop", `include "include-loop" {}`, nil, "config include loop: from=include-loop include=include-loop"},
		{"error-include-missing", `include "non-exist" {}`, nil, "config required name=non-exist"},
		{"error-schema", `hub { schema = "v9" }`, nil, "hub.schema=v9"},
		{"error-workers", `hub { workers = -1 }`, nil, "hub.workers=-1 not valid"},
		{"error-mqtt", `mqtt { enable = true }`, nil, "mqtt.broker empty not valid\nmqtt.device_id empty not valid"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			log := log2.NewTest(t, log2.LDebug)
			fs := config.NewMockFullReader(map[string]string{
				"test-inline":     c.input,
				"empty":           "",
				"workers-3":       "hub{workers=3}",
				"workers-5-debug": "hub{workers=5\nlog_debug=true}",
				"include-loop":    `include "include-loop" {}`,
			})
			cfg, err := config.ReadConfig(log, fs, "test-inline")
			if c.expectErr == "" {
				if err != nil {
					t.Fatalf("error expected=nil actual='%v'", errors.ErrorStack(err))
				}
				if c.check != nil {
					c.check(t, cfg)
				}
			} else {
				if err == nil || !strings.Contains(err.Error(), c.expectErr) {
					t.Fatalf("error expected='%s' actual='%v'", c.expectErr, err)
				}
			}
		})
	}
}

func TestFunctionalBundled(t *testing.T) {
	// not Parallel
	t.Logf("this test needs OS open|read|stat access to file `../../wxhub.hcl`")

	log := log2.NewTest(t, log2.LDebug)
	c := config.MustReadConfig(log, config.NewOsFullReader(), "../../wxhub.hcl")
	assert.Equal(t, "tcp://:7777", c.Hub.IngestListen)
}

func TestReadConfigErrorHidesContent(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LDebug)
	fs := config.NewMockFullReader(map[string]string{
		"secret": "mqtt { password = \"hunter2\" }\nhello",
	})
	_, err := config.ReadConfig(log, fs, "secret")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config unmarshal source=secret")
	assert.NotContains(t, err.Error(), "hunter2")
}
