// Package config reads hub configuration from HCL files with includes.
package config

import (
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/wxrelay/helpers"
	"github.com/temoto/wxrelay/log2"
	"github.com/temoto/wxrelay/wxproto"
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []Source `hcl:"include"`

	Hub     HubConfig     `hcl:"hub"`
	Publish PublishConfig `hcl:"publish"`
	Mqtt    MqttConfig    `hcl:"mqtt"`
	Metrics struct {
		Listen string `hcl:"listen"`
	} `hcl:"metrics"`
}

type HubConfig struct {
	IngestListen  string `hcl:"ingest_listen"`
	ServeListen   string `hcl:"serve_listen"`
	Schema        string `hcl:"schema"`
	ReadTimeoutMs int    `hcl:"read_timeout_ms"`
	Workers       int    `hcl:"workers"`
	LogDebug      bool   `hcl:"log_debug"`
}

type PublishConfig struct {
	Log bool `hcl:"log"`
}

type MqttConfig struct { //nolint:maligned
	Enable            bool   `hcl:"enable"`
	Broker            string `hcl:"broker"`
	ClientID          string `hcl:"client_id"`
	Username          string `hcl:"username"`
	Password          string `hcl:"password"` // secret
	DeviceID          string `hcl:"device_id"`
	DeviceName        string `hcl:"device_name"`
	TopicPrefix       string `hcl:"topic_prefix"`
	DiscoveryPrefix   string `hcl:"discovery_prefix"`
	QueuePath         string `hcl:"queue_path"`
	KeepaliveSec      int    `hcl:"keepalive_sec"`
	NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
	LogDebug          bool   `hcl:"log_debug"`
}

type Source struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

const DefaultMqttQueuePath = "/var/lib/wxrelay/mqtt-queue"

func (c *Config) Schema() (*wxproto.Schema, error) { return wxproto.LookupSchema(c.Hub.Schema) }

func (c *Config) ReadTimeout() time.Duration {
	return helpers.IntMillisecondDefault(c.Hub.ReadTimeoutMs, 0)
}

func (c *Config) MqttQueuePath() string {
	if c.Mqtt.QueuePath == "" {
		return DefaultMqttQueuePath
	}
	return c.Mqtt.QueuePath
}

// Validate reports all problems at once.
func (c *Config) Validate() error {
	errs := make([]error, 0)
	if _, err := c.Schema(); err != nil {
		errs = append(errs, errors.Annotatef(err, "hub.schema=%s", c.Hub.Schema))
	}
	if c.Hub.Workers < 0 {
		errs = append(errs, errors.NotValidf("hub.workers=%d", c.Hub.Workers))
	}
	if c.Hub.ReadTimeoutMs < 0 {
		errs = append(errs, errors.NotValidf("hub.read_timeout_ms=%d", c.Hub.ReadTimeoutMs))
	}
	if c.Mqtt.Enable {
		if c.Mqtt.Broker == "" {
			errs = append(errs, errors.NotValidf("mqtt.broker empty"))
		}
		if c.Mqtt.DeviceID == "" {
			errs = append(errs, errors.NotValidf("mqtt.device_id empty"))
		}
	}
	if c.Mqtt.KeepaliveSec < 0 || c.Mqtt.NetworkTimeoutSec < 0 {
		errs = append(errs, errors.NotValidf("mqtt negative keepalive_sec or network_timeout_sec"))
	}
	return helpers.FoldErrors(errs)
}

// read merges one source into c, then its includes depth first.
// hcl.Unmarshal only sets keys present in the source, so each file overlays
// what was read before it and an include overrides the file including it.
func (c *Config) read(log *log2.Log, fs FullReader, source Source, errs *[]error) {
	path := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[path]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[path] = struct{}{}

	b, err := readSource(log, fs, source, path)
	if err != nil {
		*errs = append(*errs, err)
		return
	}
	if b == nil {
		return
	}
	// file content is not logged, it may contain mqtt.password
	if err = hcl.Unmarshal(b, c); err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config unmarshal source=%s", source.Name))
		return
	}

	includes := c.XXX_Include
	c.XXX_Include = nil
	for _, include := range includes {
		if _, ok := c.includeSeen[fs.Normalize(include.Name)]; ok {
			*errs = append(*errs, errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name))
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// readSource returns nil, nil for missing optional source.
func readSource(log *log2.Log, fs FullReader, source Source, path string) ([]byte, error) {
	log.Debugf("config reading source='%s' path=%s", source.Name, path)
	b, err := fs.ReadAll(path)
	switch {
	case err != nil:
		return nil, errors.Annotatef(err, "config source=%s", source.Name)
	case b == nil && !source.Optional:
		return nil, errors.NotFoundf("config required name=%s path=%s", source.Name, path)
	}
	return b, nil
}

// ReadConfig merges sources in order, later values overwrite earlier.
func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		panic("code error ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		if dir != "" {
			osfs.SetBase(dir)
		}
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, Source{Name: name}, &errs)
	}
	if len(errs) == 0 {
		if err := c.Validate(); err != nil {
			errs = append(errs, errors.Annotate(err, "config invalid"))
		}
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
