// Relay hub daemon: ingest and serve endpoints, publish sinks, metrics.
package serve

import (
	"context"
	"expvar"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/temoto/wxrelay/cmd/wxhub/subcmd"
	"github.com/temoto/wxrelay/helpers"
	"github.com/temoto/wxrelay/internal/cache"
	"github.com/temoto/wxrelay/internal/config"
	"github.com/temoto/wxrelay/internal/hub"
	"github.com/temoto/wxrelay/internal/metrics"
	"github.com/temoto/wxrelay/internal/publish"
	"github.com/temoto/wxrelay/log2"
)

var Mod = subcmd.Mod{Name: "serve", Usage: "run relay hub until signal", Main: Main}

func Main(ctx context.Context, log *log2.Log, cfg *config.Config, args []string) error {
	return run(ctx, log, cfg, func(srv *hub.Server) {
		expvar.Publish("hub", srv.Stat())
		subcmd.SdNotify(log, daemon.SdNotifyReady)
	})
}

func run(ctx context.Context, log *log2.Log, cfg *config.Config, ready func(*hub.Server)) error {
	schema, err := cfg.Schema()
	if err != nil {
		return errors.Annotate(err, "hub schema")
	}
	c := cache.New()

	sinks := publish.Multi{}
	if cfg.Publish.Log {
		sinks = append(sinks, publish.NewLogSink(log))
	}
	var mqttSink *publish.MqttSink
	if cfg.Mqtt.Enable {
		mlog := log.Clone(log2.LInfo)
		if cfg.Mqtt.LogDebug {
			mlog.SetLevel(log2.LDebug)
		}
		mqttSink, err = publish.NewMqttSink(ctx, publish.MqttOptions{
			Log:             mlog,
			BrokerURL:       cfg.Mqtt.Broker,
			ClientID:        cfg.Mqtt.ClientID,
			Username:        cfg.Mqtt.Username,
			Password:        cfg.Mqtt.Password,
			DeviceID:        cfg.Mqtt.DeviceID,
			DeviceName:      cfg.Mqtt.DeviceName,
			TopicPrefix:     cfg.Mqtt.TopicPrefix,
			DiscoveryPrefix: cfg.Mqtt.DiscoveryPrefix,
			QueuePath:       cfg.MqttQueuePath(),
			KeepAlive:       helpers.IntSecondDefault(cfg.Mqtt.KeepaliveSec, 0),
			NetworkTimeout:  helpers.IntSecondDefault(cfg.Mqtt.NetworkTimeoutSec, 0),
		})
		if err != nil {
			return errors.Annotate(err, "mqtt")
		}
		sinks = append(sinks, mqttSink)
	}

	srv := hub.NewServer(hub.ServerOptions{
		Log:         log,
		Schema:      schema,
		Cache:       c,
		Publisher:   sinks,
		IngestURL:   cfg.Hub.IngestListen,
		ServeURL:    cfg.Hub.ServeListen,
		ReadTimeout: cfg.ReadTimeout(),
		Workers:     cfg.Hub.Workers,
	})
	if err = srv.Listen(ctx); err != nil {
		_ = sinks.Close()
		return errors.Annotate(err, "hub")
	}

	if cfg.Metrics.Listen != "" {
		collector := metrics.NewCollector(srv.Stat(), c, schema)
		if mqttSink != nil {
			collector.WithMqtt(mqttSink.Stat())
		}
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collector,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		addr, err := metrics.Listen(ctx, log, cfg.Metrics.Listen, reg)
		if err != nil {
			return helpers.FoldErrors([]error{err, srv.Close(), sinks.Close()})
		}
		log.Infof("metrics addr=%s", addr)
	}

	log.Infof("hub running schema=%s ingest=%s serve=%s workers=%d",
		schema.Name, srv.Addr(hub.EndpointIngest), srv.Addr(hub.EndpointServe), cfg.Hub.Workers)
	if ready != nil {
		ready(srv)
	}

	<-ctx.Done()
	subcmd.SdNotify(log, daemon.SdNotifyStopping)
	log.Infof("hub stopping stat=%s", srv.Stat())
	// server first so no Publish arrives at closed sinks
	return helpers.FoldErrors([]error{srv.Close(), sinks.Close()})
}
