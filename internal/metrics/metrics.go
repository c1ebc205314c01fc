// Package metrics exposes hub counters in Prometheus format.
package metrics

import (
	"context"
	"expvar"
	"net"
	"net/http"
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/temoto/wxrelay/internal/cache"
	"github.com/temoto/wxrelay/internal/hub"
	"github.com/temoto/wxrelay/internal/publish"
	"github.com/temoto/wxrelay/log2"
	"github.com/temoto/wxrelay/wxproto"
)

const namespace = "wxhub"

var (
	descConnections = prometheus.NewDesc(namespace+"_connections_total",
		"Accepted connections.", []string{"endpoint"}, nil)
	descIngest = prometheus.NewDesc(namespace+"_ingest_total",
		"Ingest messages by result.", []string{"result"}, nil)
	descSections = prometheus.NewDesc(namespace+"_sections_committed_total",
		"Sections committed to cache.", nil, nil)
	descServe = prometheus.NewDesc(namespace+"_serve_total",
		"Serve requests by result.", []string{"result"}, nil)
	descBytes = prometheus.NewDesc(namespace+"_bytes_total",
		"Bytes transferred.", []string{"direction"}, nil)
	descAvailable = prometheus.NewDesc(namespace+"_available_mask",
		"Bitmask of categories ever received.", nil, nil)
	descAge = prometheus.NewDesc(namespace+"_reading_age_seconds",
		"Time since category was last received.", []string{"category"}, nil)
	descMqtt = prometheus.NewDesc(namespace+"_mqtt_messages_total",
		"MQTT sink messages by result.", []string{"result"}, nil)
)

// Collector reads live values on each scrape, nothing is copied in between.
type Collector struct {
	cache  *cache.Cache
	mqtt   *publish.MqttStat
	schema *wxproto.Schema
	stat   *hub.Stat
}

var _ prometheus.Collector = &Collector{}

func NewCollector(stat *hub.Stat, c *cache.Cache, schema *wxproto.Schema) *Collector {
	return &Collector{cache: c, schema: schema, stat: stat}
}

// WithMqtt adds MQTT sink counters.
func (c *Collector) WithMqtt(ms *publish.MqttStat) *Collector {
	c.mqtt = ms
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descConnections
	ch <- descIngest
	ch <- descSections
	ch <- descServe
	ch <- descBytes
	ch <- descAvailable
	ch <- descAge
	if c.mqtt != nil {
		ch <- descMqtt
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	counter := func(desc *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}
	st := c.stat
	counter(descConnections, st.IngestConn.Value(), string(hub.EndpointIngest))
	counter(descConnections, st.ServeConn.Value(), string(hub.EndpointServe))
	counter(descIngest, st.IngestOK.Value(), "ok")
	counter(descIngest, st.IngestAborted.Value(), "aborted")
	counter(descIngest, st.IngestDropped.Value(), "dropped")
	counter(descSections, st.Sections.Value())
	counter(descServe, st.ServeOK.Value(), "ok")
	counter(descServe, st.ServeAborted.Value(), "aborted")
	counter(descBytes, st.RecvBytes.Value(), "recv")
	counter(descBytes, st.SendBytes.Value(), "send")

	ch <- prometheus.MustNewConstMetric(descAvailable, prometheus.GaugeValue, float64(c.cache.Available()))
	for _, e := range c.schema.Entries() {
		if age, ok := c.cache.Age(e.Bit); ok {
			ch <- prometheus.MustNewConstMetric(descAge, prometheus.GaugeValue, age.Seconds(), e.Kind.String())
		}
	}

	if c.mqtt != nil {
		counter(descMqtt, c.mqtt.Queued.Value(), "queued")
		counter(descMqtt, c.mqtt.Sent.Value(), "sent")
		counter(descMqtt, c.mqtt.Failed.Value(), "failed")
	}
}

// Listen serves /metrics and expvar /debug/vars in background until ctx is done.
func Listen(ctx context.Context, log *log2.Log, listen string, g prometheus.Gatherer) (net.Addr, error) {
	ll, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, errors.Annotatef(err, "metrics listen=%s", listen)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{ErrorLog: log}))
	mux.Handle("/debug/vars", expvar.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ll); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics serve err=%v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutctx)
	}()
	return ll.Addr(), nil
}
