package publish

import (
	"context"
	"expvar"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/juju/errors"
	"github.com/sony/gobreaker"
	"github.com/temoto/alive/v2"
	"github.com/temoto/spq"
	"github.com/temoto/wxrelay/log2"
	"github.com/temoto/wxrelay/wxproto"
)

const (
	DefaultKeepAlive      = 60 * time.Second
	DefaultNetworkTimeout = 30 * time.Second
	DefaultRetryMin       = 500 * time.Millisecond
	DefaultRetryMax       = time.Minute
)

type MqttOptions struct {
	Log       *log2.Log
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	DeviceID        string
	DeviceName      string
	TopicPrefix     string
	DiscoveryPrefix string

	// Outbound messages survive restart here. spq.OnlyForTesting keeps them in memory.
	QueuePath      string
	KeepAlive      time.Duration
	NetworkTimeout time.Duration
	RetryMin       time.Duration
	RetryMax       time.Duration
	// Consecutive failed publishes before breaker opens for RetryMax.
	BreakerFailures uint32

	// nil means paho
	Transport Transporter
}

type MqttStat struct {
	Queued expvar.Int
	Sent   expvar.Int
	Failed expvar.Int
}

func (ms *MqttStat) String() string {
	return fmt.Sprintf(`{"queued":%d,"sent":%d,"failed":%d}`,
		ms.Queued.Value(), ms.Sent.Value(), ms.Failed.Value())
}

// MqttSink publishes measurements as Home Assistant sensors.
// Publish only appends to persistent queue; background worker delivers
// messages at least once, retrying with exponential backoff.
// Discovery config for each measurement is queued before its first state
// after every (re)connect.
type MqttSink struct {
	alive     *alive.Alive
	announced struct {
		sync.Mutex
		m map[string]struct{}
	}
	breaker   *gobreaker.CircuitBreaker
	cancel    context.CancelFunc
	ctx       context.Context
	log       *log2.Log
	opt       MqttOptions
	q         *spq.Queue
	stat      MqttStat
	transport Transporter
}

func NewMqttSink(ctx context.Context, opt MqttOptions) (*MqttSink, error) {
	if err := opt.normalize(); err != nil {
		return nil, errors.Annotate(err, "mqtt sink config")
	}
	s := &MqttSink{
		alive:     alive.NewAlive(),
		log:       opt.Log,
		opt:       opt,
		transport: opt.Transport,
	}
	s.announced.m = make(map[string]struct{})
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "mqtt",
		Timeout: opt.RetryMax,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= opt.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Infof("%s breaker %s -> %s", name, from, to)
		},
	})
	if s.transport == nil {
		s.transport = &transportPaho{}
	}
	if err := s.transport.Init(s.log, &s.opt, s.onConnect); err != nil {
		s.cancel()
		return nil, errors.Annotate(err, "mqtt transport")
	}

	var err error
	s.q, err = spq.Open(opt.QueuePath)
	if err != nil {
		s.cancel()
		return nil, errors.Annotatef(err, "mqtt queue path=%s", opt.QueuePath)
	}

	s.alive.Add(1)
	go s.qworker()
	return s, nil
}

func (opt *MqttOptions) normalize() error {
	u, err := url.ParseRequestURI(opt.BrokerURL)
	if err != nil {
		return errors.Annotatef(err, "broker=%s", opt.BrokerURL)
	}
	if u.User != nil && opt.Username == "" && opt.Password == "" {
		opt.Username = u.User.Username()
		opt.Password, _ = u.User.Password()
	}
	if opt.DeviceID == "" {
		return errors.NotValidf("device_id empty")
	}
	if opt.QueuePath == "" {
		return errors.NotValidf("queue_path empty")
	}
	if opt.ClientID == "" {
		opt.ClientID = opt.DeviceID
	}
	if opt.DeviceName == "" {
		opt.DeviceName = opt.DeviceID
	}
	if opt.TopicPrefix == "" {
		opt.TopicPrefix = DefaultTopicPrefix
	}
	if opt.DiscoveryPrefix == "" {
		opt.DiscoveryPrefix = DefaultDiscoveryPrefix
	}
	if opt.KeepAlive == 0 {
		opt.KeepAlive = DefaultKeepAlive
	}
	if opt.NetworkTimeout == 0 {
		opt.NetworkTimeout = DefaultNetworkTimeout
	}
	if opt.RetryMin == 0 {
		opt.RetryMin = DefaultRetryMin
	}
	if opt.RetryMax == 0 {
		opt.RetryMax = DefaultRetryMax
	}
	if opt.BreakerFailures == 0 {
		opt.BreakerFailures = 5
	}
	return nil
}

func (s *MqttSink) Stat() *MqttStat { return &s.stat }

func (s *MqttSink) Publish(bit uint8, sec wxproto.Section) {
	ms := sec.Measurements()
	for i := range ms {
		m := &ms[i]
		if s.announce(m.Name) {
			cfg, err := s.configMessage(m)
			if err != nil {
				s.log.Errorf("mqtt config bit=%d name=%s err=%v", bit, m.Name, err)
				continue
			}
			s.push(qConfig, cfg)
		}
		s.push(qState, s.stateMessage(m))
	}
}

// Close stops delivery, undelivered messages stay in persistent queue.
func (s *MqttSink) Close() error {
	s.alive.Stop()
	s.cancel()
	err := s.q.Close()
	s.alive.Wait()
	s.transport.Close()
	return errors.Annotate(err, "mqtt queue close")
}

// announce returns true once per name after each connect.
func (s *MqttSink) announce(name string) bool {
	s.announced.Lock()
	defer s.announced.Unlock()
	if _, ok := s.announced.m[name]; ok {
		return false
	}
	s.announced.m[name] = struct{}{}
	return true
}

func (s *MqttSink) onConnect() {
	s.announced.Lock()
	s.announced.m = make(map[string]struct{})
	s.announced.Unlock()
}

func (s *MqttSink) push(tag byte, m message) {
	if err := s.q.MarshalPush(&queueItem{tag: tag, message: m}); err != nil {
		s.stat.Failed.Add(1)
		s.log.Errorf("mqtt queue push topic=%s err=%v", m.Topic, err)
		return
	}
	s.stat.Queued.Add(1)
}

func (s *MqttSink) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opt.RetryMin
	bo.MaxInterval = s.opt.RetryMax
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func (s *MqttSink) connect() error {
	notify := func(err error, d time.Duration) {
		s.log.Errorf("mqtt connect err=%v retry in %v", err, d)
	}
	return backoff.RetryNotify(func() error {
		return s.transport.Connect(s.ctx)
	}, backoff.WithContext(s.newBackoff(), s.ctx), notify)
}

func (s *MqttSink) qworker() {
	defer s.alive.Done()
	if err := s.connect(); err != nil {
		s.log.Debugf("mqtt connect abandoned err=%v", err)
		return
	}
	bo := s.newBackoff()
	for {
		box, err := s.q.Peek()
		switch err {
		case nil:
			if s.qhandle(&box) {
				bo.Reset()
				continue
			}

		case spq.ErrClosed:
			return

		default:
			s.log.Errorf("CRITICAL mqtt queue err=%v", err)
		}

		select {
		case <-time.After(bo.NextBackOff()):
		case <-s.ctx.Done():
			return
		}
	}
}

// qhandle returns false when delivery should be retried later.
func (s *MqttSink) qhandle(box *spq.Box) bool {
	var item queueItem
	if err := box.Unmarshal(&item); err != nil {
		s.log.Errorf("mqtt queue b=%x err=%v", box.Bytes(), err)
		s.qdelete(box)
		return true // retry will not help
	}

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.transport.Publish(item.Topic, item.Payload, item.Retain)
	})
	if err == nil {
		s.stat.Sent.Add(1)
		s.qdelete(box)
		return true
	}

	// failed message stays at queue head, so states of one sensor are never reordered
	s.stat.Failed.Add(1)
	s.log.Debugf("mqtt publish topic=%s err=%v", item.Topic, err)
	return false
}

func (s *MqttSink) qdelete(box *spq.Box) {
	if err := s.q.Delete(*box); err != nil && err != spq.ErrClosed {
		s.log.Errorf("mqtt queue Delete b=%x err=%v", box.Bytes(), err)
	}
}
