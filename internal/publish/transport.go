package publish

import (
	"context"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/wxrelay/log2"
)

var ErrNotConnected = fmt.Errorf("mqtt not connected")

// Transporter contract:
// - Init fails only with invalid config, no network IO
// - Connect blocks until first successful connect, error or ctx done
// - after first connect, reconnect is transport's job; onConnect is called on each
// - Publish delivers with broker ack (QoS 1) within timeout or fails
type Transporter interface {
	Init(log *log2.Log, opt *MqttOptions, onConnect func()) error
	Connect(ctx context.Context) error
	Publish(topic string, payload []byte, retain bool) error
	Close()
}

var pahoLogOnce sync.Once

type transportPaho struct {
	log          *log2.Log
	m            mqtt.Client
	opt          *MqttOptions
	availability string
}

func (t *transportPaho) Init(log *log2.Log, opt *MqttOptions, onConnect func()) error {
	t.log = log
	t.opt = opt
	pahoLogOnce.Do(func() {
		mqtt.ERROR = log
		mqtt.CRITICAL = log
		mqtt.WARN = log
	})

	t.availability = TopicAvailability(opt.TopicPrefix, opt.DeviceID)
	mopt := mqtt.NewClientOptions().
		AddBroker(opt.BrokerURL).
		SetClientID(opt.ClientID).
		SetUsername(opt.Username).
		SetPassword(opt.Password).
		SetCleanSession(true).
		SetKeepAlive(opt.KeepAlive).
		SetPingTimeout(opt.NetworkTimeout).
		SetConnectTimeout(opt.NetworkTimeout).
		SetWriteTimeout(opt.NetworkTimeout).
		SetOrderMatters(false).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(opt.RetryMax).
		SetWill(t.availability, payloadOffline, 1, true).
		SetOnConnectHandler(func(c mqtt.Client) {
			t.log.Infof("mqtt connected broker=%s", opt.BrokerURL)
			c.Publish(t.availability, 1, true, payloadOnline)
			if onConnect != nil {
				onConnect()
			}
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			t.log.Infof("mqtt connection lost err=%v", err)
		})
	t.m = mqtt.NewClient(mopt)
	return nil
}

func (t *transportPaho) Connect(ctx context.Context) error {
	tok := t.m.Connect()
	select {
	case <-tok.Done():
		return errors.Annotatef(tok.Error(), "mqtt connect broker=%s", t.opt.BrokerURL)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *transportPaho) Publish(topic string, payload []byte, retain bool) error {
	if !t.m.IsConnectionOpen() {
		return ErrNotConnected
	}
	tok := t.m.Publish(topic, 1, retain, payload)
	if !tok.WaitTimeout(t.opt.NetworkTimeout) {
		return errors.Timeoutf("mqtt publish topic=%s", topic)
	}
	return tok.Error()
}

func (t *transportPaho) Close() {
	if t.m == nil {
		return
	}
	if t.m.IsConnectionOpen() {
		tok := t.m.Publish(t.availability, 1, true, payloadOffline)
		tok.WaitTimeout(t.opt.NetworkTimeout)
	}
	t.m.Disconnect(250)
}
