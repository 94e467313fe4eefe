package channel

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// MQTTConfig describes the broker and topics used by the MQTT transport.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`

	consumer bool
}

// ToConsumer is the topic calls and replies from the bridge are published on.
func (c MQTTConfig) ToConsumer() string {
	return c.TopicPrefix + "/to-consumer"
}

// FromConsumer is the topic the consumer publishes its calls and replies on.
func (c MQTTConfig) FromConsumer() string {
	return c.TopicPrefix + "/from-consumer"
}

// AsConsumer returns the configuration for the other end of the topic pair: it publishes on
// FromConsumer and listens on ToConsumer.
func (c MQTTConfig) AsConsumer() MQTTConfig {
	c.consumer = true
	c.ClientID += "-consumer"
	return c
}

func (c MQTTConfig) outbound() string {
	if c.consumer {
		return c.FromConsumer()
	}
	return c.ToConsumer()
}

func (c MQTTConfig) inbound() string {
	if c.consumer {
		return c.ToConsumer()
	}
	return c.FromConsumer()
}

// MQTT carries the method channel over a pair of MQTT topics.
type MQTT struct {
	*peer
	cfg    MQTTConfig
	client mqtt.Client
	inbox  chan []byte
}

const inboxSize = 32

// DialMQTT connects to the broker. The connection retries and reconnects on its own.
func DialMQTT(cfg MQTTConfig, codec Codec) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	// Each message is handed to its own goroutine, so a full inbox never stalls the router.
	opts.SetOrderMatters(false)

	l := logrus.WithFields(logrus.Fields{"transport": "mqtt", "broker": cfg.Broker})
	opts.OnConnect = func(c mqtt.Client) {
		l.Infoln("MQTT connection established")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		l.Warnf("MQTT connection lost, reconnecting: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	m := &MQTT{cfg: cfg, client: client, inbox: make(chan []byte, inboxSize)}
	m.peer = newPeer(codec, m.publish, l)
	return m, nil
}

func (m *MQTT) InvokeMethod(ctx context.Context, method string, args interface{}) (Result, error) {
	return m.invoke(ctx, method, args)
}

// Serve answers calls from the other end with h until ctx is cancelled, then disconnects.
// Messages are queued by the subscription and handled on a separate goroutine.
func (m *MQTT) Serve(ctx context.Context, h Handler) error {
	go m.work(ctx, h)
	token := m.client.Subscribe(m.cfg.inbound(), m.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		m.enqueue(ctx, msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscription failed: %w", err)
	}
	m.log.Infof("Listening for calls on %v", m.cfg.inbound())

	<-ctx.Done()
	m.close()
	if m.client.IsConnected() {
		m.client.Unsubscribe(m.cfg.inbound()).WaitTimeout(time.Second)
		m.client.Disconnect(250)
	}
	return nil
}

func (m *MQTT) enqueue(ctx context.Context, body []byte) {
	select {
	case m.inbox <- body:
	case <-ctx.Done():
	}
}

func (m *MQTT) work(ctx context.Context, h Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case body := <-m.inbox:
			m.receive(ctx, body, h)
		}
	}
}

func (m *MQTT) publish(body []byte) error {
	token := m.client.Publish(m.cfg.outbound(), m.cfg.QoS, false, body)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}
