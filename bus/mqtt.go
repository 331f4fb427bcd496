package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/encodeous/strand/state"
)

// MQTT is a Bus backed by an MQTT broker
type MQTT struct {
	client mqtt.Client
	qos    byte

	mu   sync.Mutex
	subs map[string]Handler
}

func DialMQTT(ctx context.Context, cfg state.BusCfg) (*MQTT, error) {
	m := &MQTT{
		qos:  cfg.QoS,
		subs: make(map[string]Handler),
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Address).
		SetClientID(cfg.ClientId).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(state.PublishTimeout).
		SetOnConnectHandler(m.resubscribe)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	m.client = mqtt.NewClient(opts)
	if err := wait(ctx, m.client.Connect()); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Address, err)
	}
	return m, nil
}

// wait blocks until the token completes, the context ends or PublishTimeout elapses
func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(state.PublishTimeout):
		return fmt.Errorf("timed out after %s", state.PublishTimeout)
	}
}

func (m *MQTT) Publish(ctx context.Context, topic string, payload []byte) error {
	if !m.client.IsConnectionOpen() {
		return fmt.Errorf("mqtt: publish %s: %w", topic, ErrClosed)
	}
	if err := wait(ctx, m.client.Publish(topic, m.qos, false, payload)); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}

func (m *MQTT) Subscribe(ctx context.Context, topic string, h Handler) error {
	m.mu.Lock()
	m.subs[topic] = h
	m.mu.Unlock()
	if err := wait(ctx, m.client.Subscribe(topic, m.qos, m.callback(h))); err != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", topic, err)
	}
	return nil
}

func (m *MQTT) Unsubscribe(ctx context.Context, topics ...string) error {
	m.mu.Lock()
	for _, t := range topics {
		delete(m.subs, t)
	}
	m.mu.Unlock()
	if len(topics) == 0 || !m.client.IsConnectionOpen() {
		return nil
	}
	if err := wait(ctx, m.client.Unsubscribe(topics...)); err != nil {
		return fmt.Errorf("mqtt: unsubscribe: %w", err)
	}
	return nil
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}

func (m *MQTT) callback(h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		h(msg.Topic(), msg.Payload())
	}
}

// resubscribe restores subscriptions after a reconnect, clean sessions drop them on the broker
func (m *MQTT) resubscribe(c mqtt.Client) {
	m.mu.Lock()
	filters := make(map[string]byte, len(m.subs))
	handlers := make(map[string]Handler, len(m.subs))
	for t, h := range m.subs {
		filters[t] = m.qos
		handlers[t] = h
	}
	m.mu.Unlock()
	if len(filters) == 0 {
		return
	}
	c.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		if h, ok := handlers[msg.Topic()]; ok {
			h(msg.Topic(), msg.Payload())
		}
	})
}
