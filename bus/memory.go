package bus

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/encodeous/strand/state"
)

// Broker is an in-process topic broker. Clients created from it behave like connections to a real
// broker: publishes never block and every client receives its messages in order on its own goroutine.
type Broker struct {
	mu      sync.Mutex
	clock   clock.Clock
	clients map[*Memory]struct{}
	latency map[[2]state.NodeId]time.Duration
}

func NewBroker(clk clock.Clock) *Broker {
	if clk == nil {
		clk = clock.New()
	}
	return &Broker{
		clock:   clk,
		clients: make(map[*Memory]struct{}),
		latency: make(map[[2]state.NodeId]time.Duration),
	}
}

// SetLatency delays every message published by a and received by b, and the other way around
func (b *Broker) SetLatency(a, c state.NodeId, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latency[[2]state.NodeId{a, c}] = d
	b.latency[[2]state.NodeId{c, a}] = d
}

// Client connects a new client. id is only used to look up simulated latencies.
func (b *Broker) Client(id state.NodeId) *Memory {
	m := &Memory{
		id:     id,
		broker: b,
		subs:   make(map[string]Handler),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	b.clients[m] = struct{}{}
	b.mu.Unlock()
	m.wg.Add(1)
	go m.deliver()
	return m
}

func (b *Broker) publish(from state.NodeId, topic string, payload []byte) {
	b.mu.Lock()
	targets := make([]*Memory, 0)
	delays := make([]time.Duration, 0)
	for c := range b.clients {
		if c.subscribed(topic) {
			targets = append(targets, c)
			delays = append(delays, b.latency[[2]state.NodeId{from, c.id}])
		}
	}
	b.mu.Unlock()

	for i, c := range targets {
		msg := envelope{topic: topic, payload: slices.Clone(payload)}
		if delays[i] <= 0 {
			c.enqueue(msg)
			continue
		}
		b.clock.AfterFunc(delays[i], func() {
			c.enqueue(msg)
		})
	}
}

func (b *Broker) remove(m *Memory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, m)
}

type envelope struct {
	topic   string
	payload []byte
}

// Memory is a Bus client of a Broker
type Memory struct {
	id     state.NodeId
	broker *Broker

	mu     sync.Mutex
	subs   map[string]Handler
	queue  []envelope
	closed bool

	notify chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

func (m *Memory) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}
	m.broker.publish(m.id, topic, payload)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, topic string, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.subs[topic] = h
	return nil
}

func (m *Memory) Unsubscribe(ctx context.Context, topics ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range topics {
		delete(m.subs, t)
	}
	return nil
}

// Close stops delivery and waits for the delivery goroutine to exit. Queued messages are dropped.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.queue = nil
	m.mu.Unlock()

	m.broker.remove(m)
	close(m.done)
	m.wg.Wait()
	return nil
}

func (m *Memory) subscribed(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subs[topic]
	return ok
}

func (m *Memory) enqueue(e envelope) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, e)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Memory) deliver() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case <-m.notify:
		}
		for {
			m.mu.Lock()
			if m.closed || len(m.queue) == 0 {
				m.mu.Unlock()
				break
			}
			e := m.queue[0]
			m.queue = m.queue[1:]
			h := m.subs[e.topic]
			m.mu.Unlock()
			if h != nil {
				h(e.topic, e.payload)
			}
		}
	}
}
