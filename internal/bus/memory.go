package bus

import (
	"context"
	"sync"
)

// Memory is an in-process Bus with the same fan-out semantics as Redis.
// A subscriber that falls behind by more than its buffer loses messages.
type Memory struct {
	mu     sync.Mutex
	subs   map[string]map[*memorySubscription]struct{}
	buffer int
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[*memorySubscription]struct{}), buffer: 100}
}

func (m *Memory) Publish(_ context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for s := range m.subs[channel] {
		msg := append([]byte(nil), payload...)
		select {
		case s.out <- msg:
		default:
		}
	}
	return nil
}

func (m *Memory) Subscribe(_ context.Context, channel string) (Subscription, error) {
	s := &memorySubscription{bus: m, channel: channel, out: make(chan []byte, m.buffer)}
	m.mu.Lock()
	if m.subs[channel] == nil {
		m.subs[channel] = make(map[*memorySubscription]struct{})
	}
	m.subs[channel][s] = struct{}{}
	m.mu.Unlock()
	return s, nil
}

type memorySubscription struct {
	bus     *Memory
	channel string
	out     chan []byte
	once    sync.Once
}

func (s *memorySubscription) Messages() <-chan []byte { return s.out }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs[s.channel], s)
		s.bus.mu.Unlock()
		close(s.out)
	})
	return nil
}
