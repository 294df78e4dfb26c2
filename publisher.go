package authflow

import "sync"

// Publisher fans out AuthState transitions to subscribers with replay-latest
// semantics: each new subscriber immediately receives the current state, then
// every subsequent change in the order the Machine applied them.
type Publisher struct {
	mu     sync.Mutex
	seq    uint64
	subs   map[uint64]*Subscription
	latest AuthState
	buffer int
	closed bool
}

// PublisherOption customizes publisher construction.
type PublisherOption func(*Publisher)

// WithSubscriberBuffer sets the per-subscriber channel capacity (minimum 1).
// When a subscriber falls behind, the oldest pending state is dropped so the
// latest state always lands; the relative order of delivered states is
// preserved.
func WithSubscriberBuffer(n int) PublisherOption {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = n
		}
	}
}

// NewPublisher creates a publisher whose latest value is initial.
func NewPublisher(initial AuthState, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		subs:   map[uint64]*Subscription{},
		latest: initial,
		buffer: 16,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Subscription is one consumer's read-only, time-ordered view of AuthState.
type Subscription struct {
	id   uint64
	ch   chan AuthState
	pub  *Publisher
	once sync.Once
}

// States returns the subscription channel. It is closed when the subscriber
// unsubscribes or the publisher shuts down.
func (s *Subscription) States() <-chan AuthState {
	return s.ch
}

// Unsubscribe stops delivery to this subscriber only; other subscribers and
// the state machine are unaffected.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.pub.remove(s.id)
	})
}

// Subscribe registers a new subscriber. Its first element is the latest
// AuthState, delivered immediately.
func (p *Publisher) Subscribe() *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	sub := &Subscription{
		id:  p.seq,
		ch:  make(chan AuthState, p.buffer),
		pub: p,
	}

	if p.closed {
		close(sub.ch)
		return sub
	}

	sub.ch <- p.latest
	p.subs[sub.id] = sub
	return sub
}

// Publish records state as the latest value and delivers it to every
// subscriber. Callers are expected to publish from a single goroutine; the
// Machine's run loop is the only writer.
func (p *Publisher) Publish(state AuthState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.latest = state
	for _, sub := range p.subs {
		sub.push(state)
	}
}

// Latest returns the most recently published state.
func (p *Publisher) Latest() AuthState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

// Close terminates every subscription. Subsequent Publish calls are ignored
// and new subscribers receive an already-closed channel.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for id, sub := range p.subs {
		close(sub.ch)
		delete(p.subs, id)
	}
}

func (p *Publisher) remove(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub, ok := p.subs[id]
	if !ok {
		return
	}
	delete(p.subs, id)
	close(sub.ch)
}

func (s *Subscription) push(state AuthState) {
	for {
		select {
		case s.ch <- state:
			return
		default:
		}
		// channel full: shed the oldest pending element and retry
		select {
		case <-s.ch:
		default:
		}
	}
}
