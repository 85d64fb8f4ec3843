package progress

import "sync"

// Publisher is a single-slot broadcast channel. It keeps only the most recent
// event and replays it to every new subscriber before any later event.
//
// Publish never blocks: each subscriber has a one-event mailbox and a slow
// reader sees the newest event instead of the ones it missed.
//
// Usage:
//
//	pub := NewPublisher()
//	sub := pub.Subscribe()
//	defer sub.Close()
//	for ev := range sub.C {
//	    render(ev)
//	}
type Publisher struct {
	mu     sync.Mutex
	latest Event
	has    bool
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription receives events on C until Close is called or the publisher is closed.
type Subscription struct {
	// C delivers events; it is closed when the subscription ends
	C <-chan Event

	ch  chan Event
	pub *Publisher
}

// NewPublisher creates an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{
		subs: make(map[*Subscription]struct{}),
	}
}

// Publish stores ev as the latest event and offers it to all subscribers.
func (p *Publisher) Publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.latest = ev
	p.has = true

	for sub := range p.subs {
		offer(sub.ch, ev)
	}
}

// Latest returns the most recent event, if any has been published.
func (p *Publisher) Latest() (Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.has
}

// Subscribe registers a new observer. The latest event, if any, is already
// waiting on C when Subscribe returns.
func (p *Publisher) Subscribe() *Subscription {
	ch := make(chan Event, 1)
	sub := &Subscription{C: ch, ch: ch, pub: p}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		close(ch)
		return sub
	}

	if p.has {
		ch <- p.latest
	}
	p.subs[sub] = struct{}{}

	return sub
}

// SubscriberCount returns the number of live subscriptions.
func (p *Publisher) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Close ends every subscription. Later publishes are ignored.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	for sub := range p.subs {
		close(sub.ch)
		delete(p.subs, sub)
	}
}

// Close detaches the subscription and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	p := s.pub
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.subs[s]; !ok {
		return
	}
	delete(p.subs, s)
	close(s.ch)
}

// offer puts ev in the one-slot mailbox, evicting a stale undelivered event.
// Caller holds the publisher lock, so there is a single writer per mailbox.
func offer(ch chan Event, ev Event) {
	select {
	case ch <- ev:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}

	select {
	case ch <- ev:
	default:
	}
}
