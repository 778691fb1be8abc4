package chat

import "sync"

// Subscription is a cancellable handle on a live stream. Cancel is idempotent
// and guarantees no further callbacks once it returns.
type Subscription struct {
	once sync.Once
	stop func()
}

func (s *Subscription) Cancel() {
	s.once.Do(s.stop)
}

// subscriber wraps a callback so delivery and cancellation are serialized:
// after closed is set no invocation can be in flight or start.
type subscriber struct {
	mu     sync.Mutex
	closed bool
	fn     func(any)
}

func (s *subscriber) deliver(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.fn(v)
}

func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// fanout is a topic -> subscribers registry shared by the three live stores
// (messages, inbox, language).
type fanout struct {
	mu   sync.Mutex
	next uint64
	subs map[string]map[uint64]*subscriber
}

func newFanout() *fanout {
	return &fanout{subs: map[string]map[uint64]*subscriber{}}
}

func (f *fanout) add(topic string, fn func(any)) *Subscription {
	sub := &subscriber{fn: fn}
	f.mu.Lock()
	f.next++
	id := f.next
	if _, ok := f.subs[topic]; !ok {
		f.subs[topic] = map[uint64]*subscriber{}
	}
	f.subs[topic][id] = sub
	f.mu.Unlock()

	return &Subscription{stop: func() {
		f.mu.Lock()
		if m, ok := f.subs[topic]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(f.subs, topic)
			}
		}
		f.mu.Unlock()
		sub.close()
	}}
}

// publish delivers v to every subscriber of topic. Delivery happens outside
// the registry lock so callbacks may add or cancel subscriptions freely.
func (f *fanout) publish(topic string, v any) {
	f.mu.Lock()
	snapshot := make([]*subscriber, 0, len(f.subs[topic]))
	for _, s := range f.subs[topic] {
		snapshot = append(snapshot, s)
	}
	f.mu.Unlock()

	for _, s := range snapshot {
		s.deliver(v)
	}
}
