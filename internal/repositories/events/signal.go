package events

import "sync"

// signal fans a content-free notification out to subscribers.
type signal struct {
	mu     sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

func newSignal() *signal {
	return &signal{subs: make(map[int]chan struct{})}
}

func (s *signal) subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *signal) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
