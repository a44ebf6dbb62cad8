package ws

import (
	"sync"

	"github.com/space-operator/spo-go/pkg/api"
)

type serial struct {
	handler Handler
	queue   []*api.Event
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	once    sync.Once
}

// Serialized returns a Handler that queues events without blocking the read
// loop and delivers them to h in arrival order on a dedicated goroutine, so
// h may call Send on the same Conn. The returned stop function delivers the
// events already queued, then waits for the goroutine to exit
func Serialized(h Handler) (Handler, func()) {
	s := &serial{
		handler: h,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s.push, s.close
}

func (s *serial) push(ev *api.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *serial) run() {
	defer close(s.done)
	for {
		for _, ev := range s.drain() {
			s.handler(ev)
		}
		select {
		case <-s.wake:
		case <-s.stop:
			for _, ev := range s.drain() {
				s.handler(ev)
			}
			return
		}
	}
}

func (s *serial) drain() []*api.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.queue
	s.queue = nil
	return res
}

func (s *serial) close() {
	s.once.Do(func() {
		close(s.stop)
	})
	<-s.done
}
