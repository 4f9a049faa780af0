// internal/coordinator/sink.go
package coordinator

import (
	"sync"

	"github.com/rs/zerolog"
)

// sink feeds one subscriber from its own goroutine.
// The mailbox holds a single pending value: a newer offer replaces an
// undelivered older one, so a slow subscriber only ever sees the latest.
type sink[T any] struct {
	id  int
	fn  func(T)
	log zerolog.Logger

	mbox chan T
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newSink[T any](id int, fn func(T), log zerolog.Logger) *sink[T] {
	s := &sink[T]{
		id:   id,
		fn:   fn,
		log:  log,
		mbox: make(chan T, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.loop()
	return s
}

// offer never blocks.
func (s *sink[T]) offer(v T) {
	for {
		select {
		case s.mbox <- v:
			return
		default:
		}
		// drop the stale pending value
		select {
		case <-s.mbox:
		default:
		}
	}
}

// close delivers a pending value, then stops the goroutine and waits for it.
func (s *sink[T]) close() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

func (s *sink[T]) loop() {
	defer close(s.done)

	for {
		select {
		case v := <-s.mbox:
			s.deliver(v)
		case <-s.stop:
			select {
			case v := <-s.mbox:
				s.deliver(v)
			default:
			}
			return
		}
	}
}

// a panicking subscriber is logged and stays subscribed
func (s *sink[T]) deliver(v T) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Int("subscriber", s.id).Msg("subscriber panicked")
		}
	}()
	s.fn(v)
}
