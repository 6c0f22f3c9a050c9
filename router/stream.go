package router

import (
	"context"
	"sync"

	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/record"
)

// streamBuffer decouples a producing handler from a slow consumer without
// letting an unread stream grow unbounded.
const streamBuffer = 16

// Stream is the channel-backed sequence of responses one invocation yields.
// Consume with Recv (range over the channel) and check Err after the
// channel closes, or collect everything with Drain. Close cancels the
// producing handler early; a finished stream releases its invocation
// context on its own, and an abandoned stream is cancelled when its parent
// context ends.
type Stream struct {
	ch     chan record.Response
	cancel context.CancelFunc

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	done      chan struct{}
}

func newStream(cancel context.CancelFunc) *Stream {
	return &Stream{
		ch:     make(chan record.Response, streamBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// yieldFunc builds the Yield the handler calls. Sends respect handler
// cancellation so a producer never blocks forever on an abandoned stream.
func (s *Stream) yieldFunc(ctx context.Context) Yield {
	return func(resp record.Response) error {
		select {
		case s.ch <- resp:
			return nil
		case <-ctx.Done():
			return errors.WrapTransient(ctx.Err(), "Stream", "yield", "consumer gone")
		}
	}
}

// finish records the handler's terminal error, releases the invocation
// context, and closes the channel. The handler has already returned, so
// cancelling here only detaches the child context from the caller's parent;
// buffered responses stay readable.
func (s *Stream) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.ch)
	s.cancel()
	close(s.done)
}

// Recv returns the response channel. It closes when the handler finishes
// or fails; check Err afterwards.
func (s *Stream) Recv() <-chan record.Response {
	return s.ch
}

// Err returns the handler's terminal error, nil while the stream is live
// or when it completed cleanly.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close cancels the producing handler. Buffered responses remain readable.
// Safe to call more than once.
func (s *Stream) Close() {
	s.closeOnce.Do(s.cancel)
}

// Done closes when the handler has finished.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Drain collects every remaining response, returning them with the
// stream's terminal error. It stops early when ctx ends.
func (s *Stream) Drain(ctx context.Context) ([]record.Response, error) {
	var out []record.Response
	for {
		select {
		case resp, ok := <-s.ch:
			if !ok {
				return out, s.Err()
			}
			out = append(out, resp)
		case <-ctx.Done():
			s.Close()
			return out, errors.WrapTransient(ctx.Err(), "Stream", "Drain", "cancelled")
		}
	}
}
