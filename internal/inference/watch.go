package inference

import (
	"context"

	"libreplexity/pkg/types"
)

// emit publishes e and pushes a fresh Snapshot to subscribers. It must be
// called without s.mu held.
func (s *Session) emit(e Event) {
	s.pub.Publish(e)
	st := s.Snapshot()
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		// latest wins: drop the unread status before sending the new one
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

// Subscribe returns a channel carrying the current status followed by one
// status per session event. Slow readers only see the latest status. The
// channel is closed when ctx ends.
func (s *Session) Subscribe(ctx context.Context) <-chan types.EngineStatus {
	ch := make(chan types.EngineStatus, 1)
	ch <- s.Snapshot()
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.subMu.Unlock()
	}()
	return ch
}
