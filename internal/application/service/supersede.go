package service

import (
	"context"
	"sync"

	"github.com/garyjia/claims-fulfillment/pkg/apperr"
)

// ErrSuperseded is returned by a lookup that a newer lookup for the same claim replaced
var ErrSuperseded = apperr.Conflict("request superseded by a newer one")

type inflight struct {
	gen    uint64
	cancel context.CancelFunc
}

// supersession keeps at most one live request per key. Starting a new
// request cancels the previous one, whose result is then discarded.
type supersession struct {
	mu       sync.Mutex
	next     uint64
	inflight map[string]inflight
}

func newSupersession() *supersession {
	return &supersession{inflight: make(map[string]inflight)}
}

// begin registers a request under key and returns its context and a finish
// func. finish reports whether the request was still current.
func (s *supersession) begin(ctx context.Context, key string) (context.Context, func() bool) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if prev, ok := s.inflight[key]; ok {
		prev.cancel()
	}
	s.next++
	gen := s.next
	s.inflight[key] = inflight{gen: gen, cancel: cancel}
	s.mu.Unlock()

	return ctx, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()

		cur, ok := s.inflight[key]
		current := ok && cur.gen == gen
		if current {
			delete(s.inflight, key)
		}
		cancel()
		return current
	}
}
