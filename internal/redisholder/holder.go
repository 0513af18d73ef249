package redisholder

import (
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// Source hands out the current client. Callers must not cache the result
// across operations: the health loop may swap it after a reconnect.
type Source interface {
	Get() redis.UniversalClient
}

type box struct{ c redis.UniversalClient }

// Holder is a Source whose client can be replaced while in use.
type Holder struct {
	p atomic.Pointer[box]
}

func NewHolder(initial redis.UniversalClient) *Holder {
	h := &Holder{}
	h.p.Store(&box{c: initial})
	return h
}

func (h *Holder) Get() redis.UniversalClient {
	if b := h.p.Load(); b != nil {
		return b.c
	}
	return nil
}

func (h *Holder) swap(newc redis.UniversalClient) (old redis.UniversalClient) {
	if b := h.p.Swap(&box{c: newc}); b != nil {
		old = b.c
	}
	return old
}

func (h *Holder) Close() error {
	if c := h.Get(); c != nil {
		return c.Close()
	}
	return nil
}
