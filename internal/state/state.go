// Package state holds the machinery shared by the session, library and inbox
// containers: request phases, per-slice request ids, subscriber fan-out and
// error-to-message mapping.
package state

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Phase is the stage of an asynchronous intent
type Phase int

const (
	Pending Phase = iota
	Fulfilled
	Rejected
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// RequestID identifies one asynchronous intent within a slice
type RequestID uint64

// Tracker hands out monotonically increasing request ids for one slice.
//
// Settled responses are always applied, even when a newer request started
// after them: the last response to settle wins. Latest lets callers detect
// that case without discarding anything.
type Tracker struct {
	last atomic.Uint64
}

// Begin records a new pending request and returns its id
func (t *Tracker) Begin() RequestID {
	return RequestID(t.last.Add(1))
}

// Latest returns the id of the most recently started request
func (t *Tracker) Latest() RequestID {
	return RequestID(t.last.Load())
}

// Superseded reports whether a request newer than id has started
func (t *Tracker) Superseded(id RequestID) bool {
	return t.Latest() > id
}

// Version orders the snapshots of one container. Containers bump it under
// their own lock, so a higher version always describes a later state.
type Version uint64

// Hub fans snapshots out to subscribers. Publish must be called without
// holding the container lock so subscribers may read the container again.
//
// Deliveries never overlap and never go backwards: a snapshot older than one
// already handed out is dropped, and snapshots published while a delivery is
// running are coalesced into the newest one.
type Hub[S any] struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(S)

	pub        sync.Mutex
	pending    S
	queued     Version
	delivering bool
}

// Subscribe registers fn and returns a function that removes it
func (h *Hub[S]) Subscribe(fn func(S)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs == nil {
		h.subs = make(map[int]func(S))
	}
	id := h.next
	h.next++
	h.subs[id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

// Publish delivers s, stamped with version v, to every subscriber. If another
// goroutine is already delivering, s is handed over to it and Publish returns
// at once; that goroutine delivers the newest queued snapshot before it
// returns.
func (h *Hub[S]) Publish(v Version, s S) {
	h.pub.Lock()
	if v <= h.queued {
		h.pub.Unlock()
		return
	}
	h.pending, h.queued = s, v
	if h.delivering {
		h.pub.Unlock()
		return
	}
	h.delivering = true

	for {
		snap, sent := h.pending, h.queued
		h.pub.Unlock()

		for _, fn := range h.subscribers() {
			fn(snap)
		}

		h.pub.Lock()
		if h.queued == sent {
			h.delivering = false
			var zero S
			h.pending = zero
			h.pub.Unlock()
			return
		}
	}
}

func (h *Hub[S]) subscribers() []func(S) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fns := make([]func(S), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	return fns
}

// ValidationFailure is a client-side precondition that failed before any
// network or storage call was made.
type ValidationFailure struct {
	Field   string
	Message string
}

func (e *ValidationFailure) Error() string {
	return e.Message
}

// IsValidationFailure reports whether err is, or wraps, a ValidationFailure
func IsValidationFailure(err error) bool {
	var vf *ValidationFailure
	return errors.As(err, &vf)
}

// Message maps err to the text stored in a snapshot's Error field.
// fallback is used when the error carries no text of its own.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
