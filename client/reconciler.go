// Package client is the Go counterpart of the hub: a reconciler that
// folds hub events into a local roster, a reconnecting websocket
// transport, and a sampling loop that publishes the local position on
// a cadence.
package client

import (
	"sync"

	"github.com/alifmusthofa354/FamilyTracking/proto"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// A Reconciler folds the hub's event stream into a local roster. Its
// handlers are only ever invoked by the transport's read loop, one
// event at a time; readers take immutable snapshots, so the rendering
// layer can read while updates land.
type Reconciler struct {
	mu     sync.Mutex
	state  State
	roster proto.Roster
	notify chan struct{}
}

func NewReconciler() *Reconciler {
	return &Reconciler{
		roster: proto.Roster{},
		notify: make(chan struct{}, 1),
	}
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Roster returns a snapshot copy of the current roster.
func (r *Reconciler) Roster() proto.Roster {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roster.Clone()
}

// Listing returns the roster snapshot sorted by id.
func (r *Reconciler) Listing() proto.Listing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roster.Listing()
}

// Changed yields a coalesced signal whenever the roster or connection
// state changes. At most one signal is buffered; a reader that drains
// it and takes a fresh snapshot never misses state.
func (r *Reconciler) Changed() <-chan struct{} {
	return r.notify
}

func (r *Reconciler) applyRoster(roster proto.Roster) {
	r.mu.Lock()
	r.roster = roster.Clone()
	r.mu.Unlock()
	r.signal()
}

func (r *Reconciler) applyUpdate(entry proto.RosterEntry) {
	r.mu.Lock()
	// replace-the-whole-value, so an in-flight snapshot never tears
	next := r.roster.Clone()
	next[entry.ID] = entry
	r.roster = next
	r.mu.Unlock()
	r.signal()
}

func (r *Reconciler) applyLeave(id string) {
	r.mu.Lock()
	if _, ok := r.roster[id]; !ok {
		r.mu.Unlock()
		return
	}
	next := r.roster.Clone()
	delete(next, id)
	r.roster = next
	r.mu.Unlock()
	r.signal()
}

// setState records a transport-level transition. On disconnect the
// last-known roster is retained, stale but present, until a fresh
// current-roster arrives after reconnect.
func (r *Reconciler) setState(state State) {
	r.mu.Lock()
	changed := r.state != state
	r.state = state
	r.mu.Unlock()
	if changed {
		r.signal()
	}
}

func (r *Reconciler) signal() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}
