package backend

import (
	"context"
	"sync"
	"time"

	"github.com/alifmusthofa354/FamilyTracking/proto"
)

// A Session is one duplex connection to the hub. Send must not block:
// a session that cannot accept an event right now reports an error and
// the event is dropped for that session only.
type Session interface {
	ID() string
	Send(ctx context.Context, packet *proto.Packet) error
}

// Roster is the authoritative set of currently-visible users. A
// connection binds to an id lazily, on its first report; until then it
// receives no events.
type Roster interface {
	Report(ctx context.Context, session Session, entry proto.RosterEntry) error
	Part(ctx context.Context, session Session) error
	Listing(ctx context.Context) (proto.Listing, error)
}

type memRoster struct {
	sync.Mutex

	entries proto.Roster
	bound   map[Session]string
	live    map[string][]Session
}

func newMemRoster() *memRoster {
	return &memRoster{
		entries: proto.Roster{},
		bound:   map[Session]string{},
		live:    map[string][]Session{},
	}
}

// Report applies one position report. Mutation and fan-out happen as a
// single atomic unit under the roster lock: the binding snapshot for a
// new session, the upsert, and the broadcast cannot interleave with a
// concurrent report from another session.
func (r *memRoster) Report(ctx context.Context, session Session, entry proto.RosterEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	r.Lock()
	defer r.Unlock()

	prev, wasBound := r.bound[session]
	switch {
	case !wasBound:
		// First report on this connection: bind it and send the full
		// roster before the upsert below broadcasts anything, so the
		// joiner's base state precedes every delta it will see.
		r.bind(session, entry.ID)
		r.sendSnapshot(ctx, session)
	case prev != entry.ID:
		// The protocol trusts the client-declared id on every message.
		// A changed id retires the old entry and rebinds.
		r.unbind(ctx, session, prev)
		r.bind(session, entry.ID)
	}

	r.entries[entry.ID] = entry
	reportCount.Inc()
	rosterSize.Set(float64(len(r.entries)))

	event := proto.PositionUpdatedEvent(entry)
	packet, err := proto.MakeEvent(&event)
	if err != nil {
		return err
	}
	r.broadcast(ctx, packet, session)
	return nil
}

// Part releases a session's roster membership. A session that never
// reported holds no membership and parting it is a no-op.
func (r *memRoster) Part(ctx context.Context, session Session) error {
	r.Lock()
	defer r.Unlock()

	id, ok := r.bound[session]
	if !ok {
		return nil
	}
	r.unbind(ctx, session, id)
	rosterSize.Set(float64(len(r.entries)))
	return nil
}

func (r *memRoster) Listing(ctx context.Context) (proto.Listing, error) {
	r.Lock()
	defer r.Unlock()
	return r.entries.Listing(), nil
}

// bind must be called with the roster lock held.
func (r *memRoster) bind(session Session, id string) {
	r.bound[session] = id
	r.live[id] = append(r.live[id], session)
}

// unbind removes session from id's live set and, if that was the last
// connection claiming id, removes the entry and announces the
// departure. Must be called with the roster lock held.
func (r *memRoster) unbind(ctx context.Context, session Session, id string) {
	delete(r.bound, session)
	live := r.live[id]
	for i, s := range live {
		if s == session {
			copy(live[i:], live[i+1:])
			r.live[id] = live[:len(live)-1]
			break
		}
	}
	if len(r.live[id]) == 0 {
		delete(r.live, id)
		delete(r.entries, id)
		event := proto.UserLeftEvent(id)
		if packet, err := proto.MakeEvent(&event); err == nil {
			r.broadcast(ctx, packet, session)
		}
	}
}

// sendSnapshot delivers the current roster to a newly bound session.
// Must be called with the roster lock held, before the binding report's
// own upsert, so the snapshot reflects the roster at the moment of
// binding.
func (r *memRoster) sendSnapshot(ctx context.Context, session Session) {
	event := proto.CurrentRosterEvent(r.entries.Clone())
	packet, err := proto.MakeEvent(&event)
	if err != nil {
		Logger(ctx).Printf("error: snapshot encode: %s", err)
		return
	}
	if err := session.Send(ctx, packet); err != nil {
		Logger(ctx).Printf("error: snapshot to %s dropped: %s", session.ID(), err)
		droppedEventCount.Inc()
	}
}

// broadcast fans a packet out to every bound session. Delivery is
// best-effort: a session whose queue is full loses this event and
// converges on a later update or resync. Must be called with the
// roster lock held.
func (r *memRoster) broadcast(ctx context.Context, packet *proto.Packet, excluding ...Session) {
	excMap := make(map[Session]struct{}, len(excluding))
	for _, x := range excluding {
		excMap[x] = struct{}{}
	}

	for _, sessions := range r.live {
		for _, session := range sessions {
			if _, ok := excMap[session]; ok {
				continue
			}
			if err := session.Send(ctx, packet); err != nil {
				Logger(ctx).Printf("error: broadcast to %s dropped: %s", session.ID(), err)
				droppedEventCount.Inc()
				continue
			}
			broadcastCount.Inc()
		}
	}
}

// ResyncLoop periodically re-sends the full roster to every bound
// session, bounding the staleness a dropped best-effort broadcast can
// leave behind. It returns when ctx is done.
func (r *memRoster) ResyncLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.resync(ctx)
		}
	}
}

func (r *memRoster) resync(ctx context.Context) {
	r.Lock()
	defer r.Unlock()

	event := proto.CurrentRosterEvent(r.entries.Clone())
	packet, err := proto.MakeEvent(&event)
	if err != nil {
		Logger(ctx).Printf("error: resync encode: %s", err)
		return
	}
	r.broadcast(ctx, packet)
}
