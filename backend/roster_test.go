package backend

import (
	"context"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/alifmusthofa354/FamilyTracking/proto"
)

type session struct {
	sync.Mutex
	id      string
	history []*proto.Packet
}

func newSession(id string) *session { return &session{id: id} }

func (s *session) ID() string { return s.id }

func (s *session) Send(ctx context.Context, packet *proto.Packet) error {
	s.Lock()
	s.history = append(s.history, packet)
	s.Unlock()
	return nil
}

func (s *session) clear() {
	s.Lock()
	s.history = nil
	s.Unlock()
}

func (s *session) packets() []*proto.Packet {
	s.Lock()
	defer s.Unlock()
	return append([]*proto.Packet{}, s.history...)
}

func payloadOf(t *testing.T, packet *proto.Packet) interface{} {
	payload, err := packet.Payload()
	if err != nil {
		t.Fatalf("payload: %s", err)
	}
	return payload
}

func entry(id, name string, lat, lng float64) proto.RosterEntry {
	return proto.RosterEntry{ID: id, Name: name, Lat: lat, Lng: lng}
}

func TestRosterBinding(t *testing.T) {
	ctx := context.Background()
	roster := newMemRoster()

	connA := newSession("conn-a")
	connB := newSession("conn-b")

	Convey("First report binds and snapshots", t, func() {
		So(roster.Report(ctx, connA, entry("u1", "Alice", 1.0, 2.0)), ShouldBeNil)
		So(roster.bound[connA], ShouldEqual, "u1")
		So(roster.live["u1"], ShouldResemble, []Session{connA})

		packets := connA.packets()
		So(packets, ShouldHaveLength, 1)
		So(packets[0].Type, ShouldEqual, proto.CurrentRosterType)
		// the binding snapshot predates the binder's own upsert
		So(payloadOf(t, packets[0]), ShouldResemble, &proto.CurrentRosterEvent{})
	})

	Convey("A late joiner's snapshot carries the earlier reporter", t, func() {
		So(roster.Report(ctx, connB, entry("u2", "Bob", 3.0, 4.0)), ShouldBeNil)

		packets := connB.packets()
		So(packets, ShouldHaveLength, 1)
		So(packets[0].Type, ShouldEqual, proto.CurrentRosterType)
		So(payloadOf(t, packets[0]), ShouldResemble, &proto.CurrentRosterEvent{
			"u1": entry("u1", "Alice", 1.0, 2.0),
		})

		// and the incumbent saw the joiner's update, not a snapshot
		packets = connA.packets()
		So(packets, ShouldHaveLength, 2)
		So(packets[1].Type, ShouldEqual, proto.PositionUpdatedType)
		So(payloadOf(t, packets[1]), ShouldResemble,
			&proto.PositionUpdatedEvent{ID: "u2", Name: "Bob", Lat: 3.0, Lng: 4.0})
	})

	Convey("Disconnect removes the entry and announces user-left", t, func() {
		connA.clear()
		connB.clear()

		So(roster.Part(ctx, connA), ShouldBeNil)
		So(roster.live["u1"], ShouldBeNil)
		listing, err := roster.Listing(ctx)
		So(err, ShouldBeNil)
		So(listing, ShouldResemble, proto.Listing{entry("u2", "Bob", 3.0, 4.0)})

		packets := connB.packets()
		So(packets, ShouldHaveLength, 1)
		So(packets[0].Type, ShouldEqual, proto.UserLeftType)
		left := payloadOf(t, packets[0]).(*proto.UserLeftEvent)
		So(string(*left), ShouldEqual, "u1")
	})

	Convey("Parting an unbound session is a no-op", t, func() {
		connB.clear()
		So(roster.Part(ctx, newSession("conn-c")), ShouldBeNil)
		So(connB.packets(), ShouldBeEmpty)
	})
}

func TestRosterReplayIsAFold(t *testing.T) {
	type op struct {
		conn  *session
		entry proto.RosterEntry // zero ID means part
	}

	connA := newSession("conn-a")
	connB := newSession("conn-b")
	connC := newSession("conn-c")

	ops := []op{
		{connA, entry("u1", "Alice", 1, 1)},
		{connB, entry("u2", "Bob", 2, 2)},
		{connA, entry("u1", "Alice", 1.5, 1.5)},
		{connC, entry("u3", "Cara", 3, 3)},
		{connB, proto.RosterEntry{}},
		{connA, entry("u1", "Alice", 1.6, 1.6)},
	}

	ctx := context.Background()
	roster := newMemRoster()

	// the pure fold: upsert-by-id, delete-by-id, in receipt order
	expected := proto.Roster{}
	bound := map[*session]string{}

	Convey("Replaying a report/part sequence equals the pure fold", t, func() {
		for _, o := range ops {
			if o.entry.ID == "" {
				So(roster.Part(ctx, o.conn), ShouldBeNil)
				delete(expected, bound[o.conn])
				continue
			}
			So(roster.Report(ctx, o.conn, o.entry), ShouldBeNil)
			expected[o.entry.ID] = o.entry
			bound[o.conn] = o.entry.ID
		}

		listing, err := roster.Listing(ctx)
		So(err, ShouldBeNil)
		So(listing, ShouldResemble, expected.Listing())
	})
}

func TestRosterIdempotentReports(t *testing.T) {
	ctx := context.Background()
	roster := newMemRoster()

	reporter := newSession("conn-a")
	observer := newSession("conn-b")

	Convey("Duplicate reports leave the roster unchanged but still broadcast", t, func() {
		So(roster.Report(ctx, observer, entry("u2", "Bob", 0, 0)), ShouldBeNil)
		observer.clear()

		So(roster.Report(ctx, reporter, entry("u1", "Alice", 1, 2)), ShouldBeNil)
		after1, err := roster.Listing(ctx)
		So(err, ShouldBeNil)

		So(roster.Report(ctx, reporter, entry("u1", "Alice", 1, 2)), ShouldBeNil)
		after2, err := roster.Listing(ctx)
		So(err, ShouldBeNil)

		So(after2, ShouldResemble, after1)

		// the duplicate still fans out, so observers converge even if
		// they dropped the first copy
		packets := observer.packets()
		So(packets, ShouldHaveLength, 2)
		So(packets[0].Type, ShouldEqual, proto.PositionUpdatedType)
		So(packets[1].Type, ShouldEqual, proto.PositionUpdatedType)
		So(payloadOf(t, packets[1]), ShouldResemble,
			&proto.PositionUpdatedEvent{ID: "u1", Name: "Alice", Lat: 1, Lng: 2})
	})
}

func TestRosterRebind(t *testing.T) {
	ctx := context.Background()
	roster := newMemRoster()

	conn := newSession("conn-a")
	observer := newSession("conn-b")

	Convey("A report with a new id retires the old entry", t, func() {
		So(roster.Report(ctx, observer, entry("u9", "Obs", 0, 0)), ShouldBeNil)
		So(roster.Report(ctx, conn, entry("u1", "Alice", 1, 2)), ShouldBeNil)
		observer.clear()

		So(roster.Report(ctx, conn, entry("u1b", "Alice", 1, 2)), ShouldBeNil)
		So(roster.bound[conn], ShouldEqual, "u1b")

		listing, err := roster.Listing(ctx)
		So(err, ShouldBeNil)
		So(listing, ShouldResemble, proto.Listing{
			entry("u1b", "Alice", 1, 2),
			entry("u9", "Obs", 0, 0),
		})

		packets := observer.packets()
		So(packets, ShouldHaveLength, 2)
		So(packets[0].Type, ShouldEqual, proto.UserLeftType)
		left := payloadOf(t, packets[0]).(*proto.UserLeftEvent)
		So(string(*left), ShouldEqual, "u1")
		So(packets[1].Type, ShouldEqual, proto.PositionUpdatedType)
	})
}

func TestRosterIdentityConflict(t *testing.T) {
	ctx := context.Background()
	roster := newMemRoster()

	connA := newSession("conn-a")
	connA2 := newSession("conn-a2")
	observer := newSession("conn-b")

	Convey("Two connections may claim one id; last writer wins", t, func() {
		So(roster.Report(ctx, observer, entry("u9", "Obs", 0, 0)), ShouldBeNil)
		So(roster.Report(ctx, connA, entry("u1", "Alice", 1, 1)), ShouldBeNil)
		So(roster.Report(ctx, connA2, entry("u1", "Alice", 2, 2)), ShouldBeNil)

		So(roster.live["u1"], ShouldResemble, []Session{connA, connA2})
		listing, err := roster.Listing(ctx)
		So(err, ShouldBeNil)
		So(listing[0], ShouldResemble, entry("u1", "Alice", 2, 2))
	})

	Convey("The entry survives until the last claimant parts", t, func() {
		So(roster.Part(ctx, connA), ShouldBeNil)
		listing, err := roster.Listing(ctx)
		So(err, ShouldBeNil)
		So(listing, ShouldHaveLength, 2)

		observer.clear()
		So(roster.Part(ctx, connA2), ShouldBeNil)
		listing, err = roster.Listing(ctx)
		So(err, ShouldBeNil)
		So(listing, ShouldResemble, proto.Listing{entry("u9", "Obs", 0, 0)})

		packets := observer.packets()
		So(packets, ShouldHaveLength, 1)
		So(packets[0].Type, ShouldEqual, proto.UserLeftType)
	})
}

func TestRosterRejectsBadReports(t *testing.T) {
	ctx := context.Background()
	roster := newMemRoster()
	conn := newSession("conn-a")

	Convey("Out-of-range coordinates never reach the roster", t, func() {
		err := roster.Report(ctx, conn, entry("u1", "Alice", 91.0, 0))
		So(err, ShouldNotBeNil)

		listing, err := roster.Listing(ctx)
		So(err, ShouldBeNil)
		So(listing, ShouldBeEmpty)
		// a rejected first report must not bind the connection
		So(roster.bound, ShouldBeEmpty)
		So(conn.packets(), ShouldBeEmpty)
	})
}
