package proto

import (
	"encoding/json"
	"fmt"
	"reflect"
)

type PacketType string

func (t PacketType) Event() PacketType { return t + "-event" }
func (t PacketType) Reply() PacketType { return t + "-reply" }

var (
	// SendLocationType is the one client-to-hub command: a report of the
	// sender's current position. The first report on a connection also
	// binds that connection to the reported id.
	SendLocationType = PacketType("send-location")

	// CurrentRosterType carries the full roster, keyed by id. It is sent
	// to a connection exactly once when it binds, before any incremental
	// event, and again on periodic resync if the hub has that enabled.
	CurrentRosterType = PacketType("current-roster")

	// PositionUpdatedType announces one user's new position.
	PositionUpdatedType = PacketType("position-updated")

	// UserLeftType announces that a user's last connection closed. Its
	// payload is the bare id string, not an object.
	UserLeftType = PacketType("user-left")

	PingType      = PacketType("ping")
	PingEventType = PingType.Event()
	PingReplyType = PingType.Reply()

	ErrorReplyType = PacketType("error").Reply()

	payloadMap = map[PacketType]reflect.Type{
		SendLocationType: reflect.TypeOf(SendLocationCommand{}),

		CurrentRosterType:   reflect.TypeOf(CurrentRosterEvent{}),
		PositionUpdatedType: reflect.TypeOf(PositionUpdatedEvent{}),
		UserLeftType:        reflect.TypeOf(UserLeftEvent("")),

		PingEventType: reflect.TypeOf(PingEvent{}),
		PingReplyType: reflect.TypeOf(PingReply{}),

		ErrorReplyType: reflect.TypeOf(ErrorReply{}),
	}
)

type ErrorReply struct {
	Error string `json:"error"`
}

// The `send-location` command reports the sender's position to the hub.
// The hub trusts the id carried in the payload: the connection is bound
// to it on the first report, and rebound if a later report carries a
// different id.
type SendLocationCommand RosterEntry

// A `current-roster` event carries the complete roster as a map keyed
// by id. The receiver replaces its local roster wholesale.
type CurrentRosterEvent Roster

// A `position-updated` event carries one roster entry to upsert.
type PositionUpdatedEvent RosterEntry

// A `user-left` event names a user whose roster entry was removed. The
// wire payload is the id itself, as a JSON string.
type UserLeftEvent string

// A `ping-event` is a hub-to-client liveness probe for transports that
// cannot surface websocket control frames. The client should answer
// with a `ping-reply` carrying the same timestamp.
type PingEvent struct {
	UnixTime int64 `json:"time"`
}

// `ping-reply` answers a `ping-event`.
type PingReply struct {
	UnixTime int64 `json:"time,omitempty"`
}

type Packet struct {
	Type  PacketType      `json:"type"`            // the name of the command, reply, or event
	Data  json.RawMessage `json:"data,omitempty"`  // the payload of the command, reply, or event
	Error string          `json:"error,omitempty"` // set in replies when a command is rejected
}

func (p *Packet) Payload() (interface{}, error) {
	if p.Error != "" {
		return &ErrorReply{Error: p.Error}, nil
	}
	payloadType, ok := payloadMap[p.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPacketType, p.Type)
	}
	payload := reflect.New(payloadType).Interface()
	if len(p.Data) > 0 {
		if err := json.Unmarshal(p.Data, payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func (p *Packet) Encode() ([]byte, error) { return json.Marshal(p) }

func MakeEvent(payload interface{}) (*Packet, error) {
	packet := &Packet{}
	switch payload.(type) {
	case *CurrentRosterEvent:
		packet.Type = CurrentRosterType
	case *PositionUpdatedEvent:
		packet.Type = PositionUpdatedType
	case *UserLeftEvent:
		packet.Type = UserLeftType
	case *PingEvent:
		packet.Type = PingEventType
	default:
		return nil, fmt.Errorf("don't know how to make event from %T", payload)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if err := packet.Data.UnmarshalJSON(data); err != nil {
		return nil, err
	}

	return packet, nil
}

func MakeCommand(payload interface{}) (*Packet, error) {
	packet := &Packet{}
	switch payload.(type) {
	case *SendLocationCommand:
		packet.Type = SendLocationType
	case *PingReply:
		packet.Type = PingReplyType
	default:
		return nil, fmt.Errorf("don't know how to make command from %T", payload)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if err := packet.Data.UnmarshalJSON(data); err != nil {
		return nil, err
	}

	return packet, nil
}

// MakeErrorReply wraps a rejection in a packet. The connection stays up;
// repeated rejections are the session's concern.
func MakeErrorReply(err error) *Packet {
	return &Packet{Type: ErrorReplyType, Error: err.Error()}
}

func ParsePacket(data []byte) (*Packet, error) {
	packet := &Packet{}
	if err := json.Unmarshal(data, packet); err != nil {
		return nil, err
	}
	return packet, nil
}
