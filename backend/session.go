package backend

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/alifmusthofa354/FamilyTracking/proto"
)

const (
	// MaxProtocolErrors consecutive rejected packets tear the connection
	// down. A single bad report only earns an error reply, to tolerate
	// transient client bugs without ejecting users.
	MaxProtocolErrors = 5

	outgoingQueueSize = 100
)

var (
	KeepAlive = 20 * time.Second

	// MaxKeepAliveMisses unanswered pings reclaim the roster slot of a
	// client that vanished without a clean close.
	MaxKeepAliveMisses = uint32(3)

	ErrUnresponsive          = fmt.Errorf("connection unresponsive")
	ErrTooManyProtocolErrors = fmt.Errorf("too many protocol errors")
	ErrQueueFull             = fmt.Errorf("outgoing queue full")
)

// A memSession serves one websocket connection. Lifecycle:
// Open(unbound) -> Open(bound to an id, on first report) -> Closed.
// Binding is the roster's business; the session only pumps packets.
type memSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   *websocket.Conn
	roster Roster
	id     string

	incoming chan []byte
	outgoing chan *proto.Packet

	outstandingPings uint32
}

func newMemSession(ctx context.Context, conn *websocket.Conn, roster Roster) *memSession {
	id := ulid.Make().String()
	loggingCtx := LoggingContext(ctx, fmt.Sprintf("[%s] ", id))
	cancellableCtx, cancel := context.WithCancel(loggingCtx)

	session := &memSession{
		ctx:    cancellableCtx,
		cancel: cancel,
		conn:   conn,
		roster: roster,
		id:     id,

		incoming: make(chan []byte),
		outgoing: make(chan *proto.Packet, outgoingQueueSize),
	}

	conn.SetPongHandler(session.handlePong)

	return session
}

func (s *memSession) ID() string { return s.id }

func (s *memSession) Close() {
	Logger(s.ctx).Printf("closing session")
	s.cancel()
}

// Send enqueues a packet for delivery. It never blocks: the roster
// holds its lock while fanning out, and one slow consumer must not
// stall the broadcast for everyone else.
func (s *memSession) Send(ctx context.Context, packet *proto.Packet) error {
	select {
	case s.outgoing <- packet:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *memSession) handlePong(string) error {
	atomic.StoreUint32(&s.outstandingPings, 0)
	return nil
}

func (s *memSession) serve() error {
	go s.readMessages()

	logger := Logger(s.ctx)
	logger.Printf("client connected")

	keepalive := time.NewTicker(KeepAlive)
	defer keepalive.Stop()

	protocolErrors := 0

	for {
		select {

		case <-s.ctx.Done():
			// connection forced to close
			return s.ctx.Err()

		case <-keepalive.C:
			if pings := atomic.AddUint32(&s.outstandingPings, 1); pings > MaxKeepAliveMisses {
				logger.Printf("connection timed out")
				return ErrUnresponsive
			}

			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}

			// Mirror the control ping as a packet for transports that
			// hide control frames; either answer resets the miss
			// counter.
			event := proto.PingEvent{UnixTime: time.Now().Unix()}
			packet, err := proto.MakeEvent(&event)
			if err != nil {
				return err
			}
			data, err := packet.Encode()
			if err != nil {
				return err
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}

		case data := <-s.incoming:
			if err := s.handleMessage(data); err != nil {
				logger.Printf("error: handleMessage: %s", err)
				protocolErrorCount.Inc()
				protocolErrors++
				if protocolErrors >= MaxProtocolErrors {
					return ErrTooManyProtocolErrors
				}

				reply, encodeErr := proto.MakeErrorReply(err).Encode()
				if encodeErr != nil {
					return encodeErr
				}
				if err := s.conn.WriteMessage(websocket.TextMessage, reply); err != nil {
					return err
				}
				continue
			}
			protocolErrors = 0

		case packet := <-s.outgoing:
			data, err := packet.Encode()
			if err != nil {
				logger.Printf("error: event encode: %s", err)
				return err
			}

			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Printf("error: write message: %s", err)
				return err
			}
		}
	}
}

func (s *memSession) readMessages() {
	logger := Logger(s.ctx)
	defer s.Close()

	for s.ctx.Err() == nil {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if err == io.EOF || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Printf("client disconnected")
				return
			}
			logger.Printf("error: read message: %s", err)
			return
		}

		switch messageType {
		case websocket.TextMessage:
			select {
			case s.incoming <- data:
			case <-s.ctx.Done():
				return
			}
		default:
			logger.Printf("error: unsupported message type: %v", messageType)
			return
		}
	}
}

// handleMessage parses and applies one inbound packet. Any returned
// error is a protocol error: the packet is rejected but the connection
// survives, up to the serve loop's strike limit.
func (s *memSession) handleMessage(data []byte) error {
	packet, err := proto.ParsePacket(data)
	if err != nil {
		return fmt.Errorf("parse: %s", err)
	}

	payload, err := packet.Payload()
	if err != nil {
		return fmt.Errorf("payload: %s", err)
	}

	switch msg := payload.(type) {
	case *proto.SendLocationCommand:
		return s.roster.Report(s.ctx, s, proto.RosterEntry(*msg))
	case *proto.PingReply:
		atomic.StoreUint32(&s.outstandingPings, 0)
		return nil
	default:
		return fmt.Errorf("packet type %s not implemented", packet.Type)
	}
}
