package client

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alifmusthofa354/FamilyTracking/proto"
)

var ErrNotConnected = fmt.Errorf("not connected")

type ConnConfig struct {
	// URL of the hub's websocket endpoint, e.g. ws://host:8080/ws.
	URL string

	// ReconnectDelay between attempts after a failed dial or a dropped
	// connection. Zero means DefaultReconnectDelay.
	ReconnectDelay time.Duration

	// WriteTimeout bounds each outbound write. Zero means
	// DefaultWriteTimeout.
	WriteTimeout time.Duration

	// Dialer overrides the websocket dialer, mainly for tests.
	Dialer *websocket.Dialer

	// Logger for transport-level events. Defaults to stdout.
	Logger *log.Logger
}

const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
)

// A Conn is an explicitly owned connection to the hub. It dials in the
// background, feeds decoded events to its Reconciler, and redials with
// a fixed delay after any drop. Publishing while disconnected nudges
// the redial loop instead of failing silently; concurrent nudges
// collapse into a single attempt.
type Conn struct {
	ctx    context.Context
	cancel context.CancelFunc

	config ConnConfig
	rec    *Reconciler
	logger *log.Logger

	mu sync.Mutex // guards ws
	ws *websocket.Conn

	wmu sync.Mutex // serializes writes to ws

	kick chan struct{}
	done chan struct{}

	closeOnce sync.Once
}

// Dial starts a connection. The returned Conn is usable immediately;
// publishes before the first successful dial return ErrNotConnected
// and the roster fills in once connected.
func Dial(ctx context.Context, config ConnConfig, rec *Reconciler) *Conn {
	if config.ReconnectDelay == 0 {
		config.ReconnectDelay = DefaultReconnectDelay
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[conn] ", log.LstdFlags)
	}

	connCtx, cancel := context.WithCancel(ctx)
	c := &Conn{
		ctx:    connCtx,
		cancel: cancel,
		config: config,
		rec:    rec,
		logger: logger,
		kick:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Conn) dialer() *websocket.Dialer {
	if c.config.Dialer != nil {
		return c.config.Dialer
	}
	return websocket.DefaultDialer
}

func (c *Conn) run() {
	defer close(c.done)
	defer c.rec.setState(StateDisconnected)

	for {
		c.rec.setState(StateConnecting)
		ws, _, err := c.dialer().DialContext(c.ctx, c.config.URL, nil)
		// Kicks that raced in while this attempt was in flight are
		// satisfied by it; absorb them so they don't trigger another.
		select {
		case <-c.kick:
		default:
		}
		if err != nil {
			c.logger.Printf("dial %s: %s", c.config.URL, err)
			c.rec.setState(StateDisconnected)
			if !c.waitRetry() {
				return
			}
			continue
		}

		c.mu.Lock()
		c.ws = ws
		c.mu.Unlock()
		c.rec.setState(StateConnected)

		c.readLoop(ws)

		c.mu.Lock()
		c.ws = nil
		c.mu.Unlock()
		ws.Close()
		c.rec.setState(StateDisconnected)

		if !c.waitRetry() {
			return
		}
	}
}

// waitRetry sleeps out the reconnect delay. A pending kick from
// Publish short-circuits the wait; the buffered channel of size one is
// what de-duplicates racing publish-while-disconnected attempts.
func (c *Conn) waitRetry() bool {
	select {
	case <-c.ctx.Done():
		return false
	case <-c.kick:
		return true
	case <-time.After(c.config.ReconnectDelay):
		return true
	}
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	// unblock the read when the conn is closed under us
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-c.ctx.Done():
			ws.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Printf("read: %s", err)
			}
			return
		}
		c.dispatch(data)
	}
}

// dispatch decodes one packet and applies it to the reconciler. Events
// are applied here, serially, which is the client's whole concurrency
// contract for remote state.
func (c *Conn) dispatch(data []byte) {
	packet, err := proto.ParsePacket(data)
	if err != nil {
		c.logger.Printf("parse: %s", err)
		return
	}
	payload, err := packet.Payload()
	if err != nil {
		c.logger.Printf("payload: %s", err)
		return
	}

	switch event := payload.(type) {
	case *proto.CurrentRosterEvent:
		c.rec.applyRoster(proto.Roster(*event))
	case *proto.PositionUpdatedEvent:
		c.rec.applyUpdate(proto.RosterEntry(*event))
	case *proto.UserLeftEvent:
		c.rec.applyLeave(string(*event))
	case *proto.PingEvent:
		if err := c.sendPacket(&proto.PingReply{UnixTime: event.UnixTime}, proto.MakeCommand); err != nil {
			c.logger.Printf("ping reply: %s", err)
		}
	case *proto.ErrorReply:
		c.logger.Printf("hub rejected packet: %s", event.Error)
	default:
		c.logger.Printf("unexpected packet type: %s", packet.Type)
	}
}

// Publish reports the local position. When the transport is down it
// kicks the reconnect loop (at most one attempt in flight) and returns
// ErrNotConnected; the caller's next tick retries naturally.
func (c *Conn) Publish(entry proto.RosterEntry) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		select {
		case c.kick <- struct{}{}:
		default:
		}
		return ErrNotConnected
	}

	cmd := proto.SendLocationCommand(entry)
	return c.sendPacket(&cmd, proto.MakeCommand)
}

func (c *Conn) sendPacket(payload interface{}, wrap func(interface{}) (*proto.Packet, error)) error {
	packet, err := wrap(payload)
	if err != nil {
		return err
	}
	data, err := packet.Encode()
	if err != nil {
		return err
	}

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return ws.WriteMessage(websocket.TextMessage, data)
}

// Close tears the connection down and waits for the background loop to
// exit. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		if c.ws != nil {
			c.ws.Close()
		}
		c.mu.Unlock()
	})
	<-c.done
}
