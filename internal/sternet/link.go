package sternet

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnState is the lifecycle state of a device link.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateOnline
	StateDraining
)

// String returns a human-readable name for the state.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOnline:
		return "online"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// LinkConfig contains timing settings for a device link.
type LinkConfig struct {
	ReconnectInterval time.Duration // fixed interval between reconnect attempts
	StatusInterval    time.Duration // period of the status-poll timer
	ActivityTimeout   time.Duration // max inbound silence while online
	HandshakeTimeout  time.Duration // websocket dial timeout
	WriteTimeout      time.Duration // per-frame write deadline
}

func (c LinkConfig) withDefaults() LinkConfig {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = 15 * time.Second
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = 20 * time.Second
	}
	if c.ActivityTimeout <= 0 {
		c.ActivityTimeout = 30 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

// EventSink receives link lifecycle notifications. Implemented by Controller.
// Callbacks are invoked from the link's event loop; they must not block.
type EventSink interface {
	// LinkOnline is called on every Disconnected/Connecting -> Online transition.
	LinkOnline()
	// LinkOffline is called on every Online -> Disconnected transition
	// (transport error, close, or activity timeout), never for failed
	// connection attempts.
	LinkOffline()
	// StatusReceived is called for every inbound frame that parses as
	// status telemetry.
	StatusReceived(Status)
}

type linkEventKind int

const (
	evDial linkEventKind = iota
	evDialResult
	evFrame
	evConnError
	evPollTick
	evActivityTimeout
	evSend
)

type linkEvent struct {
	kind  linkEventKind
	gen   uint64
	conn  *websocket.Conn
	err   error
	data  []byte
	frame string
}

const outQueueSize = 16

// Link owns one persistent websocket connection to one downlighter and runs
// its connect/online/monitor/disconnect/reconnect state machine. All state
// transitions happen on a single event-loop goroutine; events for one device
// are processed strictly in arrival order.
type Link struct {
	ident Identity
	url   string
	cfg   LinkConfig
	sink  EventSink

	dialer *websocket.Dialer
	events chan linkEvent

	reconnectTimer scheduledTimer
	pollTimer      scheduledTimer
	activityTimer  scheduledTimer

	state    atomic.Int32
	attempts atomic.Int64

	// loop-owned, never touched outside run()
	conn    *websocket.Conn
	connGen uint64
	outCh   chan string

	ctx      context.Context
	cancel   context.CancelFunc
	draining chan struct{}
	done     chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewLink creates a link for the given device. Start must be called to begin
// connecting.
func NewLink(ident Identity, cfg LinkConfig, sink EventSink) *Link {
	ctx, cancel := context.WithCancel(context.Background())

	return &Link{
		ident: ident,
		url:   ident.SocketURL(),
		cfg:   cfg.withDefaults(),
		sink:  sink,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.withDefaults().HandshakeTimeout,
		},
		events:   make(chan linkEvent, 64),
		ctx:      ctx,
		cancel:   cancel,
		draining: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the event loop and the first connection attempt.
func (l *Link) Start() {
	l.startOnce.Do(func() {
		go l.run()
		l.post(linkEvent{kind: evDial})
	})
}

// State returns the current lifecycle state.
func (l *Link) State() ConnState {
	return ConnState(l.state.Load())
}

// Attempts returns the number of connection attempts made so far.
func (l *Link) Attempts() int64 {
	return l.attempts.Load()
}

// Send transmits a frame if the link is Online. Best effort: when the link
// is not Online, or the outbound queue is full, the frame is dropped - never
// queued for later, never retried. Callers that care about delivery re-send
// after the next online transition.
func (l *Link) Send(frame string) {
	if l.State() != StateOnline {
		return
	}
	l.post(linkEvent{kind: evSend, frame: frame})
}

// Shutdown drains the link: closes the transport and cancels all timers.
// Terminal and idempotent; safe to call even if the link never connected.
// Delivery does not go through the event queue, so shutdown cannot be lost
// to queue pressure.
func (l *Link) Shutdown() {
	l.stopOnce.Do(func() {
		l.cancel()
		l.startOnce.Do(func() {
			// Never started: no loop to deliver the signal to.
			l.state.Store(int32(StateDraining))
			close(l.done)
		})
		close(l.draining)
	})
}

// Done is closed once the event loop has fully drained.
func (l *Link) Done() <-chan struct{} {
	return l.done
}

// post delivers an event to the loop without ever blocking the caller.
// The buffer is far larger than the number of in-flight event sources for
// one device; a full queue means the loop is gone and dropping is correct.
func (l *Link) post(ev linkEvent) {
	select {
	case l.events <- ev:
	default:
	}
}

func (l *Link) run() {
	defer close(l.done)

	for {
		select {
		case <-l.draining:
			l.handleShutdown()
			l.drainPending()
			return
		case ev := <-l.events:
			switch ev.kind {
			case evDial:
				l.handleDial()
			case evDialResult:
				l.handleDialResult(ev)
			case evFrame:
				l.handleFrame(ev)
			case evConnError:
				l.handleConnError(ev)
			case evPollTick:
				l.handlePollTick(ev)
			case evActivityTimeout:
				l.handleActivityTimeout(ev)
			case evSend:
				l.handleSend(ev)
			}
		}
	}
}

// handleDial starts a connection attempt. Re-entrant triggers (a reconnect
// tick racing an explicit dial) are suppressed by the state check.
func (l *Link) handleDial() {
	if l.State() != StateDisconnected {
		return
	}

	l.state.Store(int32(StateConnecting))
	l.connGen++
	l.attempts.Add(1)
	gen := l.connGen

	log.Debug().
		Str("device", l.ident.DisplayName).
		Str("url", l.url).
		Int64("attempt", l.attempts.Load()).
		Msg("Connecting to downlighter")

	go func() {
		conn, resp, err := l.dialer.DialContext(l.ctx, l.url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		l.post(linkEvent{kind: evDialResult, gen: gen, conn: conn, err: err})
	}()
}

func (l *Link) handleDialResult(ev linkEvent) {
	if ev.gen != l.connGen || l.State() != StateConnecting {
		if ev.conn != nil {
			ev.conn.Close()
		}
		return
	}

	if ev.err != nil {
		log.Warn().
			Err(ev.err).
			Str("device", l.ident.DisplayName).
			Dur("retry_in", l.cfg.ReconnectInterval).
			Msg("Connection attempt failed")

		l.state.Store(int32(StateDisconnected))
		l.armReconnect()
		return
	}

	l.becomeOnline(ev.conn)
}

func (l *Link) becomeOnline(conn *websocket.Conn) {
	l.conn = conn
	l.outCh = make(chan string, outQueueSize)
	l.state.Store(int32(StateOnline))
	gen := l.connGen

	l.reconnectTimer.Cancel()
	l.pollTimer.Arm(l.cfg.StatusInterval, func() {
		l.post(linkEvent{kind: evPollTick, gen: gen})
	})
	l.armActivityTimeout(gen)

	go l.writePump(gen, conn, l.outCh)
	go l.readPump(gen, conn)

	log.Info().
		Str("device", l.ident.DisplayName).
		Str("url", l.url).
		Msg("Downlighter online")

	l.sink.LinkOnline()
}

func (l *Link) handleFrame(ev linkEvent) {
	if ev.gen != l.connGen || l.State() != StateOnline {
		return
	}

	// Any inbound traffic counts as liveness, parseable or not.
	l.armActivityTimeout(ev.gen)

	if status, ok := ParseStatus(ev.data); ok {
		l.sink.StatusReceived(status)
		return
	}

	log.Trace().
		Str("device", l.ident.DisplayName).
		Int("len", len(ev.data)).
		Msg("Ignoring non-status frame")
}

func (l *Link) handleConnError(ev linkEvent) {
	if ev.gen != l.connGen || l.State() != StateOnline {
		return
	}

	log.Warn().
		Err(ev.err).
		Str("device", l.ident.DisplayName).
		Msg("Connection lost")

	l.goOffline()
}

func (l *Link) handlePollTick(ev linkEvent) {
	if ev.gen != l.connGen || l.State() != StateOnline {
		return
	}

	l.enqueueFrame(StatusQuery)
	l.pollTimer.Arm(l.cfg.StatusInterval, func() {
		l.post(linkEvent{kind: evPollTick, gen: ev.gen})
	})
}

func (l *Link) handleActivityTimeout(ev linkEvent) {
	if ev.gen != l.connGen || l.State() != StateOnline {
		return
	}

	// A silently-dead connection is indistinguishable from a healthy idle
	// one; force a reconnect cycle.
	log.Warn().
		Str("device", l.ident.DisplayName).
		Dur("timeout", l.cfg.ActivityTimeout).
		Msg("No traffic within activity timeout, recycling connection")

	l.goOffline()
}

func (l *Link) handleSend(ev linkEvent) {
	if l.State() != StateOnline {
		return
	}
	l.enqueueFrame(ev.frame)
}

func (l *Link) enqueueFrame(frame string) {
	select {
	case l.outCh <- frame:
	default:
		log.Warn().
			Str("device", l.ident.DisplayName).
			Msg("Outbound queue full, dropping frame")
	}
}

// goOffline performs the Online -> Disconnected transition: tear down the
// connection, notify the sink, and arm the reconnect timer.
func (l *Link) goOffline() {
	l.pollTimer.Cancel()
	l.activityTimer.Cancel()
	l.teardownConn()

	l.state.Store(int32(StateDisconnected))
	l.sink.LinkOffline()
	l.armReconnect()
}

func (l *Link) handleShutdown() {
	l.reconnectTimer.Cancel()
	l.pollTimer.Cancel()
	l.activityTimer.Cancel()
	l.teardownConn()
	l.state.Store(int32(StateDraining))

	log.Debug().Str("device", l.ident.DisplayName).Msg("Link drained")
}

func (l *Link) teardownConn() {
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
	if l.outCh != nil {
		close(l.outCh)
		l.outCh = nil
	}
}

// drainPending closes any connection that a late dial result may still carry.
func (l *Link) drainPending() {
	for {
		select {
		case ev := <-l.events:
			if ev.conn != nil {
				ev.conn.Close()
			}
		default:
			return
		}
	}
}

func (l *Link) armReconnect() {
	l.reconnectTimer.Arm(l.cfg.ReconnectInterval, func() {
		l.post(linkEvent{kind: evDial})
	})
}

func (l *Link) armActivityTimeout(gen uint64) {
	l.activityTimer.Arm(l.cfg.ActivityTimeout, func() {
		l.post(linkEvent{kind: evActivityTimeout, gen: gen})
	})
}

// readPump delivers inbound frames to the event loop until the connection
// dies. Events are tagged with the connection generation so frames from a
// replaced connection are ignored.
func (l *Link) readPump(gen uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			l.post(linkEvent{kind: evConnError, gen: gen, err: err})
			return
		}
		l.post(linkEvent{kind: evFrame, gen: gen, data: data})
	}
}

// writePump serializes outbound frames onto the connection. A write failure
// is reported like a read failure; both route to the same offline transition.
func (l *Link) writePump(gen uint64, conn *websocket.Conn, out <-chan string) {
	for frame := range out {
		conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			l.post(linkEvent{kind: evConnError, gen: gen, err: err})
			return
		}
	}
}
