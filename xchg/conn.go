package xchg

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/epic1st/xchg/logging"
)

// pingInterval and expireTimeout mirror the two timers every venue
// connection in this module runs: a keep-alive ping fired every 10s, and
// an inactivity expiration that tears the connection down after 30s
// without receiving any frame (text, binary, ping or pong).
const (
	pingInterval  = 10 * time.Second
	expireTimeout = 30 * time.Second
)

// Parser is the venue-specific behavior a Conn drives: what to send on
// open, and how to turn each received text frame into zero or more
// notifications. Implementations may panic to signal a fatal, unrecoverable
// condition (the sequence-invariant violations in snapshot reconciliation,
// see venue/binance and venue/hitbtc; a failed Binance depth snapshot; a
// GDAX error message) -- the connection goroutine recovers it, logs it,
// and closes the connection.
type Parser interface {
	OnOpen(send func(v interface{}) error) error
	OnMessage(text []byte, out chan<- Notification)
}

// Conn drives one WebSocket connection end to end: dial, subscribe,
// maintain the ping/expire timers, dispatch text frames to the venue
// parser, and deliver notifications on a channel buffered to 256
// notifications. The channel is not unbounded: when the buffer is full,
// the event loop blocks on delivery until the consumer reads. A dropped
// connection is terminal; the framework never retries on its own.
type Conn struct {
	ws        *websocket.Conn
	out       chan Notification
	parser    Parser
	keepAlive bool
	logger    *logging.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// Dial opens a WebSocket connection to url, runs parser.OnOpen once
// connected, and starts the read loop in a new goroutine. keepAlive
// enables the 10s ping timer (GDAX does not use it; Binance and HitBTC
// do). The returned channel is closed when the connection terminates for
// any reason.
func Dial(url string, parser Parser, keepAlive bool, logger *logging.Logger) (*Conn, <-chan Notification, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, nil, err
	}

	c := &Conn{
		ws:        ws,
		out:       make(chan Notification, 256),
		parser:    parser,
		keepAlive: keepAlive,
		logger:    logger,
		done:      make(chan struct{}),
	}

	if err := parser.OnOpen(c.send); err != nil {
		ws.Close()
		return nil, nil, err
	}

	go c.run()

	return c, c.out, nil
}

func (c *Conn) send(v interface{}) error {
	return c.ws.WriteJSON(v)
}

// run is the connection's single-threaded event loop: it owns the ping
// timer, the expire timer, and every call into the venue parser. Any frame
// received resets the expire timer; only text frames reach the parser,
// binary frames are ignored.
func (c *Conn) run() {
	defer c.Close()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()
	if !c.keepAlive {
		pingTicker.Stop()
	}

	expire := time.NewTimer(expireTimeout)
	defer expire.Stop()

	messages := make(chan wsFrame, 1)
	go c.readLoop(messages)

	for {
		select {
		case <-c.done:
			return

		case <-pingTicker.C:
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("websocket ping failed", logging.Component("xchg"), logging.String("error", err.Error()))
				return
			}

		case <-expire.C:
			c.logger.Warn("websocket connection expired after 30s of inactivity", logging.Component("xchg"))
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return

		case frame, ok := <-messages:
			if !ok {
				return
			}
			if !expire.Stop() {
				<-expire.C
			}
			expire.Reset(expireTimeout)

			if frame.err != nil {
				c.logger.Warn("websocket read error", logging.Component("xchg"), logging.String("error", frame.err.Error()))
				return
			}
			if frame.messageType != websocket.TextMessage {
				continue
			}
			c.dispatch(frame.data)
		}
	}
}

type wsFrame struct {
	messageType int
	data        []byte
	err         error
}

func (c *Conn) readLoop(messages chan<- wsFrame) {
	defer close(messages)
	// Ping and pong frames never surface from ReadMessage; report them to
	// run so they reset the expire timer, and keep answering pings.
	control := func(mt int) {
		select {
		case messages <- wsFrame{messageType: mt}:
		case <-c.done:
		}
	}
	c.ws.SetPongHandler(func(string) error { control(websocket.PongMessage); return nil })
	c.ws.SetPingHandler(func(appData string) error {
		control(websocket.PingMessage)
		c.ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
		return nil
	})
	for {
		mt, data, err := c.ws.ReadMessage()
		select {
		case messages <- wsFrame{messageType: mt, data: data, err: err}:
		case <-c.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// dispatch hands a text frame to the venue parser, recovering any panic
// (the parser's only mechanism for signaling a fatal condition) and
// turning it into a logged, terminal close rather than a crashed process.
func (c *Conn) dispatch(text []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("fatal parser error, aborting connection", nil,
				logging.Component("xchg"), logging.Any("panic", r))
			go c.Close()
		}
	}()
	c.parser.OnMessage(text, c.out)
}

// Close tears the connection down and closes the notification channel.
// Safe to call multiple times and from multiple goroutines.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
		close(c.out)
	})
}
