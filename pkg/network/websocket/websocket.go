package websocket

import (
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/slingshot-arcade/relay/pkg/logger"
)

const (
	maxMessageSize  = 10 * 1024
	pingTime        = pongTime * 9 / 10
	pongTime        = 60 * time.Second
	writeWait       = 10 * time.Second
	queueSize       = 128
	reliableReserve = 32 // the tail of the queue only Write can fill
)

var (
	ErrClosed    = errors.New("socket is closed")
	ErrQueueFull = errors.New("socket send queue is full")
)

// Connection is a websocket with serialized reads and writes.
// Writes never block, they are queued and fail when the queue is full.
// Lossy writes leave the last reliableReserve slots of the queue to Write.
type Connection struct {
	conn *websocket.Conn
	send chan []byte
	log  *logger.Logger

	// OnMessage is called from the reader goroutine, set it before Listen.
	OnMessage func(message []byte)

	pingPong bool

	listening atomic.Bool
	once      sync.Once
	done      chan struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	WriteBufferPool: &sync.Pool{},
}

// NewServer upgrades an HTTP request into a websocket.
// When origin is not empty, only that origin is allowed to connect.
func NewServer(w http.ResponseWriter, r *http.Request, origin string, log *logger.Logger) (*Connection, error) {
	u := upgrader
	if origin != "" {
		u.CheckOrigin = func(r *http.Request) bool { return r.Header.Get("Origin") == origin }
	} else {
		u.CheckOrigin = func(*http.Request) bool { return true }
	}
	conn, err := u.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, true, log), nil
}

func NewClient(address url.URL, log *logger.Logger) (*Connection, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log), nil
}

func newSocket(conn *websocket.Conn, pingPong bool, log *logger.Logger) *Connection {
	return &Connection{
		conn:     conn,
		send:     make(chan []byte, queueSize),
		log:      log,
		pingPong: pingPong,
		done:     make(chan struct{}),
	}
}

// Listen starts the read and write pumps.
func (c *Connection) Listen() {
	c.listening.Store(true)
	go c.writer()
	go c.reader()
}

// reader pumps messages from the websocket connection to the OnMessage callback.
func (c *Connection) reader() {
	defer c.Close()
	c.conn.SetReadLimit(maxMessageSize)
	if c.pingPong {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongTime))
		c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongTime)) })
	}
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("WebSocket read")
			}
			return
		}
		if c.OnMessage != nil {
			c.OnMessage(message)
		}
	}
}

// writer pumps messages from the send queue to the websocket connection.
func (c *Connection) writer() {
	var tick <-chan time.Time
	if c.pingPong {
		ticker := time.NewTicker(pingTime)
		defer ticker.Stop()
		tick = ticker.C
	}
	// closing the socket here unblocks the reader
	defer func() {
		c.Close()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.log.Debug().Err(err).Msg("WebSocket write")
				return
			}
		case <-tick:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

func (c *Connection) write(t int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(t, data)
}

// Write queues the message for sending.
func (c *Connection) Write(data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// WriteLossy queues data only while the queue is below the part
// reserved for Write, otherwise it returns ErrQueueFull.
func (c *Connection) WriteLossy(data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if len(c.send) >= cap(c.send)-reliableReserve {
		return ErrQueueFull
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the pumps and closes the socket, it's safe to call it many times.
func (c *Connection) Close() {
	c.once.Do(func() {
		close(c.done)
		if !c.listening.Load() {
			_ = c.conn.Close()
		}
	})
}

// Done is closed when the socket is closed.
func (c *Connection) Done() <-chan struct{} { return c.done }

func (c *Connection) RemoteAddr() string { return c.conn.RemoteAddr().String() }
