package websocket

import (
	"errors"
	"sync"

	"github.com/slingshot-arcade/relay/pkg/com"
	"github.com/slingshot-arcade/relay/pkg/logger"
)

// Transport uses the socket itself for both delivery qualities.
// Unreliable messages are dropped when the send queue is getting full.
// A reliable message that doesn't fit closes the socket, so that
// the loss turns into a disconnect.
type Transport struct {
	id   com.Uid
	conn *Connection

	mu    sync.Mutex
	onDc  func()
	fired bool
}

// NewTransport wraps the socket, it should be used before Listen.
func NewTransport(conn *Connection) *Transport {
	t := &Transport{id: com.NewUid(), conn: conn}
	go func() {
		<-conn.Done()
		t.disconnect()
	}()
	return t
}

func (t *Transport) Id() com.Uid { return t.id }

func (t *Transport) SendReliable(data []byte) error {
	err := t.conn.Write(data)
	if errors.Is(err, ErrQueueFull) {
		t.conn.log.Warn().Str(logger.ClientField, t.id.Short()).Msg("Reliable send queue overflow, closing")
		t.conn.Close()
	}
	return err
}

func (t *Transport) SendUnreliable(data []byte) error {
	if err := t.conn.WriteLossy(data); !errors.Is(err, ErrQueueFull) {
		return err
	}
	return nil
}

func (t *Transport) OnMessage(fn func(data []byte)) { t.conn.OnMessage = fn }

func (t *Transport) OnDisconnect(fn func()) {
	t.mu.Lock()
	fired := t.fired
	if !fired {
		t.onDc = fn
	}
	t.mu.Unlock()
	if fired {
		fn()
	}
}

func (t *Transport) Close() error { t.conn.Close(); return nil }

func (t *Transport) disconnect() {
	t.mu.Lock()
	if t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	fn := t.onDc
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}
