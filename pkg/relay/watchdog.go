package relay

import (
	"sync"
	"time"

	"github.com/slingshot-arcade/relay/pkg/com"
)

// StallHints are the usual reasons for a connection that never
// creates or joins a session.
var StallHints = []string{
	"peer data channel never opened",
	"ICE negotiation failed (check STUN/TURN servers)",
	"network blocks WebRTC (firewall or VPN)",
	"client-side script errors",
	"no create-session or join-session received",
}

type alarm struct {
	mu sync.Mutex
	t  *time.Timer
}

func (a *alarm) stop() {
	a.mu.Lock()
	if a.t != nil {
		a.t.Stop()
	}
	a.mu.Unlock()
}

// Watchdog calls onStall for connections that stay armed longer than
// their timeout.
type Watchdog struct {
	alarms  *com.Map[com.Uid, *alarm]
	onStall func(*Conn)
}

func NewWatchdog(onStall func(*Conn)) *Watchdog {
	return &Watchdog{alarms: com.NewMap[com.Uid, *alarm](), onStall: onStall}
}

// Arm (re)starts the timer of the connection.
func (w *Watchdog) Arm(c *Conn, timeout time.Duration) {
	id := c.Id()
	a := &alarm{}
	a.mu.Lock()
	defer a.mu.Unlock()
	if old, ok := w.alarms.Pop(id); ok {
		old.stop()
	}
	w.alarms.Put(id, a)
	if c.isGone() {
		w.alarms.RemoveIf(id, func(v *alarm) bool { return v == a })
		return
	}
	a.t = time.AfterFunc(timeout, func() {
		// a disarmed or re-armed alarm must not fire
		if w.alarms.RemoveIf(id, func(v *alarm) bool { return v == a }) && w.onStall != nil {
			w.onStall(c)
		}
	})
}

// Disarm cancels the timer, returns false if there wasn't any.
func (w *Watchdog) Disarm(c *Conn) bool {
	a, ok := w.alarms.Pop(c.Id())
	if ok {
		a.stop()
	}
	return ok
}

func (w *Watchdog) Armed(c *Conn) bool { return w.alarms.Has(c.Id()) }

func (w *Watchdog) Len() int { return w.alarms.Len() }

// Close stops all the timers.
func (w *Watchdog) Close() {
	for _, a := range w.alarms.Drain() {
		a.stop()
	}
}
