// Package endpoint implements the duplex binary framing link to the
// hardware endpoint described in spec.md §4.7: a persistent TCP stream
// carrying telemetry frames one way and dispatch frames the other, with
// frame-level resynchronization and exponential-backoff reconnect.
//
// Grounded on the gossip package's member-liveness concurrency shape
// (background receive loop, periodic cycle, mutex-guarded state) adapted
// from UDP probing to a reconnecting TCP stream.
package endpoint

import (
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gridctl/gridctl/internal/domain"
	"github.com/gridctl/gridctl/internal/wire"
)

// Backoff parameters from spec.md §4.7.
const (
	backoffBase   = 250 * time.Millisecond
	backoffMax    = 5 * time.Second
	backoffJitter = 0.20
)

// readBufSize is generous headroom over the largest possible telemetry
// frame (9 + 16*10 = 169 bytes).
const readBufSize = 4096

// Link owns one reconnecting TCP connection to the hardware endpoint. The
// latest decoded telemetry frame is kept in a single-slot cell (last write
// wins); the tick loop drains it non-blockingly once per tick.
type Link struct {
	addr string

	mu          sync.Mutex
	conn        net.Conn
	down        atomic.Bool
	onBad       func(error)
	onReconnect func()

	latest atomic.Pointer[domain.TelemetryFrame]
}

// New creates a Link that dials addr. Call Run in a goroutine to start the
// reconnect-and-read loop.
func New(addr string) *Link {
	l := &Link{addr: addr}
	l.down.Store(true)
	return l
}

// OnBadFrame registers a callback invoked once per dropped malformed
// frame, used to drive the bad-frame counter and rate-limited logging.
func (l *Link) OnBadFrame(fn func(error)) { l.onBad = fn }

// OnReconnect registers a callback invoked each time a new connection is
// successfully dialed, used to drive the reconnect counter.
func (l *Link) OnReconnect(fn func()) { l.onReconnect = fn }

// Down reports whether the link is currently disconnected.
func (l *Link) Down() bool { return l.down.Load() }

// Latest returns the most recently decoded telemetry frame, if any has
// arrived since the last call, and clears the slot — "drop older unread
// frames, latest wins" per spec.md §4.6 step 1.
func (l *Link) Latest() (domain.TelemetryFrame, bool) {
	p := l.latest.Swap(nil)
	if p == nil {
		return domain.TelemetryFrame{}, false
	}
	return *p, true
}

// Send writes one dispatch frame atomically. Returns an error (and marks
// the link down) if no connection is currently established or the write
// fails; the tick loop treats this as "computed but not transmitted".
func (l *Link) Send(f domain.DispatchFrame) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()

	if conn == nil {
		return domain.ErrLinkDown
	}

	buf := make([]byte, wire.EncodedDispatchSize(len(f.Entries)))
	n, err := wire.EncodeDispatch(buf, f)
	if err != nil {
		return err
	}
	_, err = conn.Write(buf[:n])
	if err != nil {
		l.markDown()
	}
	return err
}

// Run dials, reads, and reconnects until stop is closed.
func (l *Link) Run(stop <-chan struct{}) {
	attempt := 0
	for {
		select {
		case <-stop:
			l.closeConn()
			return
		default:
		}

		conn, err := net.Dial("tcp", l.addr)
		if err != nil {
			l.markDown()
			if !sleepBackoff(attempt, stop) {
				return
			}
			attempt++
			continue
		}

		attempt = 0
		l.mu.Lock()
		l.conn = conn
		l.mu.Unlock()
		l.down.Store(false)
		if l.onReconnect != nil {
			l.onReconnect()
		}

		l.readLoop(conn, stop)

		l.markDown()
		if !sleepBackoff(0, stop) {
			return
		}
	}
}

func (l *Link) readLoop(conn net.Conn, stop <-chan struct{}) {
	buf := make([]byte, 0, readBufSize)
	chunk := make([]byte, readBufSize)

	for {
		select {
		case <-stop:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(time.Second))
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			buf = l.drainFrames(buf)
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
	}
}

// drainFrames decodes as many complete telemetry frames as are available
// in buf, publishing each, and returns the unconsumed remainder. On a bad
// frame it resynchronizes to the next magic rather than discarding the
// whole buffer.
func (l *Link) drainFrames(buf []byte) []byte {
	for {
		if len(buf) == 0 {
			return buf
		}
		frame, n, err := wire.DecodeTelemetry(buf)
		if err == nil {
			l.latest.Store(&frame)
			buf = buf[n:]
			continue
		}
		if err == domain.ErrTruncatedFrame {
			return buf // incomplete frame; wait for more bytes
		}
		if l.onBad != nil {
			l.onBad(err)
		}
		offset, _, found := wire.FindEitherMagic(buf[1:])
		if !found {
			return nil // no recoverable magic yet; discard and wait for more
		}
		buf = buf[1+offset:]
	}
}

func (l *Link) markDown() {
	l.down.Store(true)
	l.mu.Lock()
	l.conn = nil
	l.mu.Unlock()
}

func (l *Link) closeConn() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
}

// sleepBackoff waits the exponential-backoff delay for the given attempt
// number, or returns false immediately if stop fires first.
func sleepBackoff(attempt int, stop <-chan struct{}) bool {
	delay := backoffBase << attempt
	if delay > backoffMax || delay <= 0 {
		delay = backoffMax
	}
	jitter := 1 + (rand.Float64()*2-1)*backoffJitter
	d := time.Duration(float64(delay) * jitter)

	select {
	case <-time.After(d):
		return true
	case <-stop:
		return false
	}
}

