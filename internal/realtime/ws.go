package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSChannel adapts a gorilla websocket connection to Channel.
// Writes are serialized; reads belong to the connection handler.
type WSChannel struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewWSChannel wraps conn.
func NewWSChannel(conn *websocket.Conn, writeTimeout time.Duration) *WSChannel {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &WSChannel{
		conn:         conn,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

// Send writes msg as a JSON text frame.
func (c *WSChannel) Send(msg Message) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.markClosed()
		return err
	}
	return nil
}

// Ping writes a control ping frame.
func (c *WSChannel) Ping() error {
	if c.closed.Load() {
		return ErrChannelClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(c.writeTimeout))
	if err != nil {
		c.markClosed()
	}
	return err
}

// Closed reports whether the channel has been closed or has failed a write.
func (c *WSChannel) Closed() bool {
	return c.closed.Load()
}

// Done is closed once the channel stops being writable.
func (c *WSChannel) Done() <-chan struct{} {
	return c.done
}

// Close closes the underlying connection. Safe to call more than once.
func (c *WSChannel) Close() error {
	c.markClosed()
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// Keepalive pings the peer every interval until the channel closes.
func (c *WSChannel) Keepalive(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				return
			}
		}
	}
}

func (c *WSChannel) markClosed() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
	}
}
