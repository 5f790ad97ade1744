// network/connection.go
package network

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// MaxLineLength bounds a single protocol line.
const MaxLineLength = 64 * 1024

var ErrLineTooLong = errors.New("protocol line too long")

// Connection is the transport a session talks through. Implementations must allow
// Send from multiple goroutines while one goroutine reads.
type Connection interface {
	Send(cmd Command) error
	ReadLine() (string, error)
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(timeout time.Duration)
}

// TCPConnection frames commands as newline-terminated lines on a stream socket.
type TCPConnection struct {
	conn      net.Conn
	scanner   *bufio.Scanner
	sendMutex sync.Mutex
	heartbeat atomic.Int64 // time.Duration
}

func NewTCPConnection(conn net.Conn) *TCPConnection {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), MaxLineLength)
	return &TCPConnection{conn: conn, scanner: scanner}
}

func (c *TCPConnection) Send(cmd Command) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if d := time.Duration(c.heartbeat.Load()); d > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(d))
	}
	if _, err := c.conn.Write([]byte(cmd.String() + "\n")); err != nil {
		return fmt.Errorf("write %s: %w", cmd.Code, err)
	}
	return nil
}

func (c *TCPConnection) ReadLine() (string, error) {
	if d := time.Duration(c.heartbeat.Load()); d > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(d))
	}
	if !c.scanner.Scan() {
		err := c.scanner.Err()
		if errors.Is(err, bufio.ErrTooLong) {
			return "", ErrLineTooLong
		}
		if err == nil {
			err = net.ErrClosed
		}
		return "", err
	}
	return c.scanner.Text(), nil
}

// SetHeartbeat makes a read fail when no line arrives within timeout. It may be called
// while other goroutines Send.
func (c *TCPConnection) SetHeartbeat(timeout time.Duration) {
	c.heartbeat.Store(int64(timeout))
}

func (c *TCPConnection) Close() error {
	return c.conn.Close()
}

func (c *TCPConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// WSConnection carries one protocol line per websocket text frame.
type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
	heartbeat atomic.Int64 // time.Duration
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	conn.SetReadLimit(MaxLineLength)
	return &WSConnection{conn: conn}
}

func (c *WSConnection) Send(cmd Command) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if d := time.Duration(c.heartbeat.Load()); d > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(d))
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(cmd.String()))
}

func (c *WSConnection) ReadLine() (string, error) {
	if d := time.Duration(c.heartbeat.Load()); d > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(d))
	}
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if kind != websocket.TextMessage {
			continue
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
}

func (c *WSConnection) SetHeartbeat(timeout time.Duration) {
	c.heartbeat.Store(int64(timeout))
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
