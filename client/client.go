// Package client is the line-mode protocol client: stdin lines go to the server,
// server lines are printed, PING is answered and a dropped connection is resumed.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/wfunc/runeserver/logger"
	"github.com/wfunc/runeserver/network"
)

// ErrShutdown is returned by Run when the server announced STDN.
var ErrShutdown = errors.New("server shut down")

type Client struct {
	addr  string
	in    io.Reader
	out   io.Writer
	token string
	// fresh is the token of the handshake session while a resume is pending.
	fresh string

	// Dial opens the transport; tests replace it.
	Dial func(ctx context.Context, addr string) (net.Conn, error)
	// MaxElapsed bounds one reconnect attempt series.
	MaxElapsed time.Duration
	// InitialInterval is the first reconnect delay.
	InitialInterval time.Duration
}

func New(addr string, in io.Reader, out io.Writer) *Client {
	var d net.Dialer
	return &Client{
		addr:            addr,
		in:              in,
		out:             out,
		Dial:            func(ctx context.Context, addr string) (net.Conn, error) { return d.DialContext(ctx, "tcp", addr) },
		MaxElapsed:      time.Minute,
		InitialInterval: 500 * time.Millisecond,
	}
}

// Token is the resume token of the current server session.
func (c *Client) Token() string {
	return c.token
}

type conn struct {
	net.Conn
	lines     chan string
	err       chan error
	done      chan struct{}
	closeOnce sync.Once
}

// Close also releases the reader goroutine if it is blocked on a full buffer.
func (cn *conn) Close() error {
	cn.closeOnce.Do(func() { close(cn.done) })
	return cn.Conn.Close()
}

func (c *Client) connect(ctx context.Context) (*conn, error) {
	raw, err := c.Dial(ctx, c.addr)
	if err != nil {
		return nil, err
	}
	cn := &conn{Conn: raw, lines: make(chan string, 64), err: make(chan error, 1), done: make(chan struct{})}
	go func() {
		scanner := bufio.NewScanner(raw)
		scanner.Buffer(make([]byte, 0, 4096), network.MaxLineLength)
		for scanner.Scan() {
			select {
			case cn.lines <- scanner.Text():
			case <-cn.done:
				cn.err <- net.ErrClosed
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		cn.err <- err
	}()
	return cn, nil
}

func (c *Client) reconnect(ctx context.Context) (*conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	return backoff.Retry(ctx, func() (*conn, error) {
		return c.connect(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(c.MaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Log.Warnf("Reconnect to %s failed: %v, retrying in %s", c.addr, err, next)
		}),
	)
}

func send(cn *conn, line string) error {
	_, err := cn.Write([]byte(line + "\n"))
	return err
}

// Run relays until ctx is cancelled, stdin ends, EXIT is sent or the server shuts down.
func (c *Client) Run(ctx context.Context) error {
	cn, err := c.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.addr, err)
	}
	defer func() { cn.Close() }()

	input := make(chan string)
	go func() {
		defer close(input)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case input <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	resuming := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-input:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := send(cn, line); err != nil {
				logger.Log.Warnf("Send failed: %v", err)
				continue
			}
			if network.Parse(line).Code == network.CodeExit {
				return nil
			}

		case line := <-cn.lines:
			stop, err := c.handle(cn, line, &resuming)
			if stop {
				return err
			}

		case err := <-cn.err:
			for drained := false; !drained; {
				select {
				case line := <-cn.lines:
					if stop, err := c.handle(cn, line, &resuming); stop {
						return err
					}
				default:
					drained = true
				}
			}
			logger.Log.Warnf("Connection to %s lost: %v", c.addr, err)
			cn.Close()
			next, rerr := c.reconnect(ctx)
			if rerr != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("reconnect %s: %w", c.addr, rerr)
			}
			cn = next
			resuming = c.token != ""
		}
	}
}

// handle reacts to one server line. It reports whether Run must stop.
func (c *Client) handle(cn *conn, line string, resuming *bool) (bool, error) {
	cmd := network.Parse(line)
	switch cmd.Code {
	case network.CodeSession:
		if *resuming {
			c.fresh = cmd.Arg(0)
			if err := send(cn, network.NewCommand(network.CodeReconnect, c.token).String()); err != nil {
				logger.Log.Warnf("Resume failed: %v", err)
			}
			return false, nil
		}
		c.token = cmd.Arg(0)
		return false, nil
	case network.CodePing:
		_ = send(cn, network.OK(cmd).String())
		return false, nil
	case network.CodeShutdown:
		fmt.Fprintln(c.out, line)
		return true, ErrShutdown
	case network.CodeOK:
		if *resuming && cmd.Arg(0) == network.CodeReconnect {
			*resuming = false
			fmt.Fprintln(c.out, "resumed session as", cmd.Arg(2))
			return false, nil
		}
	case network.CodeErr:
		if *resuming {
			*resuming = false
			c.token = c.fresh
			fmt.Fprintln(c.out, "could not resume the previous session, starting fresh")
		}
	}
	fmt.Fprintln(c.out, line)
	return false, nil
}
