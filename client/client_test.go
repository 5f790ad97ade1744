package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeServer hands out one scripted net.Pipe per dial.
type fakeServer struct {
	mu      sync.Mutex
	scripts []func(t *testing.T, conn net.Conn, r *bufio.Reader)
	dials   int
	t       *testing.T
}

func (f *fakeServer) Dial(_ context.Context, _ string) (net.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dials >= len(f.scripts) {
		return nil, errors.New("no more connections")
	}
	script := f.scripts[f.dials]
	f.dials++
	server, client := net.Pipe()
	go func() {
		defer server.Close()
		script(f.t, server, bufio.NewReader(server))
	}()
	return client, nil
}

func writeLine(t *testing.T, conn net.Conn, line string) {
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		t.Errorf("server write %q: %v", line, err)
	}
}

func readLine(t *testing.T, r *bufio.Reader, want string) {
	line, err := r.ReadString('\n')
	if err != nil {
		t.Errorf("server read: %v", err)
		return
	}
	if got := strings.TrimRight(line, "\n"); got != want {
		t.Errorf("server expected %q, got %q", want, got)
	}
}

func runClient(t *testing.T, f *fakeServer, in io.Reader) (*Client, *bytes.Buffer, error) {
	t.Helper()
	var out bytes.Buffer
	c := New("rune.test:7777", in, &out)
	c.Dial = f.Dial
	c.InitialInterval = time.Millisecond
	c.MaxElapsed = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.Run(ctx)
	return c, &out, err
}

func TestClient_RelaysAndAnswersPing(t *testing.T) {
	stdin, stdinW := io.Pipe()
	defer stdinW.Close()

	f := &fakeServer{t: t}
	f.scripts = append(f.scripts, func(t *testing.T, conn net.Conn, r *bufio.Reader) {
		writeLine(t, conn, "SESS$tok1")
		writeLine(t, conn, "PING$")
		readLine(t, r, "OK$PING")

		go func() { _, _ = stdinW.Write([]byte("RGST$alice\n")) }()
		readLine(t, r, "RGST$alice")
		writeLine(t, conn, "OK$RGST$alice$alice")
		writeLine(t, conn, "STDN$")
	})

	c, out, err := runClient(t, f, stdin)
	if !errors.Is(err, ErrShutdown) {
		t.Fatalf("expected ErrShutdown, got %v", err)
	}
	if c.Token() != "tok1" {
		t.Errorf("expected token tok1, got %q", c.Token())
	}
	if !strings.Contains(out.String(), "OK$RGST$alice$alice\n") {
		t.Errorf("server lines should be printed, got %q", out.String())
	}
	if strings.Contains(out.String(), "PING") {
		t.Errorf("PING should be answered silently, got %q", out.String())
	}
}

func TestClient_ResumesAfterDrop(t *testing.T) {
	stdin, stdinW := io.Pipe()
	defer stdinW.Close()

	f := &fakeServer{t: t}
	f.scripts = append(f.scripts,
		func(t *testing.T, conn net.Conn, r *bufio.Reader) {
			writeLine(t, conn, "SESS$tok1")
		},
		func(t *testing.T, conn net.Conn, r *bufio.Reader) {
			writeLine(t, conn, "SESS$tok2")
			readLine(t, r, "RCON$tok1")
			writeLine(t, conn, "OK$RCON$tok1$alice$den")
			writeLine(t, conn, "STDN$")
		},
	)

	c, out, err := runClient(t, f, stdin)
	if !errors.Is(err, ErrShutdown) {
		t.Fatalf("expected ErrShutdown, got %v", err)
	}
	if c.Token() != "tok1" {
		t.Errorf("a resumed client keeps its token, got %q", c.Token())
	}
	if !strings.Contains(out.String(), "resumed session as alice") {
		t.Errorf("expected resume notice, got %q", out.String())
	}
}

func TestClient_ResumeRejected(t *testing.T) {
	stdin, stdinW := io.Pipe()
	defer stdinW.Close()

	f := &fakeServer{t: t}
	f.scripts = append(f.scripts,
		func(t *testing.T, conn net.Conn, r *bufio.Reader) {
			writeLine(t, conn, "SESS$tok1")
		},
		func(t *testing.T, conn net.Conn, r *bufio.Reader) {
			writeLine(t, conn, "SESS$tok2")
			readLine(t, r, "RCON$tok1")
			writeLine(t, conn, "ERR$104$UNKNOWN_SESSION")
			writeLine(t, conn, "STDN$")
		},
	)

	c, _, err := runClient(t, f, stdin)
	if !errors.Is(err, ErrShutdown) {
		t.Fatalf("expected ErrShutdown, got %v", err)
	}
	if c.Token() != "tok2" {
		t.Errorf("a rejected resume adopts the fresh token, got %q", c.Token())
	}
}

func TestClient_ExitStops(t *testing.T) {
	f := &fakeServer{t: t}
	got := make(chan string, 1)
	f.scripts = append(f.scripts, func(t *testing.T, conn net.Conn, r *bufio.Reader) {
		writeLine(t, conn, "SESS$tok1")
		line, _ := r.ReadString('\n')
		got <- strings.TrimRight(line, "\n")
	})

	_, _, err := runClient(t, f, strings.NewReader("EXIT\n"))
	if err != nil {
		t.Fatalf("EXIT should end Run cleanly, got %v", err)
	}
	select {
	case line := <-got:
		if line != "EXIT" {
			t.Errorf("expected EXIT on the wire, got %q", line)
		}
	case <-time.After(time.Second):
		t.Fatal("server never saw EXIT")
	}
}

func TestClient_GivesUpWhenServerGone(t *testing.T) {
	stdin, stdinW := io.Pipe()
	defer stdinW.Close()

	f := &fakeServer{t: t}
	f.scripts = append(f.scripts, func(t *testing.T, conn net.Conn, r *bufio.Reader) {
		writeLine(t, conn, "SESS$tok1")
	})

	_, _, err := runClient(t, f, stdin)
	if err == nil || errors.Is(err, ErrShutdown) {
		t.Fatalf("expected a reconnect error, got %v", err)
	}
}

func TestConn_CloseReleasesBlockedReader(t *testing.T) {
	server, clientSide := net.Pipe()
	defer server.Close()

	c := New("rune.test:7777", strings.NewReader(""), io.Discard)
	c.Dial = func(context.Context, string) (net.Conn, error) { return clientSide, nil }
	cn, err := c.connect(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		for i := 0; i < cap(cn.lines)+10; i++ {
			if _, err := server.Write([]byte("PING$\n")); err != nil {
				return
			}
		}
	}()
	deadline := time.Now().Add(2 * time.Second)
	for len(cn.lines) < cap(cn.lines) {
		if time.Now().After(deadline) {
			t.Fatal("line buffer never filled")
		}
		time.Sleep(time.Millisecond)
	}

	cn.Close()
	select {
	case <-cn.err:
	case <-time.After(2 * time.Second):
		t.Fatal("reader goroutine still blocked after Close")
	}
}
