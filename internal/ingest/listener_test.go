package ingest

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

// waitForRing polls until the ring holds want entries or the deadline hits.
func waitForRing(t *testing.T, store *Store, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.Ring().Len() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ring has %d entries, want %d", store.Ring().Len(), want)
}

func TestUDPListener(t *testing.T) {
	store, _ := newTestStore(t, 10)
	l, err := NewUDPListener("127.0.0.1:0", store)
	if err != nil {
		t.Fatalf("NewUDPListener: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	conn, err := net.Dial("udp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("<13>sshd: session opened\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitForRing(t, store, 1)
	snap := store.Snapshot()
	if snap[0].Message != "<13>sshd: session opened" {
		t.Fatalf("message = %q, want trimmed datagram", snap[0].Message)
	}
	if snap[0].Source != "127.0.0.1" {
		t.Fatalf("source = %q, want sender IP", snap[0].Source)
	}
}

func TestUDPBindFailure(t *testing.T) {
	store, _ := newTestStore(t, 10)
	first, err := NewUDPListener("127.0.0.1:0", store)
	if err != nil {
		t.Fatalf("first bind: %v", err)
	}
	defer first.conn.Close()

	if _, err := NewUDPListener(first.Addr().String(), store); err == nil {
		t.Fatal("second bind on same port succeeded, want error")
	}
}

func TestTCPListener(t *testing.T) {
	store, _ := newTestStore(t, 10)
	l, err := NewTCPListener("127.0.0.1:0", store)
	if err != nil {
		t.Fatalf("NewTCPListener: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte("<13>cron: job done\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.Close()

	waitForRing(t, store, 1)
	snap := store.Snapshot()
	if snap[0].Message != "<13>cron: job done" {
		t.Fatalf("message = %q", snap[0].Message)
	}
	if snap[0].Source != "127.0.0.1" {
		t.Fatalf("source = %q, want host without port", snap[0].Source)
	}
}

func TestTCPEmptyConnectionIgnored(t *testing.T) {
	store, _ := newTestStore(t, 10)
	l, err := NewTCPListener("127.0.0.1:0", store)
	if err != nil {
		t.Fatalf("NewTCPListener: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()

	// a second, real connection proves the accept loop is still alive
	conn2, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial 2: %v", err)
	}
	if _, err := conn2.Write([]byte("after empty conn")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn2.Close()

	waitForRing(t, store, 1)
	snap := store.Snapshot()
	if len(snap) != 1 || snap[0].Message != "after empty conn" {
		t.Fatalf("ring = %+v, want only the non-empty unit", snap)
	}
}

func TestTCPTruncatesLargeUnit(t *testing.T) {
	store, _ := newTestStore(t, 10)
	l, err := NewTCPListener("127.0.0.1:0", store)
	if err != nil {
		t.Fatalf("NewTCPListener: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	big := strings.Repeat("x", tcpFrameSize*3)
	if _, err := conn.Write([]byte(big)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.Close()

	waitForRing(t, store, 1)
	snap := store.Snapshot()
	if len(snap[0].Message) > tcpFrameSize {
		t.Fatalf("message is %d bytes, want at most %d", len(snap[0].Message), tcpFrameSize)
	}
}
