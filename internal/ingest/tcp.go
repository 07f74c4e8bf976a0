package ingest

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/ppiankov/logsink/internal/logtypes"
)

// One bounded read per connection; senders that need framing beyond this
// should use UDP datagrams.
const tcpFrameSize = 4096

// TCPListener receives one entry per accepted connection.
type TCPListener struct {
	ln      net.Listener
	store   *Store
	metrics *Metrics
}

// NewTCPListener binds the TCP socket. A bind failure is returned to the
// caller; it is the one startup condition that should abort the process.
func NewTCPListener(addr string, store *Store) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind tcp %s: %w", addr, err)
	}
	return &TCPListener{ln: ln, store: store}, nil
}

// SetMetrics attaches pipeline metrics.
func (l *TCPListener) SetMetrics(m *Metrics) { l.metrics = m }

// Addr returns the bound address.
func (l *TCPListener) Addr() net.Addr { return l.ln.Addr() }

// Run accepts connections until ctx is cancelled. Each connection is
// handled in its own goroutine, independently of every other unit.
func (l *TCPListener) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintf(os.Stderr, "tcp accept: %v\n", err)
			continue
		}
		go l.handle(conn)
	}
}

func (l *TCPListener) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	if l.metrics != nil {
		l.metrics.ActiveTCPConns.Inc()
		defer l.metrics.ActiveTCPConns.Dec()
	}

	// a Read that returns data alongside EOF still counts as one unit
	buf := make([]byte, tcpFrameSize)
	n, _ := conn.Read(buf)
	if n == 0 {
		return
	}

	entry := logtypes.New(remoteHost(conn.RemoteAddr()), buf[:n])
	if l.metrics != nil {
		l.metrics.EntriesReceived.WithLabelValues("tcp").Inc()
	}
	if err := l.store.Append(entry); err != nil {
		fmt.Fprintf(os.Stderr, "tcp append: %v\n", err)
	}
}

func remoteHost(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
