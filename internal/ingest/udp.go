package ingest

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/ppiankov/logsink/internal/logtypes"
)

const maxDatagramSize = 64 << 10

// UDPListener receives one entry per datagram.
type UDPListener struct {
	conn    *net.UDPConn
	store   *Store
	metrics *Metrics
}

// NewUDPListener binds the UDP socket. A bind failure is returned to the
// caller; it is the one startup condition that should abort the process.
func NewUDPListener(addr string, store *Store) (*UDPListener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve udp %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("bind udp %s: %w", addr, err)
	}
	return &UDPListener{conn: conn, store: store}, nil
}

// SetMetrics attaches pipeline metrics.
func (l *UDPListener) SetMetrics(m *Metrics) { l.metrics = m }

// Addr returns the bound address.
func (l *UDPListener) Addr() net.Addr { return l.conn.LocalAddr() }

// Run receives datagrams until ctx is cancelled. Each datagram becomes
// one entry; a failed disk append is logged and the loop continues.
func (l *UDPListener) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = l.conn.Close()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, raddr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintf(os.Stderr, "udp read: %v\n", err)
			continue
		}

		entry := logtypes.New(raddr.IP.String(), buf[:n])
		if l.metrics != nil {
			l.metrics.EntriesReceived.WithLabelValues("udp").Inc()
		}
		if err := l.store.Append(entry); err != nil {
			fmt.Fprintf(os.Stderr, "udp append: %v\n", err)
		}
	}
}
