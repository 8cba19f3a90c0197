package probe

import (
	"context"
	"fmt"
	"net"
	"time"
	"watchtower/internals/modules/target"
)

// TCPProbe opens and immediately closes a TCP connection. The address must
// carry the port, "host:port".
type TCPProbe struct {
	dialer *net.Dialer
}

func NewTCPProbe() *TCPProbe {
	return &TCPProbe{
		dialer: &net.Dialer{KeepAlive: -1},
	}
}

func (p *TCPProbe) Execute(ctx context.Context, t target.Target) Outcome {
	start := time.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", t.Address)
	latency := time.Since(start)

	if err != nil {
		return Outcome{
			Success: false,
			Latency: latency,
			Detail:  fmt.Sprintf("port %s not reachable", t.Address),
		}
	}
	conn.Close()

	return Outcome{Success: true, Latency: latency}
}
