package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
	"watchtower/internals/modules/target"
)

// HTTPProbe issues a GET and judges the response against the target's
// expected status range.
type HTTPProbe struct {
	client *http.Client
}

func NewHTTPProbe(client *http.Client) *HTTPProbe {
	return &HTTPProbe{client: client}
}

func (p *HTTPProbe) Execute(ctx context.Context, t target.Target) Outcome {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Address, nil)
	if err != nil {
		// malformed target URL, validated at registration, so this is rare
		return Outcome{Success: false, Latency: time.Since(start), Detail: "invalid request: " + err.Error()}
	}

	resp, err := p.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Outcome{Success: false, Latency: latency, Detail: classifyError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < t.ExpectedStatusLo || resp.StatusCode >= t.ExpectedStatusHi {
		return Outcome{
			Success: false,
			Latency: latency,
			Detail:  fmt.Sprintf("http service error: status %d", resp.StatusCode),
		}
	}

	return Outcome{Success: true, Latency: latency}
}

func classifyError(err error) string {

	if errors.Is(err, context.DeadlineExceeded) {
		return "TIMEOUT"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "DNS_FAILURE"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "NETWORK_TIMEOUT"
		}
		return "NETWORK_ERROR"
	}

	return "UNKNOWN_ERROR"
}
