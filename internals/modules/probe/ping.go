package probe

import (
	"context"
	"os/exec"
	"runtime"
	"time"
	"watchtower/internals/modules/target"
)

// PingProbe shells out to the system ping binary with a single echo request.
// Exit code zero means the host answered.
type PingProbe struct{}

func NewPingProbe() *PingProbe {
	return &PingProbe{}
}

func (p *PingProbe) Execute(ctx context.Context, t target.Target) Outcome {
	countFlag := "-c"
	if runtime.GOOS == "windows" {
		countFlag = "-n"
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, "ping", countFlag, "1", t.Address)
	err := cmd.Run()
	latency := time.Since(start)

	if err != nil {
		detail := "host unreachable (ping failed)"
		if ctx.Err() == context.DeadlineExceeded {
			detail = "ping timed out"
		}
		return Outcome{Success: false, Latency: latency, Detail: detail}
	}

	return Outcome{Success: true, Latency: latency}
}
