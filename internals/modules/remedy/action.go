package remedy

import (
	"context"
	"fmt"
	"os/exec"
	"watchtower/internals/modules/target"
)

// Action is one automated recovery step. Implementations must be idempotent
// and safe to run while the target is already down.
type Action interface {
	Name() string
	Execute(ctx context.Context, t target.Target) error
}

// SystemdRestartAction restarts a systemd unit. Restarting an already-stopped
// unit is a no-op for systemd, which keeps the action idempotent.
type SystemdRestartAction struct {
	name string
	unit string
}

func NewSystemdRestartAction(name, unit string) *SystemdRestartAction {
	return &SystemdRestartAction{name: name, unit: unit}
}

func (a *SystemdRestartAction) Name() string { return a.name }

func (a *SystemdRestartAction) Execute(ctx context.Context, t target.Target) error {
	cmd := exec.CommandContext(ctx, "systemctl", "restart", a.unit)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl restart %s: %w: %s", a.unit, err, string(out))
	}
	return nil
}

// CommandAction runs a configured command. The operator owns making the
// command idempotent.
type CommandAction struct {
	name string
	argv []string
}

func NewCommandAction(name string, argv []string) (*CommandAction, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("action %q: empty command", name)
	}
	return &CommandAction{name: name, argv: argv}, nil
}

func (a *CommandAction) Name() string { return a.name }

func (a *CommandAction) Execute(ctx context.Context, t target.Target) error {
	cmd := exec.CommandContext(ctx, a.argv[0], a.argv[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", a.name, err, string(out))
	}
	return nil
}
