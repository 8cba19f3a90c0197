package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
auth:
  secret: test-secret
targets:
  - id: router
    kind: host
    address: 192.168.1.1
    check_interval: 30s
`

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Fatalf("want default port 8080, got %d", cfg.Port)
	}
	if cfg.Scheduler.ProbeTimeout != 5*time.Second {
		t.Fatalf("want default probe timeout, got %v", cfg.Scheduler.ProbeTimeout)
	}
	if cfg.Remediation.BackoffBase != 2*time.Second || cfg.Remediation.BackoffMax != time.Minute {
		t.Fatalf("want default backoff, got %+v", cfg.Remediation)
	}

	tgt := cfg.Targets[0]
	if tgt.FailureThreshold != 2 || tgt.SuccessThreshold != 2 {
		t.Fatalf("want default thresholds of 2, got %+v", tgt)
	}
	if tgt.ExpectedStatusLo != 200 || tgt.ExpectedStatusHi != 400 {
		t.Fatalf("want default status range [200,400), got %+v", tgt)
	}
}

func TestLoadConfig_NoTargetsFails(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
auth:
  secret: test-secret
targets: []
`))
	if err == nil || !strings.Contains(err.Error(), "Targets") {
		t.Fatalf("want validation failure on empty targets, got %v", err)
	}
}

func TestLoadConfig_UnknownKindFails(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
auth:
  secret: test-secret
targets:
  - id: router
    kind: database
    address: 192.168.1.1
    check_interval: 30s
`))
	if err == nil || !strings.Contains(err.Error(), "oneof") {
		t.Fatalf("want oneof failure for unknown kind, got %v", err)
	}
}

func TestLoadConfig_UnknownActionNameRefusesStartup(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
auth:
  secret: test-secret
remediation:
  actions:
    restart_nginx:
      type: restart_service
      unit: nginx
targets:
  - id: web
    kind: service
    address: https://example.com
    check_interval: 30s
    actions: [restart_haproxy]
`))
	if err == nil || !strings.Contains(err.Error(), "restart_haproxy") {
		t.Fatalf("want unknown action error, got %v", err)
	}
}

func TestLoadConfig_UnknownByKindActionRefusesStartup(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
auth:
  secret: test-secret
remediation:
  by_kind:
    service: [missing_action]
targets:
  - id: web
    kind: service
    address: https://example.com
    check_interval: 30s
`))
	if err == nil || !strings.Contains(err.Error(), "missing_action") {
		t.Fatalf("want unknown by_kind action error, got %v", err)
	}
}

func TestLoadConfig_DuplicateTargetIDFails(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
auth:
  secret: test-secret
targets:
  - id: router
    kind: host
    address: 192.168.1.1
    check_interval: 30s
  - id: router
    kind: host
    address: 192.168.1.2
    check_interval: 30s
`))
	if err == nil || !strings.Contains(err.Error(), "duplicate target id") {
		t.Fatalf("want duplicate id error, got %v", err)
	}
}

func TestLoadConfig_ActionTypeValidated(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
auth:
  secret: test-secret
remediation:
  actions:
    bad:
      type: reboot_datacenter
targets:
  - id: router
    kind: host
    address: 192.168.1.1
    check_interval: 30s
`))
	if err == nil {
		t.Fatalf("want validation failure for unknown action type")
	}
}
