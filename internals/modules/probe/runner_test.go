package probe

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"
	"watchtower/internals/modules/target"
	"watchtower/pkg/apperror"
)

func TestRunner_UnknownKindIsAnError(t *testing.T) {
	r := NewRunner(NewRegistry(&http.Client{}), time.Second)

	_, err := r.Run(context.Background(), target.Target{ID: "x", Kind: "database"})
	if !apperror.IsKind(err, apperror.InvalidInput) {
		t.Fatalf("want invalid-input error for unknown kind, got %v", err)
	}
}

func TestRunner_SurvivesCancelledCaller(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	r := NewRunner(NewRegistry(&http.Client{}), time.Second)

	// probe context is detached from the caller's, an already-cancelled
	// caller must not fail the in-flight check
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := r.Run(ctx, target.Target{ID: "ssh", Kind: target.KindPort, Address: ln.Addr().String()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Success {
		t.Fatalf("want success against live listener, got %+v", res)
	}
}

func TestTCPProbe_PortClosed(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	p := NewTCPProbe()
	out := p.Execute(context.Background(), target.Target{ID: "ssh", Kind: target.KindPort, Address: addr})
	if out.Success {
		t.Fatalf("want failure against closed port, got %+v", out)
	}
	if out.Detail == "" {
		t.Fatalf("want a detail message for the cause summary")
	}
}
