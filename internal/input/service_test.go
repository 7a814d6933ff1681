//file: internal/input/service_test.go

package input

import (
	"context"
	"testing"
	"time"

	"relp-ingest/internal/relp"
)

// newTestService builds a service around an engine with one ephemeral
// listener and a no-op handler.
func newTestService(t *testing.T) *Service {
	t.Helper()
	eng := relp.NewEngine(nil)
	eng.EnableCommand(relp.CmdSyslog, relp.CommandRequired)
	eng.SetReceiveHandler(func(string, string, []byte) error { return nil })

	lsn := eng.NewListener()
	lsn.SetPort("0")
	if err := eng.FinalizeListener(lsn); err != nil {
		t.Fatalf("FinalizeListener() error = %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	return NewService(eng, nil, nil)
}

func TestServiceRunAndStop(t *testing.T) {
	svc := newTestService(t)
	if svc.State() != RunIdle {
		t.Fatalf("State() = %d, want RunIdle", svc.State())
	}

	done := make(chan error, 1)
	go func() { done <- svc.Run(context.Background()) }()

	// Wait for the loop to enter its running state.
	deadline := time.Now().Add(2 * time.Second)
	for svc.State() != RunRunning {
		if time.Now().After(deadline) {
			t.Fatal("run loop never reached RunRunning")
		}
		time.Sleep(5 * time.Millisecond)
	}

	svc.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run loop did not stop")
	}
	if svc.State() != RunStopped {
		t.Errorf("State() = %d, want RunStopped", svc.State())
	}
}

func TestServiceStopBeforeRun(t *testing.T) {
	svc := newTestService(t)

	svc.Stop()
	if svc.State() != RunStopRequested {
		t.Fatalf("State() = %d, want RunStopRequested", svc.State())
	}

	// The loop honors the early stop and returns promptly.
	start := time.Now()
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Run() after early stop did not return promptly")
	}
	if svc.State() != RunStopped {
		t.Errorf("State() = %d, want RunStopped", svc.State())
	}
}

func TestServiceContextCancellationStops(t *testing.T) {
	svc := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for svc.State() != RunRunning {
		if time.Now().After(deadline) {
			t.Fatal("run loop never reached RunRunning")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run loop did not stop on context cancellation")
	}
}

func TestServiceRejectsRunAfterStopped(t *testing.T) {
	svc := newTestService(t)
	svc.Stop()
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if err := svc.Run(context.Background()); err == nil {
		t.Error("Run() after Stopped succeeded, want error")
	}
}

func TestServiceStopIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	svc.Stop()
	svc.Stop()
	svc.Stop()
	if svc.State() != RunStopRequested {
		t.Errorf("State() = %d, want RunStopRequested", svc.State())
	}
}
