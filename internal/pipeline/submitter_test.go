//file: internal/pipeline/submitter_test.go

package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestChannelSubmitterValidation(t *testing.T) {
	if _, err := NewChannelSubmitter(0, OverflowDrop, nil, nil); err == nil {
		t.Error("NewChannelSubmitter accepted zero queue size")
	}
	if _, err := NewChannelSubmitter(10, "reject", nil, nil); err == nil {
		t.Error("NewChannelSubmitter accepted an unknown overflow policy")
	}
}

func TestChannelSubmitterDelivers(t *testing.T) {
	sub, err := NewChannelSubmitter(4, OverflowBlock, nil, nil)
	if err != nil {
		t.Fatalf("NewChannelSubmitter() error = %v", err)
	}

	msg := NewMessage("relp")
	msg.SetRawPayload([]byte("queued event"))
	if err := sub.Submit(msg); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	select {
	case got := <-sub.Messages():
		if string(got.RawPayload) != "queued event" {
			t.Errorf("payload = %q, want %q", got.RawPayload, "queued event")
		}
	case <-time.After(time.Second):
		t.Fatal("message never arrived on the queue")
	}
}

func TestChannelSubmitterDropPolicy(t *testing.T) {
	sub, err := NewChannelSubmitter(1, OverflowDrop, nil, nil)
	if err != nil {
		t.Fatalf("NewChannelSubmitter() error = %v", err)
	}

	// Fill the queue, then overflow it. Submit must not block and must not
	// fail; the overflowing messages are counted instead.
	for i := 0; i < 3; i++ {
		if err := sub.Submit(NewMessage("relp")); err != nil {
			t.Fatalf("Submit() #%d error = %v", i, err)
		}
	}
	if got := sub.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}

func TestChannelSubmitterCloseUnblocksPendingSubmit(t *testing.T) {
	sub, err := NewChannelSubmitter(1, OverflowBlock, nil, nil)
	if err != nil {
		t.Fatalf("NewChannelSubmitter() error = %v", err)
	}

	// Fill the queue so the next Submit parks on the full channel.
	if err := sub.Submit(NewMessage("relp")); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	pending := make(chan error, 1)
	go func() { pending <- sub.Submit(NewMessage("relp")) }()

	// Let the second Submit reach its blocking send before closing.
	time.Sleep(50 * time.Millisecond)
	if err := sub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case err := <-pending:
		if !errors.Is(err, ErrSubmitterClosed) {
			t.Errorf("blocked Submit() error = %v, want ErrSubmitterClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Submit never returned after Close")
	}
}

func TestChannelSubmitterCloseRacesDropSubmits(t *testing.T) {
	sub, err := NewChannelSubmitter(1, OverflowDrop, nil, nil)
	if err != nil {
		t.Fatalf("NewChannelSubmitter() error = %v", err)
	}

	// Hammer Submit from several goroutines while Close lands mid-stream.
	// Every call must end in nil or ErrSubmitterClosed, never a panic.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if err := sub.Submit(NewMessage("relp")); err != nil && !errors.Is(err, ErrSubmitterClosed) {
					t.Errorf("Submit() error = %v", err)
					return
				}
			}
		}()
	}
	time.Sleep(time.Millisecond)
	if err := sub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	wg.Wait()
}

func TestChannelSubmitterClosed(t *testing.T) {
	sub, err := NewChannelSubmitter(1, OverflowDrop, nil, nil)
	if err != nil {
		t.Fatalf("NewChannelSubmitter() error = %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// Close is idempotent.
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if err := sub.Submit(NewMessage("relp")); !errors.Is(err, ErrSubmitterClosed) {
		t.Errorf("Submit() after Close error = %v, want ErrSubmitterClosed", err)
	}
}
