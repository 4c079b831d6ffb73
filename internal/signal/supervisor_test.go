package signal

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hearthchat/hearth/internal/core"
)

type noopSession struct{}

func (noopSession) HandleMessage(any)              {}
func (noopSession) OnOpen(core.SignalSender) error { return nil }
func (noopSession) OnDropped()                     {}

func TestSupervisorRetriesWithFixedDelay(t *testing.T) {
	const delay = 20 * time.Millisecond
	var attempts atomic.Int32

	sup := NewSupervisor("ws://unused", delay)
	sup.SetDialer(func(ctx context.Context, url string) (*Link, error) {
		attempts.Add(1)
		return nil, errors.New("refused")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx, noopSession{})
		close(done)
	}()

	// Within 1.5 delays exactly two attempts fit: the immediate one and
	// the one scheduled after the fixed delay.
	time.Sleep(delay + delay/2)
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2 (one immediate, one after the fixed delay)", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop on cancel")
	}
	if st := sup.State(); st != StateIdle {
		t.Errorf("state after stop = %v, want idle", st)
	}
}

func TestSupervisorStateWhileWaiting(t *testing.T) {
	sup := NewSupervisor("ws://unused", time.Hour)
	sup.SetDialer(func(ctx context.Context, url string) (*Link, error) {
		return nil, errors.New("refused")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx, noopSession{})

	deadline := time.Now().Add(time.Second)
	for sup.State() != StateWaiting {
		if time.Now().After(deadline) {
			t.Fatalf("state = %v, never reached waiting", sup.State())
		}
		time.Sleep(time.Millisecond)
	}
}
