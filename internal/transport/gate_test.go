package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func ready(t *Ticket) bool {
	select {
	case <-t.ready:
		return true
	default:
		return false
	}
}

func TestGate_Unbounded(t *testing.T) {
	g := NewGate(0, nil)
	if g.Limit() != 0 {
		t.Fatalf("Limit = %d, want 0", g.Limit())
	}

	tickets := make([]*Ticket, 10)
	for i := range tickets {
		tickets[i] = g.Reserve()
		if !ready(tickets[i]) {
			t.Fatalf("ticket %d not admitted", i)
		}
	}
	if g.Active() != 10 {
		t.Errorf("Active = %d, want 10", g.Active())
	}
	for _, tk := range tickets {
		tk.Release()
	}
	if g.Active() != 0 {
		t.Errorf("Active after release = %d, want 0", g.Active())
	}

	if l := NewGate(-3, nil).Limit(); l != 0 {
		t.Errorf("Limit for negative = %d, want 0", l)
	}
}

func TestGate_FIFOAdmission(t *testing.T) {
	g := NewGate(2, nil)

	a := g.Reserve()
	b := g.Reserve()
	c := g.Reserve()
	d := g.Reserve()

	if !ready(a) || !ready(b) {
		t.Fatal("first two tickets should be admitted")
	}
	if ready(c) || ready(d) {
		t.Fatal("tickets beyond the limit should wait")
	}
	if g.Waiting() != 2 {
		t.Errorf("Waiting = %d, want 2", g.Waiting())
	}

	b.Release()
	if !ready(c) {
		t.Error("c should be admitted after b is released")
	}
	if ready(d) {
		t.Error("d must not overtake c")
	}

	a.Release()
	if !ready(d) {
		t.Error("d should be admitted after a is released")
	}
	if g.Active() != 2 || g.Waiting() != 0 {
		t.Errorf("Active = %d, Waiting = %d, want 2, 0", g.Active(), g.Waiting())
	}

	c.Release()
	d.Release()
	if g.Active() != 0 {
		t.Errorf("Active = %d, want 0", g.Active())
	}
}

func TestGate_ReleaseTwice(t *testing.T) {
	g := NewGate(1, nil)
	a := g.Reserve()
	b := g.Reserve()

	a.Release()
	a.Release()

	if !ready(b) {
		t.Fatal("b should be admitted")
	}
	if g.Active() != 1 {
		t.Errorf("Active = %d, want 1", g.Active())
	}
}

func TestGate_WaitCancelled(t *testing.T) {
	g := NewGate(1, nil)
	a := g.Reserve()
	b := g.Reserve()
	c := g.Reserve()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait = %v, want context.Canceled", err)
	}
	if g.Waiting() != 1 {
		t.Errorf("Waiting = %d, want 1", g.Waiting())
	}

	a.Release()
	if !ready(c) {
		t.Error("c should take the slot given up by b")
	}
}

func TestGate_WaitAdmitted(t *testing.T) {
	g := NewGate(1, nil)
	a := g.Reserve()
	b := g.Reserve()

	done := make(chan error, 1)
	go func() {
		done <- b.Wait(context.Background())
	}()

	a.Release()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ticket was not admitted")
	}
	b.Release()
	if g.Active() != 0 {
		t.Errorf("Active = %d, want 0", g.Active())
	}
}
