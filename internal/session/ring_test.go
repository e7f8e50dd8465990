package session

import (
	"context"
	"testing"
	"time"
)

func TestRingFIFOOrdering(t *testing.T) {
	r := NewRing(4)
	ctx := context.Background()

	frames := []ConnectFrame{
		{RequestPath: "a"},
		{RequestPath: "b"},
		{RequestPath: "c"},
	}
	for _, f := range frames {
		if !r.Enqueue(ctx, f) {
			t.Fatalf("Enqueue(%v) returned false", f)
		}
	}
	for _, want := range frames {
		got, ok := r.Dequeue(ctx)
		if !ok {
			t.Fatal("Dequeue returned false unexpectedly")
		}
		if got != want {
			t.Fatalf("Dequeue = %+v; want %+v", got, want)
		}
	}
}

func TestRingEnqueueBlocksWhenFull(t *testing.T) {
	r := NewRing(1)
	ctx := context.Background()
	if !r.Enqueue(ctx, ConnectFrame{RequestPath: "a"}) {
		t.Fatal("first Enqueue should not block")
	}

	done := make(chan bool, 1)
	go func() {
		done <- r.Enqueue(ctx, ConnectFrame{RequestPath: "b"})
	}()

	select {
	case <-done:
		t.Fatal("second Enqueue on a full ring of capacity 1 returned before a slot freed")
	case <-time.After(50 * time.Millisecond):
	}

	if _, ok := r.Dequeue(ctx); !ok {
		t.Fatal("Dequeue failed")
	}

	select {
	case ok := <-done:
		if !ok {
			t.Fatal("Enqueue returned false after a slot freed")
		}
	case <-time.After(time.Second):
		t.Fatal("Enqueue never unblocked after a slot freed")
	}
}

func TestRingEnqueueRespectsContextCancellation(t *testing.T) {
	r := NewRing(1)
	bg := context.Background()
	if !r.Enqueue(bg, ConnectFrame{RequestPath: "a"}) {
		t.Fatal("first Enqueue should not block")
	}

	ctx, cancel := context.WithCancel(bg)
	cancel()
	if r.Enqueue(ctx, ConnectFrame{RequestPath: "b"}) {
		t.Fatal("Enqueue on a full ring with a cancelled context should return false")
	}
}

func TestRingDequeueRespectsContextCancellation(t *testing.T) {
	r := NewRing(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := r.Dequeue(ctx); ok {
		t.Fatal("Dequeue on an empty ring with a cancelled context should return false")
	}
}
