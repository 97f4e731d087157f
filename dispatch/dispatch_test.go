package dispatch

import (
	"context"
	"testing"
)

func TestDispatch_QueuesAndClearsLatch(t *testing.T) {
	d := New(2)
	if !d.Responded() {
		t.Fatal("fresh dispatcher should report responded")
	}

	if !d.Dispatch(context.Background(), "hello") {
		t.Fatal("Dispatch rejected a message with room in the queue")
	}
	if d.Responded() {
		t.Error("responded latch not cleared by Dispatch")
	}
	if got := <-d.Messages(); got != "hello" {
		t.Errorf("got %q, want hello", got)
	}

	d.MarkResponded()
	if !d.Responded() {
		t.Error("MarkResponded did not set the latch")
	}
}

func TestDispatch_DropsWhenFull(t *testing.T) {
	d := New(1)
	ctx := context.Background()
	d.Dispatch(ctx, "one")
	if d.Dispatch(ctx, "two") {
		t.Fatal("Dispatch accepted a message into a full queue")
	}
	if d.Pending() != 1 {
		t.Errorf("pending = %d, want 1", d.Pending())
	}
}
