package export

import (
	"context"
	"testing"
	"time"
)

func TestMemoryQueueRoundTrip(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx := context.Background()

	if err := q.Send(ctx, `{"session_id":"a"}`); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := q.Send(ctx, `{"session_id":"b"}`); err != nil {
		t.Fatalf("send: %v", err)
	}

	msgs, err := q.Receive(ctx, 10, 1)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Body != `{"session_id":"a"}` {
		t.Errorf("messages out of order: %+v", msgs)
	}
	if msgs[0].ID == "" || msgs[0].ID == msgs[1].ID {
		t.Errorf("expected distinct message ids, got %+v", msgs)
	}
}

func TestMemoryQueueReceiveTimesOut(t *testing.T) {
	q := NewMemoryQueue(1)

	start := time.Now()
	msgs, err := q.Receive(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msgs != nil {
		t.Errorf("expected nil on timeout, got %+v", msgs)
	}
	if time.Since(start) < time.Second {
		t.Error("receive returned before the wait elapsed")
	}
}

func TestMemoryQueueRespectsCancellation(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Receive(ctx, 1, 0); err == nil {
		t.Error("expected context error")
	}
}
