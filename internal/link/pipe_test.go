package link

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

// TestPipeDelivery verifies datagrams cross the pipe in both directions
// and are copied rather than aliased.
func TestPipeDelivery(t *testing.T) {
	ctx := context.Background()
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	msg := []byte("ping")
	if err := a.Send(ctx, msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	msg[0] = 'X' // the pipe must have copied

	got, err := b.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if !bytes.Equal(got, []byte("ping")) {
		t.Errorf("got %q, want %q", got, "ping")
	}

	if err := b.Send(ctx, []byte("pong")); err != nil {
		t.Fatalf("reverse Send failed: %v", err)
	}
	if got, err := a.Recv(ctx); err != nil || !bytes.Equal(got, []byte("pong")) {
		t.Errorf("reverse Recv = %q, %v", got, err)
	}
}

// TestPipeCloseUnblocksPeer verifies a blocked Recv returns once either
// end closes.
func TestPipeCloseUnblocksPeer(t *testing.T) {
	a, b := Pipe()

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Recv(context.Background())
		errCh <- err
	}()

	a.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Recv error = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock on peer close")
	}

	if err := b.Send(context.Background(), []byte("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after peer close = %v, want ErrClosed", err)
	}
}

// TestPipeRecvContext verifies Recv honors context cancellation.
func TestPipeRecvContext(t *testing.T) {
	_, b := Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.Recv(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Recv error = %v, want context.Canceled", err)
	}
}
