package matrix

import (
	"context"
	"errors"
	"testing"
)

func TestStartStopsOnCanceledContext(t *testing.T) {
	t.Parallel()
	c := testClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if c.Ready() {
		t.Fatal("client must not report ready without a completed sync")
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}
