package shutdown

import (
	"context"
	"testing"
)

func TestContextFollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := Context(parent)
	defer stop()

	if ctx.Err() != nil {
		t.Fatal("context done before any signal")
	}
	cancel()
	<-ctx.Done()
}

func TestStopReleases(t *testing.T) {
	ctx, stop := Context(context.Background())
	stop()
	<-ctx.Done()
}
