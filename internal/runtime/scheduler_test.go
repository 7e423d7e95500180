package runtime

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/geserver/server/internal/entity"
	"github.com/geserver/server/internal/render"
	"github.com/geserver/server/internal/scripting"
)

func TestSchedulerTicksUntilCancelled(t *testing.T) {
	log := zap.NewNop()
	rm := render.NewManager(render.FileLoader{}, log)
	sm := scripting.NewManager(rm, log)
	rt := New(entity.NewStore(), rm, sm, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewScheduler(rt, 2*time.Millisecond, log).Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for rt.Status().Ticks < 3 {
		select {
		case <-deadline:
			t.Fatal("scheduler produced no ticks")
		case <-time.After(2 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run returned %v", err)
	}
}
