package scheduler

import (
	"testing"
	"time"
)

func TestManagerStopReturnsAndRestarts(t *testing.T) {
	env := newSweepEnv(0)
	m := &Manager{sweeper: env.sweeper, stopCh: make(chan struct{})}

	for i := 0; i < 3; i++ {
		m.Start()

		done := make(chan struct{})
		go func() {
			m.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Stop did not return; a worker is stuck")
		}
	}
}

func TestManagerStartIsIdempotent(t *testing.T) {
	env := newSweepEnv(0)
	m := &Manager{sweeper: env.sweeper, stopCh: make(chan struct{})}

	m.Start()
	m.Start() // second call is a no-op while running
	m.Stop()
	m.Stop() // stopping a stopped manager is a no-op too
}
