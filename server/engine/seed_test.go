package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeedStreamIsReproducible(t *testing.T) {
	a, b := NewSeedStream(42), NewSeedStream(42)
	seen := map[int64]bool{}
	for i := 0; i < 1000; i++ {
		x := a.Next()
		assert.Equal(t, x, b.Next())
		assert.False(t, seen[x], "repeat at %d", i)
		seen[x] = true
	}
	assert.NotEqual(t, NewSeedStream(1).Next(), NewSeedStream(2).Next())
}

func TestTimerSchedulerRunsLater(t *testing.T) {
	done := make(chan struct{})
	TimerScheduler{}.After(5*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled step never ran")
	}

	ran := false
	Immediate{}.After(time.Hour, func() { ran = true })
	assert.True(t, ran)
}
