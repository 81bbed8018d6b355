package batch

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_AllTasksResolve(t *testing.T) {
	p := New(WithBatchSize(3), WithBatchDelay(time.Millisecond))

	var ran atomic.Int64
	var results []<-chan error
	for i := 0; i < 10; i++ {
		results = append(results, p.Submit(func() error {
			ran.Add(1)
			return nil
		}))
	}

	for i, done := range results {
		select {
		case err := <-done:
			require.NoError(t, err, "task %d", i)
		case <-time.After(5 * time.Second):
			t.Fatalf("task %d did not resolve", i)
		}
	}
	assert.Equal(t, int64(10), ran.Load())
}

func TestProcessor_FailureResolvesOnlyItsFuture(t *testing.T) {
	p := New(WithBatchSize(2), WithBatchDelay(0))
	boom := errors.New("boom")

	bad := p.Submit(func() error { return boom })
	good := p.Submit(func() error { return nil })

	assert.ErrorIs(t, <-bad, boom)
	assert.NoError(t, <-good)
}

func TestProcessor_PanicBecomesError(t *testing.T) {
	p := New()

	done := p.Submit(func() error { panic("kaboom") })
	err := <-done
	require.Error(t, err)

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
}

func TestProcessor_BatchMembersRunConcurrently(t *testing.T) {
	p := New(WithBatchSize(4), WithBatchDelay(0))

	// A gate task holds the drain loop so the two rendezvous tasks
	// queue up and land in the same batch.
	gate := make(chan struct{})
	gateDone := p.Submit(func() error {
		<-gate
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(2)
	barrier := make(chan struct{})

	// Two tasks in the same batch wait on each other. If they ran
	// sequentially, this would deadlock and hit the test timeout.
	task := func() error {
		wg.Done()
		<-barrier
		return nil
	}
	a := p.Submit(task)
	b := p.Submit(task)
	close(gate)

	waited := make(chan struct{})
	go func() {
		wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		close(barrier)
	case <-time.After(5 * time.Second):
		t.Fatal("batch members did not run concurrently")
	}

	assert.NoError(t, <-gateDone)
	assert.NoError(t, <-a)
	assert.NoError(t, <-b)
}

func TestProcessor_IdempotentDrainStart(t *testing.T) {
	p := New(WithBatchSize(1), WithBatchDelay(10*time.Millisecond))

	var results []<-chan error
	for i := 0; i < 5; i++ {
		results = append(results, p.Submit(func() error { return nil }))
	}

	for _, done := range results {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("queued task never drained")
		}
	}
	assert.Equal(t, 0, p.Pending())
}
