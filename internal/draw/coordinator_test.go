package draw

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryBeginExclusive(t *testing.T) {
	c := NewCoordinator()

	id, ok := c.TryBegin(1)
	require.True(t, ok)
	require.NotEmpty(t, id)

	_, ok = c.TryBegin(1)
	assert.False(t, ok, "second TryBegin while in flight must be refused")

	c.End()

	id2, ok := c.TryBegin(1)
	require.True(t, ok)
	assert.NotEqual(t, id, id2, "each grant gets its own draw id")
}

func TestCandidateLifecycle(t *testing.T) {
	c := NewCoordinator()

	_, _, ok := c.Candidate()
	assert.False(t, ok, "no candidate before a draw begins")

	_, ok = c.TryBegin(7)
	require.True(t, ok)

	_, _, ok = c.Candidate()
	assert.False(t, ok, "no candidate until Present")

	c.Present(42)

	roundID, number, ok := c.Candidate()
	require.True(t, ok)
	assert.Equal(t, int64(7), roundID)
	assert.Equal(t, 42, number)

	c.End()

	_, _, ok = c.Candidate()
	assert.False(t, ok, "End discards the candidate")
	assert.False(t, c.InFlight())
}

func TestPresentWithoutBeginIsNoop(t *testing.T) {
	c := NewCoordinator()

	c.Present(5)

	_, _, ok := c.Candidate()
	assert.False(t, ok)
}

func TestEndWithoutBeginIsSafe(t *testing.T) {
	c := NewCoordinator()

	c.End()
	c.End()

	_, ok := c.TryBegin(1)
	assert.True(t, ok)
}

func TestConcurrentTryBeginGrantsOne(t *testing.T) {
	c := NewCoordinator()

	const callers = 64

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.TryBegin(1); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, granted, "exactly one concurrent caller may win the draw window")
	assert.True(t, c.InFlight())
}

func TestReacquireAfterEveryEnd(t *testing.T) {
	c := NewCoordinator()

	for i := 0; i < 10; i++ {
		_, ok := c.TryBegin(int64(i))
		require.True(t, ok, "iteration %d", i)
		c.Present(i)
		c.End()
	}
}
