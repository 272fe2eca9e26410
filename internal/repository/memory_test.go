package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySlotLocker_Serializes(t *testing.T) {
	locker := NewMemorySlotLocker()
	ctx := context.Background()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "slot:f1:2026-03-14")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Zero(t, locker.Len())
}

func TestMemorySlotLocker_IndependentKeys(t *testing.T) {
	locker := NewMemorySlotLocker()
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := locker.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
	unlockB() // idempotent
	assert.Equal(t, 1, locker.Len())
}

func TestMemorySlotLocker_ContextCancel(t *testing.T) {
	locker := NewMemorySlotLocker()

	unlock, err := locker.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Zero(t, locker.Len())
}
