package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Lock(ctx context.Context, key string) (func(), error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

func TestFailoverSlotLocker(t *testing.T) {
	primary := new(mockLocker)
	fallback := new(mockLocker)
	logger := zerolog.New(io.Discard)
	locker := NewFailoverSlotLocker(primary, fallback, &logger)
	ctx := context.Background()
	noop := func() {}

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Lock", ctx, "k1").Return(noop, nil).Once()

		unlock, err := locker.Lock(ctx, "k1")
		require.NoError(t, err)
		assert.NotNil(t, unlock)
		primary.AssertExpectations(t)
	})

	t.Run("ContentionIsNotFailure", func(t *testing.T) {
		primary.On("Lock", ctx, "busy").Return(nil, ErrLockTimeout).Once()

		_, err := locker.Lock(ctx, "busy")
		assert.ErrorIs(t, err, ErrLockTimeout)
		assert.False(t, locker.isDown.Load())
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("Lock", ctx, "k2").Return(nil, errors.New("connection refused")).Once()
		fallback.On("Lock", ctx, "k2").Return(noop, nil).Once()

		_, err := locker.Lock(ctx, "k2")
		require.NoError(t, err)
		assert.True(t, locker.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("Lock", ctx, "k3").Return(noop, nil).Once()

		_, err := locker.Lock(ctx, "k3")
		require.NoError(t, err)
		primary.AssertNotCalled(t, "Lock", ctx, "k3")
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		locker.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		primary.On("Lock", ctx, "k4").Return(noop, nil).Once()

		_, err := locker.Lock(ctx, "k4")
		require.NoError(t, err)
		assert.False(t, locker.isDown.Load())
		primary.AssertExpectations(t)
	})
}

func TestFailoverSlotLocker_WithMemoryFallback(t *testing.T) {
	logger := zerolog.New(io.Discard)
	locker := NewFailoverSlotLocker(NewRedisSlotLocker(nil, time.Second, time.Second), NewMemorySlotLocker(), &logger)

	unlock, err := locker.Lock(context.Background(), "slot:f1:2026-03-14")
	require.NoError(t, err)
	unlock()
	assert.True(t, locker.isDown.Load())
}
