package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"fieldbook/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverSlotLocker uses primary until it errors, then the in-process
// fallback, probing primary again once a minute.
type FailoverSlotLocker struct {
	primary  domain.SlotLocker
	fallback domain.SlotLocker
	logger   *zerolog.Logger
	isDown   atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
	now       func() time.Time
}

func NewFailoverSlotLocker(primary, fallback domain.SlotLocker, logger *zerolog.Logger) *FailoverSlotLocker {
	return &FailoverSlotLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (l *FailoverSlotLocker) Lock(ctx context.Context, key string) (func(), error) {
	if !l.isDown.Load() || l.shouldProbe() {
		unlock, err := l.primary.Lock(ctx, key)
		switch {
		case err == nil:
			if l.isDown.Swap(false) {
				l.logger.Info().Msg("Primary slot locker recovered")
			}
			return unlock, nil
		case errors.Is(err, ErrLockTimeout), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		}
		l.logger.Error().Err(err).Str("key", key).Msg("Primary slot locker failed, falling back to memory")
		l.markDown()
	}

	return l.fallback.Lock(ctx, key)
}

func (l *FailoverSlotLocker) markDown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.isDown.Store(true)
	l.lastCheck = l.now()
}

func (l *FailoverSlotLocker) shouldProbe() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.now().Sub(l.lastCheck) > time.Minute {
		l.lastCheck = l.now()
		return true
	}
	return false
}
