package collab

import (
	"context"
	"errors"
)

const DefaultSemaphoreSize = 100

var (
	ErrAcquireTimeout = errors.New("SEMAPHORE_ACQUIRE_TIMEOUT")
	ErrNotAcquired    = errors.New("SEMAPHORE_NOT_ACQUIRED")
)

// SemaphoreControl 基于带缓冲 channel 的计数信号量
type SemaphoreControl struct {
	ch chan struct{}
}

// NewSemaphoreControl size<=0 时用 DefaultSemaphoreSize
func NewSemaphoreControl(size int) *SemaphoreControl {
	if size <= 0 {
		size = DefaultSemaphoreSize
	}
	return &SemaphoreControl{ch: make(chan struct{}, size)}
}

func (s *SemaphoreControl) Acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ErrAcquireTimeout
	}
}

func (s *SemaphoreControl) Release() error {
	select {
	case <-s.ch:
		return nil
	default:
		return ErrNotAcquired
	}
}
