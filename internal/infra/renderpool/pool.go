// Package renderpool bounds how many renders run at once.
package renderpool

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"rendercv-service/internal/infra/logging"
)

const MaxDefaultSize = 8

var (
	ErrPoolClosed   = errors.New("render pool closed")
	ErrPoolDisabled = errors.New("render pool disabled")
)

// Slot is a held render permit.
type Slot struct {
	acquired time.Time
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Enabled   bool   `json:"enabled"`
	Capacity  int    `json:"capacity"`
	Idle      int    `json:"idle"`
	InUse     int    `json:"in_use"`
	Waiting   int64  `json:"waiting"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
}

type Pool struct {
	mu     sync.RWMutex
	sem    chan struct{}
	closed bool

	waiting   atomic.Int64
	completed atomic.Uint64
	failed    atomic.Uint64
}

// ResolveSize returns configured when positive, otherwise half of
// GOMAXPROCS clamped to [1, MaxDefaultSize].
func ResolveSize(configured int) int {
	if configured > 0 {
		return configured
	}
	n := runtime.GOMAXPROCS(0) / 2
	if n < 1 {
		n = 1
	}
	if n > MaxDefaultSize {
		n = MaxDefaultSize
	}
	return n
}

func NewPool(size int) (*Pool, error) {
	if size <= 0 {
		return nil, ErrPoolDisabled
	}
	p := &Pool{sem: make(chan struct{}, size)}
	for i := 0; i < size; i++ {
		p.sem <- struct{}{}
	}
	logging.Info("Render pool ready", "size", size)
	return p, nil
}

// Acquire blocks until a slot is free, ctx is done or the pool closes.
func (p *Pool) Acquire(ctx context.Context) (*Slot, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}

	p.waiting.Add(1)
	defer p.waiting.Add(-1)

	select {
	case <-p.sem:
		return &Slot{acquired: time.Now()}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns the slot. renderErr only feeds the counters.
func (p *Pool) Release(s *Slot, renderErr error) {
	if s == nil {
		return
	}
	if renderErr != nil {
		p.failed.Add(1)
	} else {
		p.completed.Add(1)
	}
	logging.Debug("Render slot released", "held", time.Since(s.acquired).String())

	select {
	case p.sem <- struct{}{}:
	default:
		logging.Warn("Render slot released twice")
	}
}

func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	capacity := cap(p.sem)
	idle := len(p.sem)
	return Stats{
		Enabled:   !p.closed,
		Capacity:  capacity,
		Idle:      idle,
		InUse:     capacity - idle,
		Waiting:   p.waiting.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Close stops new acquisitions. Renders already holding a slot finish
// normally. Safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	logging.Info("Render pool closed")
}
