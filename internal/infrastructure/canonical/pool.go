package canonical

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/turtacn/ChargeMatch/internal/config"
	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// Factory creates one canonizer handle.
type Factory func() (charge.Canonizer, error)

// faulty is implemented by handles that can become unusable, such as a
// Dreadnaut whose process was killed.
type faulty interface {
	Err() error
}

// Pool owns a fixed set of canonizer handles and lends each to one caller
// at a time.  A handle released in a failed state is closed and replaced.
// It implements charge.CanonizerProvider.
type Pool struct {
	handles chan charge.Canonizer
	factory Factory
	logger  logging.Logger

	mu      sync.Mutex
	all     []charge.Canonizer
	missing int
	closed  bool
	done    chan struct{}
}

var _ charge.CanonizerProvider = (*Pool)(nil)

// NewPool creates size handles up front.  If any handle fails to start, the
// ones already created are closed.
func NewPool(size int, factory Factory, logger logging.Logger) (*Pool, error) {
	if size < 1 {
		return nil, errors.InvalidParam("canonizer pool size must be positive").
			WithDetail(fmt.Sprintf("size=%d", size))
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &Pool{
		handles: make(chan charge.Canonizer, size),
		factory: factory,
		logger:  logger,
		done:    make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		c, err := factory()
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		p.all = append(p.all, c)
		p.handles <- c
	}
	return p, nil
}

// NewPoolFromConfig builds a pool of the canonizer named by cfg.Canonizer.
func NewPoolFromConfig(cfg config.ChargeConfig, size int, logger logging.Logger) (*Pool, error) {
	switch cfg.Canonizer {
	case "", "refine":
		return NewPool(size, func() (charge.Canonizer, error) { return NewRefiner(), nil }, logger)
	case "dreadnaut":
		return NewPool(size, func() (charge.Canonizer, error) { return NewDreadnaut(cfg.DreadnautPath) }, logger)
	}
	return nil, errors.InvalidParam("unknown canonizer").WithDetail("canonizer=" + cfg.Canonizer)
}

// Size returns the number of live handles the pool owns.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all)
}

// Acquire blocks until a handle is free, ctx is done or the pool is closed.
// Slots left empty by a failed replacement are refilled here first.
func (p *Pool) Acquire(ctx context.Context) (charge.Canonizer, error) {
	select {
	case <-p.done:
		return nil, errors.InvalidState("canonizer pool is closed")
	default:
	}
	select {
	case c := <-p.handles:
		return c, nil
	default:
	}
	if c, err := p.refill(); err != nil {
		return nil, err
	} else if c != nil {
		return c, nil
	}
	select {
	case c := <-p.handles:
		return c, nil
	case <-p.done:
		return nil, errors.InvalidState("canonizer pool is closed")
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "timed out waiting for a canonizer")
	}
}

// Release returns c to the pool.  A handle reporting an error is closed and
// replaced by a fresh one from the factory.  Releasing after Close is a no-op.
func (p *Pool) Release(c charge.Canonizer) {
	if c == nil {
		return
	}
	if f, ok := c.(faulty); ok {
		if err := f.Err(); err != nil {
			p.replace(c, err)
			return
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.put(c)
}

// put hands c back to waiting callers.  p.mu must be held.
func (p *Pool) put(c charge.Canonizer) {
	select {
	case p.handles <- c:
	default:
		p.logger.Warn("canonizer released to a full pool")
	}
}

// replace drops the failed handle old and tries to start a new one.  When
// the factory fails the slot stays empty until refill succeeds.
func (p *Pool) replace(old charge.Canonizer, cause error) {
	p.logger.Warn("replacing failed canonizer", logging.Err(cause))
	if cl, ok := old.(io.Closer); ok {
		_ = cl.Close()
	}

	p.mu.Lock()
	for i, c := range p.all {
		if c == old {
			p.all = append(p.all[:i], p.all[i+1:]...)
			p.missing++
			break
		}
	}
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}

	c, err := p.refill()
	if err != nil || c == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.put(c)
}

// refill starts a handle for one empty slot.  It returns nil without error
// when no slot is empty.
func (p *Pool) refill() (charge.Canonizer, error) {
	p.mu.Lock()
	if p.closed || p.missing == 0 {
		p.mu.Unlock()
		return nil, nil
	}
	p.missing--
	p.mu.Unlock()

	c, err := p.factory()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.missing++
		p.logger.Error("failed to start replacement canonizer", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeCanonizationFailed, "failed to start canonizer")
	}
	if p.closed {
		if cl, ok := c.(io.Closer); ok {
			_ = cl.Close()
		}
		return nil, errors.InvalidState("canonizer pool is closed")
	}
	p.all = append(p.all, c)
	return c, nil
}

// Close closes every handle that implements io.Closer.  Handles still lent
// out are closed as well; their holders see errors on the next call.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	var first error
	for _, c := range p.all {
		cl, ok := c.(io.Closer)
		if !ok {
			continue
		}
		if err := cl.Close(); err != nil {
			p.logger.Warn("failed to close canonizer", logging.Err(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

//Personal.AI order the ending
