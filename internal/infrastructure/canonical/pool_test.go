package canonical

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChargeMatch/internal/config"
	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
	"github.com/turtacn/ChargeMatch/internal/testutil"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

type closingCanonizer struct {
	*Refiner
	mu     sync.Mutex
	closed int
}

func (c *closingCanonizer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

// failingCanonizer reports an error once marked, like a Dreadnaut whose
// process was killed mid-exchange.
type failingCanonizer struct {
	closingCanonizer
	failed error
}

func (c *failingCanonizer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

func (c *failingCanonizer) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = err
}

// newClosing returns handles with distinct addresses, unlike the zero-size
// Refiner.
func newClosing() (charge.Canonizer, error) {
	return &closingCanonizer{Refiner: NewRefiner()}, nil
}

func TestPool_AcquireRelease(t *testing.T) {
	p, err := NewPool(2, newClosing, nil)
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, 2, p.Size())

	ctx := context.Background()
	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	b, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(short)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))

	p.Release(a)
	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, a, c)
}

func TestPool_HandlesAreExclusive(t *testing.T) {
	p, err := NewPool(3, newClosing, nil)
	require.NoError(t, err)
	defer p.Close()

	var (
		mu    sync.Mutex
		inUse = map[charge.Canonizer]bool{}
		wg    sync.WaitGroup
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := p.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			assert.False(t, inUse[c], "handle lent twice")
			inUse[c] = true
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inUse[c] = false
			mu.Unlock()
			p.Release(c)
		}()
	}
	wg.Wait()
}

func TestPool_CloseClosesHandles(t *testing.T) {
	var made []*closingCanonizer
	p, err := NewPool(2, func() (charge.Canonizer, error) {
		c := &closingCanonizer{Refiner: NewRefiner()}
		made = append(made, c)
		return c, nil
	}, testutil.NewMockLogger())
	require.NoError(t, err)

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	for _, c := range made {
		assert.Equal(t, 1, c.closed)
	}

	_, err = p.Acquire(context.Background())
	assert.Error(t, err)
	p.Release(held)
}

func TestNewPool_FactoryFailure(t *testing.T) {
	var made []*closingCanonizer
	calls := 0
	_, err := NewPool(3, func() (charge.Canonizer, error) {
		calls++
		if calls == 2 {
			return nil, stderrors.New("no binary")
		}
		c := &closingCanonizer{Refiner: NewRefiner()}
		made = append(made, c)
		return c, nil
	}, nil)
	require.Error(t, err)
	require.Len(t, made, 1)
	assert.Equal(t, 1, made[0].closed)

	_, err = NewPool(0, nil, nil)
	assert.True(t, errors.IsValidation(err))
}

func TestPool_ReplacesFailedHandle(t *testing.T) {
	var made []*failingCanonizer
	p, err := NewPool(1, func() (charge.Canonizer, error) {
		c := &failingCanonizer{closingCanonizer: closingCanonizer{Refiner: NewRefiner()}}
		made = append(made, c)
		return c, nil
	}, testutil.NewMockLogger())
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	made[0].fail(context.Canceled)
	p.Release(c)

	require.Len(t, made, 2)
	assert.Equal(t, 1, made[0].closed)
	assert.Equal(t, 1, p.Size())

	fresh, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, made[1], fresh)
	assert.NoError(t, made[1].Err())
	p.Release(fresh)

	require.NoError(t, p.Close())
	assert.Equal(t, 1, made[0].closed)
	assert.Equal(t, 1, made[1].closed)
}

func TestPool_RefillsAfterFactoryFailure(t *testing.T) {
	var made []*failingCanonizer
	down := false
	logger := testutil.NewMockLogger()
	p, err := NewPool(1, func() (charge.Canonizer, error) {
		if down {
			return nil, stderrors.New("no binary")
		}
		c := &failingCanonizer{closingCanonizer: closingCanonizer{Refiner: NewRefiner()}}
		made = append(made, c)
		return c, nil
	}, logger)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	made[0].fail(stderrors.New("broken pipe"))
	down = true
	p.Release(c)

	assert.Equal(t, 0, p.Size())
	_, ok := logger.Find("error", "failed to start replacement canonizer")
	assert.True(t, ok)

	_, err = p.Acquire(ctx)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCanonizationFailed))

	down = false
	c, err = p.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, made[1], c)
	assert.Equal(t, 1, p.Size())
}

func TestNewPoolFromConfig(t *testing.T) {
	p, err := NewPoolFromConfig(config.ChargeConfig{Canonizer: "refine"}, 1, nil)
	require.NoError(t, err)
	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &Refiner{}, c)
	require.NoError(t, p.Close())

	_, err = NewPoolFromConfig(config.ChargeConfig{Canonizer: "dreadnaut", DreadnautPath: "/nonexistent/dreadnaut"}, 1, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCanonizationFailed))

	_, err = NewPoolFromConfig(config.ChargeConfig{Canonizer: "bliss"}, 1, nil)
	assert.True(t, errors.IsValidation(err))
}

func TestPool_ServesCharging(t *testing.T) {
	p, err := NewPool(1, func() (charge.Canonizer, error) { return NewRefiner(), nil }, nil)
	require.NoError(t, err)
	defer p.Close()

	ref, err := molecule.FromDocument(testutil.MethaneDocument(true))
	require.NoError(t, err)
	b := charge.NewBuilder(NewRefiner(), 2)
	require.NoError(t, b.Add(context.Background(), ref))

	svc := charge.NewService(b.Build(), p, charge.ServiceConfig{Options: charge.DefaultOptions()}, nil, nil)
	resp, err := svc.Charge(context.Background(), testutil.ChargeRequest(testutil.MethaneDocument(false), "dp"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.TotalChargeRedist)
	assert.Equal(t, -0.48, *resp.Molecule.Atoms[0].PartialChargeRedist)
}

//Personal.AI order the ending
