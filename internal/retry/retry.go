// Package retry runs upstream calls with bounded exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Policy configures one logical call. MaxRetries counts the retries made after
// the first invocation, so an operation runs at most MaxRetries+1 times.
// MaxDelay of zero leaves the delay uncapped.
type Policy struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// Interactive is the policy used while a user waits on the result.
func Interactive() Policy {
	return Policy{
		MaxRetries:   5,
		InitialDelay: 2 * time.Second,
		Multiplier:   2,
	}
}

// Unattended is the policy used by scheduled runs.
func Unattended() Policy {
	return Policy{
		MaxRetries:   10,
		InitialDelay: 5 * time.Second,
		Multiplier:   2,
		MaxDelay:     60 * time.Second,
	}
}

func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", p.MaxRetries)
	}
	if p.InitialDelay < 0 {
		return fmt.Errorf("initial_delay must not be negative, got %s", p.InitialDelay)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1, got %g", p.Multiplier)
	}
	if p.MaxDelay < 0 {
		return fmt.Errorf("max_delay must not be negative, got %s", p.MaxDelay)
	}
	return nil
}

// Delay returns the wait before retry n (1-based).
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := float64(p.InitialDelay) * math.Pow(p.multiplier(), float64(n-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// MaxElapsed is the total time spent waiting when every retry is used. Call
// durations come on top of it.
func (p Policy) MaxElapsed() time.Duration {
	var total time.Duration
	for n := 1; n <= p.MaxRetries; n++ {
		total += p.Delay(n)
	}
	return total
}

func (p Policy) multiplier() float64 {
	if p.Multiplier < 1 {
		return 1
	}
	return p.Multiplier
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.Multiplier = p.multiplier()
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Executor retries operations whose errors the classifier marks as retryable.
// Everything else is returned after the first invocation.
type Executor struct {
	policy    Policy
	retryable func(error) bool
	logger    *zap.Logger
}

func NewExecutor(policy Policy, retryable func(error) bool, logger *zap.Logger) *Executor {
	if retryable == nil {
		retryable = func(error) bool { return false }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		policy:    policy,
		retryable: retryable,
		logger:    logger,
	}
}

func (e *Executor) Policy() Policy {
	return e.policy
}

// Do runs op until it succeeds, fails with a non-retryable error, exhausts the
// policy, or ctx is done.
func (e *Executor) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !e.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		e.logger.Warn("Upstream overloaded, retrying",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Int("retries_left", e.policy.MaxRetries-attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	return backoff.RetryNotify(operation, e.policy.backOff(ctx), notify)
}

// Run is Do for operations that produce a value.
func Run[T any](ctx context.Context, e *Executor, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, name, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
