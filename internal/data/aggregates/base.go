package aggregates

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/platform/dbctx"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
)

// RetryPolicy bounds how long a write may keep retrying transient failures.
type RetryPolicy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	JitterFrac  float64
	// AttemptTimeout caps each transaction attempt, lock waits included.
	AttemptTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		MinBackoff:     25 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
		JitterFrac:     0.20,
		AttemptTimeout: 2 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.MinBackoff <= 0 {
		p.MinBackoff = def.MinBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.MaxBackoff < p.MinBackoff {
		p.MaxBackoff = p.MinBackoff
	}
	if p.JitterFrac <= 0 {
		p.JitterFrac = def.JitterFrac
	}
	return p
}

type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard
	Retry    RetryPolicy

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func (d BaseDeps) withDefaults() BaseDeps {
	d.Retry = d.Retry.withDefaults()
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB, WithLockTimeout(d.Retry.AttemptTimeout))
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Sleep == nil {
		d.Sleep = sleepCtx
	}
	return d
}

// executeWrite runs fn in a transaction, retrying transient failures with
// backoff until the policy is exhausted. fn must be safe to re-run from scratch.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}

	ctx, span := otel.Tracer("fundtracer/aggregates").Start(ctx, op)
	defer span.End()

	var mapped error
	attempts := 0
	for {
		attempts++
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if deps.Retry.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, deps.Retry.AttemptTimeout)
		}
		err := deps.Runner.InTx(attemptCtx, fn)
		cancel()

		mapped = MapError(op, err)
		if mapped == nil || !domainagg.IsCode(mapped, domainagg.CodeRetryable) {
			break
		}
		if ctx.Err() != nil {
			// The caller gave up; never retry on its behalf.
			break
		}
		if attempts >= deps.Retry.MaxAttempts {
			mapped = domainagg.NewError(
				domainagg.CodeRetryable,
				op,
				fmt.Sprintf("transient failure persisted after %d attempts", attempts),
				err,
			)
			break
		}
		deps.Hooks.IncRetry(op)
		wait := computeBackoff(deps.Retry, attempts)
		deps.Log.Warn("Retrying aggregate write", "op", op, "attempt", attempts, "backoff", wait, "error", err)
		if serr := deps.Sleep(ctx, wait); serr != nil {
			break
		}
	}

	status := "success"
	if mapped != nil {
		status = aggregateErrorStatus(mapped)
		if domainagg.IsCode(mapped, domainagg.CodeConflict) {
			deps.Hooks.IncConflict(op)
		}
		span.RecordError(mapped)
		span.SetStatus(codes.Error, status)
	}
	span.SetAttributes(
		attribute.String("aggregate.status", status),
		attribute.Int("aggregate.attempts", attempts),
	)
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("aggregate.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}

func computeBackoff(p RetryPolicy, attempts int) time.Duration {
	p = p.withDefaults()
	if attempts < 1 {
		attempts = 1
	}
	d := time.Duration(float64(p.MinBackoff) * math.Pow(2, float64(attempts-1)))
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	delta := float64(d) * p.JitterFrac
	low := float64(d) - delta
	high := float64(d) + delta
	if low < 0 {
		low = 0
	}
	return time.Duration(low + rand.Float64()*(high-low))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
