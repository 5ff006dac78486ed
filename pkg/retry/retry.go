// Package retry — ограниченный повтор операции с таймаутом на каждую попытку.
//
// Повторяется только таймаут попытки. Любая другая ошибка операции считается постоянной
// и прекращает повторы сразу после первой попытки.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/DRSN-tech/embedding-pipeline/pkg/jitter"
)

// Status — итог выполнения операции с повторами.
type Status int

const (
	Succeeded Status = iota
	Exhausted        // все попытки завершились таймаутом
	Failed           // постоянная (неповторяемая) ошибка
	Canceled         // родительский контекст отменён
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Policy задаёт параметры повторов.
type Policy struct {
	Timeout     time.Duration // таймаут одной попытки, <= 0 — без таймаута
	MaxAttempts int           // общее число попыток, < 1 трактуется как 1
	Backoff     time.Duration // базовая задержка перед повтором после таймаута, 0 — без задержки
	MaxBackoff  time.Duration
}

// Outcome описывает результат Do.
type Outcome struct {
	Status   Status
	Attempts int
	Err      error
}

// TimeoutHook вызывается после каждой попытки, завершившейся таймаутом.
type TimeoutHook func(attempt, maxAttempts int)

type attemptResult[T any] struct {
	value T
	err   error
}

// Do выполняет op с таймаутом на каждую попытку и повторяет её только при таймауте.
// Операция получает контекст попытки и должна его уважать: после таймаута результат
// брошенной попытки игнорируется.
//
// Do не ждёт завершения брошенной попытки. Если op игнорирует контекст, её горутина
// продолжает работать после возврата Do и после освобождения слота пула, поэтому
// ограничение пула распространяется только на операции, уважающие отмену.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), onTimeout TimeoutHook) (T, Outcome) {
	var zero T

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, Outcome{Status: Canceled, Attempts: attempt - 1, Err: err}
		}

		value, err, timedOut := runAttempt(ctx, p.Timeout, op)
		if !timedOut {
			if err != nil {
				if ctx.Err() != nil {
					return zero, Outcome{Status: Canceled, Attempts: attempt, Err: ctx.Err()}
				}
				return zero, Outcome{Status: Failed, Attempts: attempt, Err: err}
			}
			return value, Outcome{Status: Succeeded, Attempts: attempt}
		}

		if onTimeout != nil {
			onTimeout(attempt, maxAttempts)
		}

		if attempt < maxAttempts {
			if err := sleep(ctx, jitter.Exponential(p.Backoff, p.MaxBackoff, attempt-1, jitter.DefaultFactor)); err != nil {
				return zero, Outcome{Status: Canceled, Attempts: attempt, Err: err}
			}
		}
	}

	return zero, Outcome{Status: Exhausted, Attempts: maxAttempts, Err: e.ErrAttemptsExhausted}
}

// runAttempt выполняет одну попытку. timedOut == true только если истёк таймаут самой попытки,
// а не родительский контекст.
func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error, bool) {
	var zero T

	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan attemptResult[T], 1)
	go func() {
		v, err := op(attemptCtx)
		done <- attemptResult[T]{value: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() == nil &&
			errors.Is(res.err, context.DeadlineExceeded) && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return zero, res.err, true
		}
		return res.value, res.err, false
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err, false
		}
		return zero, attemptCtx.Err(), true
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
