// Package executor runs batches of fire-and-forget device operations with
// bounded retries under one shared deadline.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultAttempts = 5
	DefaultTimeout  = 15 * time.Second
)

var (
	// ErrNoOperations is returned for an empty batch.
	ErrNoOperations = errors.New("no operations to execute")

	// ErrCommandTimeout is matched by TimeoutError.
	ErrCommandTimeout = errors.New("command timeout")
)

// TimeoutError reports operations that never completed within the deadline.
type TimeoutError struct {
	Failed  int
	Total   int
	Timeout time.Duration
	Names   []string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%d of %d requests timed out after %s", e.Failed, e.Total, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrCommandTimeout
}

// Op is one device operation. Fire must start the operation and return without
// waiting for it; the operation resolves c when (and if) the device answers.
// Fire may be called again on a later round while an earlier attempt is still
// in flight.
type Op[T any] struct {
	Name string
	Fire func(ctx context.Context, c *Completion[T])
}

// Config controls retries.
type Config struct {
	Attempts int
	Timeout  time.Duration
	Metrics  *Metrics
}

func (c Config) withDefaults() Config {
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Execute fires every op and retries the unresolved ones.
//
// The timeout is split evenly across attempts. Each round re-fires only the
// ops whose completion is still open, then waits for its share of the deadline
// or until every op has resolved. Late answers from earlier rounds still count.
//
// Results are returned in op order. If any op is still unresolved after the
// last round the whole batch fails with a *TimeoutError and no results.
func Execute[T any](ctx context.Context, cfg Config, ops []Op[T]) ([]T, error) {
	if len(ops) == 0 {
		return nil, ErrNoOperations
	}
	cfg = cfg.withDefaults()

	batchID := uuid.NewString()
	perRound := cfg.Timeout / time.Duration(cfg.Attempts)

	completions := make([]*Completion[T], len(ops))
	for i := range completions {
		completions[i] = NewCompletion[T]()
	}

	rounds := 0
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		fired := 0
		for i, op := range ops {
			if completions[i].Resolved() {
				continue
			}
			op.Fire(ctx, completions[i])
			fired++
		}
		rounds++

		log.Debug().
			Str("batch", batchID).
			Int("attempt", attempt).
			Int("fired", fired).
			Dur("wait", perRound).
			Msg("Executor round")

		if err := waitRound(ctx, completions, perRound); err != nil {
			cfg.Metrics.observe(resultCanceled, rounds, 0)
			return nil, fmt.Errorf("batch %s: %w", batchID, err)
		}
		if allResolved(completions) {
			break
		}
	}

	var names []string
	results := make([]T, 0, len(ops))
	for i, c := range completions {
		if !c.Resolved() {
			names = append(names, ops[i].Name)
			continue
		}
		results = append(results, c.Value())
	}

	if len(names) > 0 {
		cfg.Metrics.observe(resultTimeout, rounds, len(names))
		log.Warn().
			Str("batch", batchID).
			Int("failed", len(names)).
			Strs("ops", names).
			Int("rounds", rounds).
			Msg("Executor batch timed out")
		return nil, &TimeoutError{
			Failed:  len(names),
			Total:   len(ops),
			Timeout: cfg.Timeout,
			Names:   names,
		}
	}

	cfg.Metrics.observe(resultOK, rounds, 0)
	return results, nil
}

// waitRound blocks until every completion resolves or d elapses.
func waitRound[T any](ctx context.Context, completions []*Completion[T], d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for _, c := range completions {
		select {
		case <-c.Done():
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func allResolved[T any](completions []*Completion[T]) bool {
	for _, c := range completions {
		if !c.Resolved() {
			return false
		}
	}
	return true
}
