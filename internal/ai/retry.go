package ai

import (
	"context"
	"fmt"
	"reasondesk/internal/errs"
	"reasondesk/internal/logger"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultAttempts  = 3
	DefaultBaseDelay = time.Second
)

// Retrying retries every call of the wrapped provider with exponential
// backoff (base, 2*base, 4*base, ...). Malformed embeddings count as
// failures. Once the attempts are spent the caller gets an
// *errs.ProviderError carrying the last failure.
type Retrying struct {
	next      Provider
	attempts  int
	baseDelay time.Duration
	log       logger.Logger
}

func NewRetrying(next Provider, attempts int, baseDelay time.Duration) *Retrying {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Retrying{
		next:      next,
		attempts:  attempts,
		baseDelay: baseDelay,
		log:       logger.New("ai").File("retry"),
	}
}

func (r *Retrying) Dimension() int {
	return r.next.Dimension()
}

func (r *Retrying) GenerateText(ctx context.Context, prompt string) (string, error) {
	var text string
	err := r.do(ctx, "GenerateText", func(ctx context.Context) error {
		out, err := r.next.GenerateText(ctx, prompt)
		if err != nil {
			return err
		}
		if out == "" {
			return fmt.Errorf("provider returned empty text")
		}
		text = out
		return nil
	})
	return text, err
}

func (r *Retrying) EmbedText(ctx context.Context, text string) ([]float64, error) {
	var vector []float64
	err := r.do(ctx, "EmbedText", func(ctx context.Context) error {
		out, err := r.next.EmbedText(ctx, text)
		if err != nil {
			return err
		}
		if want := r.next.Dimension(); len(out) != want {
			return fmt.Errorf("embedding has dimension %d, want %d", len(out), want)
		}
		vector = out
		return nil
	})
	return vector, err
}

func (r *Retrying) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	log := r.log.Function(op)

	attempts := 0
	var last error

	backoff := retry.WithMaxRetries(uint64(r.attempts-1), retry.NewExponential(r.baseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if err := fn(ctx); err != nil {
			last = err
			log.Warn("provider call failed", "attempt", attempts, "maxAttempts", r.attempts, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err == nil {
		return nil
	}

	if last == nil {
		last = err
	}
	log.Er("provider retries exhausted", last, "attempts", attempts)
	return &errs.ProviderError{Attempts: attempts, Last: last}
}
