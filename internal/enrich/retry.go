package enrich

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/starford/study/internal/models"
)

// caller performs one model request and returns the raw reply text.
type caller interface {
	complete(ctx context.Context, system, user string) (string, error)
}

type client struct {
	caller   caller
	logger   *slog.Logger
	attempts int
	delay    time.Duration
	timeout  time.Duration
	lang     string
}

// linearBackOff waits base, 2*base, 3*base, ... between attempts.
type linearBackOff struct {
	base time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.base * time.Duration(b.n)
}

func (b *linearBackOff) Reset() { b.n = 0 }

// Process sends the transcript to the model and validates the reply,
// retrying transient failures and invalid replies.
func (c *client) Process(ctx context.Context, text, title string) (models.Knowledge, error) {
	system := SystemPrompt(c.lang)
	user := UserPrompt(title, text, c.lang)

	var (
		result  models.Knowledge
		attempt int
	)
	op := func() error {
		attempt++
		c.logger.Info("enrich: attempt",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.attempts),
			slog.String("title", title),
		)
		actx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		raw, err := c.caller.complete(actx, system, user)
		if err != nil {
			return classify(ctx, err)
		}
		k, err := ParseResponse(raw)
		if err != nil {
			return err
		}
		result = k
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: c.delay}, uint64(max(c.attempts-1, 0))),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("enrich: attempt failed",
			slog.Int("attempt", attempt),
			slog.String("title", title),
			slog.Duration("retry_in", wait),
			slog.String("error", err.Error()),
		)
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		var depErr *DependencyError
		if errors.As(err, &depErr) {
			return models.Knowledge{}, depErr
		}
		return models.Knowledge{}, &FailedError{Attempts: attempt, Err: err}
	}
	return result, nil
}

// classify marks errors that must not be retried.
func classify(ctx context.Context, err error) error {
	var depErr *DependencyError
	if errors.As(err, &depErr) {
		return backoff.Permanent(err)
	}
	if ctx.Err() != nil {
		return backoff.Permanent(err)
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && !statusErr.Retryable() {
		return backoff.Permanent(err)
	}
	return err
}
