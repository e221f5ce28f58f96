package embedding

import (
	"context"

	"github.com/cenkalti/backoff/v4"

	"github.com/mnemotree/mnemocore/internal/mnerr"
)

// embedWithRetry calls provider.GenerateEmbedding, retrying transient
// failures with exponential backoff (base delay, ×multiplier each
// attempt, ±jitter), up to retry.maxRetries attempts beyond the first.
func embedWithRetry(ctx context.Context, provider Provider, text string, retry retrySettings) ([]float32, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retry.baseDelay
	bo.Multiplier = retry.multiplier
	bo.RandomizationFactor = retry.jitter
	bo.MaxElapsedTime = 0 // bounded by WithMaxRetries below, not wall-clock

	bounded := backoff.WithMaxRetries(bo, uint64(retry.maxRetries))
	withCtx := backoff.WithContext(bounded, ctx)

	var result []float32
	var attempt int
	op := func() error {
		attempt++
		vec, err := provider.GenerateEmbedding(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(mnerr.Wrap(mnerr.Cancelled, err, "embedding request cancelled"))
			}
			log.Warn("embedding attempt failed", "attempt", attempt, "error", err)
			return err
		}
		result = vec
		return nil
	}

	if err := backoff.Retry(op, withCtx); err != nil {
		if perm, ok := err.(*backoff.PermanentError); ok {
			return nil, perm.Err
		}
		return nil, mnerr.Wrap(mnerr.Transient, err, "embedding failed after %d attempts", attempt)
	}

	return result, nil
}
