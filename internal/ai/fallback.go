package ai

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrEmbeddingUnavailable marks a provider failure that was answered with fallback vectors.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// FallbackValue fills every component of a fallback vector.
const FallbackValue = 0.1

// FallbackVector is the deterministic non-zero placeholder served when the
// provider cannot answer.
func FallbackVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = FallbackValue
	}
	return v
}

// Resilient wraps a Client so that a batch never fails because of the provider.
// Provider errors and per-batch timeouts degrade to fallback vectors; only the
// caller cancelling its own context is returned as an error. Nothing is retried.
type Resilient struct {
	client  Client
	timeout time.Duration
	// lastDim remembers the width of real vectors so fallbacks stay comparable.
	lastDim atomic.Int64
}

// NewResilient wraps client. A zero timeout leaves batches bounded only by the caller's context.
func NewResilient(client Client, timeout time.Duration) *Resilient {
	return &Resilient{client: client, timeout: timeout}
}

// Embed returns one vector per text. degraded is true when fallback vectors were served.
func (r *Resilient) Embed(ctx context.Context, texts []string) ([][]float32, bool, error) {
	if len(texts) == 0 {
		return [][]float32{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	vectors, err := r.client.EmbedBatch(callCtx, texts)
	if ctxErr := ctx.Err(); ctxErr != nil {
		// The caller abandoned the batch; that is not a provider failure.
		return nil, false, ctxErr
	}
	if err == nil && len(vectors) != len(texts) {
		err = fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(texts))
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
		dim := r.fallbackDim()
		log.Warn().Err(err).
			Int("texts", len(texts)).
			Int("dim", dim).
			Dur("elapsed", time.Since(start)).
			Msg("embedding provider failed, serving fallback vectors")
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = FallbackVector(dim)
		}
		return out, true, nil
	}

	if len(vectors[0]) > 0 {
		r.lastDim.Store(int64(len(vectors[0])))
	}
	return vectors, false, nil
}

func (r *Resilient) fallbackDim() int {
	if d := r.lastDim.Load(); d > 0 {
		return int(d)
	}
	if d := r.client.Dim(); d > 0 {
		return d
	}
	return DefaultStubDim
}
