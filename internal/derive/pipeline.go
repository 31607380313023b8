// Package derive runs the per-note derivation pipeline: on every accepted
// note write it computes the semantic embedding and the keyword set that
// the store persists alongside the note.
package derive

import (
	"context"
	"runtime"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/synapselabs/synapse-api/internal/embedding"
	"github.com/synapselabs/synapse-api/internal/keyword"
	"github.com/synapselabs/synapse-api/internal/store"
)

// topKeywords is how many terms each note keeps.
const topKeywords = 5

// Result is everything derived from one note body. Embedding is nil when
// generation failed; the note write still proceeds.
type Result struct {
	Embedding *pgvector.Vector
	Keywords  []store.DerivedKeyword
}

// Pipeline is a process-wide singleton wrapping the embedding provider and
// keyword extractor. Derivation is CPU-bound for tens to hundreds of
// milliseconds, so a semaphore sized to the CPU count keeps it from
// starving I/O-bound request handlers.
type Pipeline struct {
	provider  embedding.Provider
	extractor *keyword.Extractor
	sem       *semaphore.Weighted
}

func New(provider embedding.Provider, extractor *keyword.Extractor) *Pipeline {
	workers := int64(runtime.GOMAXPROCS(0))
	return &Pipeline{
		provider:  provider,
		extractor: extractor,
		sem:       semaphore.NewWeighted(workers),
	}
}

// Derive computes the embedding and keyword set for a note body. The call
// is synchronous: it returns once derivation finishes. Embedding failures
// are logged and tolerated; only context cancellation is an error.
func (p *Pipeline) Derive(ctx context.Context, noteID, body string) (Result, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer p.sem.Release(1)

	var res Result

	vec, err := p.provider.Embed(ctx, body)
	if err != nil {
		log.Warn().Err(err).Str("note_id", noteID).Msg("embedding generation failed, storing null embedding")
	} else {
		v := pgvector.NewVector(vec)
		res.Embedding = &v
	}

	for _, kw := range p.extractor.Extract(body, topKeywords) {
		res.Keywords = append(res.Keywords, store.DerivedKeyword{Name: kw.Name, Score: kw.Score})
	}

	return res, nil
}
