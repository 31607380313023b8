package embedding

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when the input contains nothing to encode after
// preprocessing. Callers store a null embedding and continue.
var ErrEmptyText = errors.New("cannot embed empty text")

// Provider maps text to a fixed-dimension vector. Implementations must be
// deterministic on identical inputs within a process and safe for
// concurrent use; the model behind it is a process-wide singleton
// constructed once at startup.
type Provider interface {
	// Dimension is the fixed length of every vector this provider emits.
	Dimension() int

	// Embed encodes preprocessed text. Returns ErrEmptyText when the input
	// is empty after preprocessing.
	Embed(ctx context.Context, text string) ([]float32, error)
}
