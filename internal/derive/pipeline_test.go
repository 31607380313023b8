package derive

import (
	"context"
	"testing"

	"github.com/synapselabs/synapse-api/internal/embedding"
	"github.com/synapselabs/synapse-api/internal/keyword"
)

func testPipeline() *Pipeline {
	return New(embedding.NewLocalProvider(64), keyword.NewExtractor())
}

func TestDeriveProducesEmbeddingAndKeywords(t *testing.T) {
	p := testPipeline()

	res, err := p.Derive(context.Background(), "n1", "Distributed systems need careful consensus protocols")
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if res.Embedding == nil {
		t.Fatal("embedding should be set for non-empty body")
	}
	if got := len(res.Embedding.Slice()); got != 64 {
		t.Errorf("embedding dim = %d, want 64", got)
	}
	if len(res.Keywords) == 0 {
		t.Error("keywords should be derived")
	}
	if len(res.Keywords) > topKeywords {
		t.Errorf("keywords = %d, want at most %d", len(res.Keywords), topKeywords)
	}
}

func TestDeriveEmptyBodyToleratesEmbeddingFailure(t *testing.T) {
	p := testPipeline()

	// An empty body fails embedding; the derivation itself still succeeds
	// with a null embedding and no keywords.
	res, err := p.Derive(context.Background(), "n1", "")
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if res.Embedding != nil {
		t.Error("embedding should be nil when generation fails")
	}
	if len(res.Keywords) != 0 {
		t.Errorf("keywords = %v, want none for empty body", res.Keywords)
	}
}

func TestDeriveDeterministic(t *testing.T) {
	p := testPipeline()

	a, err := p.Derive(context.Background(), "n1", "repeatable derivation input text")
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Derive(context.Background(), "n1", "repeatable derivation input text")
	if err != nil {
		t.Fatal(err)
	}

	av, bv := a.Embedding.Slice(), b.Embedding.Slice()
	for i := range av {
		if av[i] != bv[i] {
			t.Fatal("embedding not deterministic on equal input")
		}
	}
	if len(a.Keywords) != len(b.Keywords) {
		t.Fatal("keyword count differs between identical inputs")
	}
	for i := range a.Keywords {
		if a.Keywords[i] != b.Keywords[i] {
			t.Fatal("keywords not deterministic on equal input")
		}
	}
}

func TestDeriveHonorsContextCancellation(t *testing.T) {
	p := testPipeline()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Derive(ctx, "n1", "body"); err == nil {
		t.Error("cancelled context should fail the derivation")
	}
}
