package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
)

// LocalProvider is an in-process feature-hashing encoder. It stands in for
// an external sentence-encoder service: tokens and character bigrams are
// hashed into a fixed number of signed buckets and the result is
// L2-normalized, so cosine similarity is meaningful and identical inputs
// always map to identical vectors. Stateless, safe under concurrent use.
type LocalProvider struct {
	dim int
}

// NewLocalProvider constructs the provider with the configured dimension.
func NewLocalProvider(dim int) *LocalProvider {
	log.Info().Int("dim", dim).Msg("local embedding provider initialized")
	return &LocalProvider{dim: dim}
}

func (p *LocalProvider) Dimension() int { return p.dim }

// Embed encodes preprocessed text. Returns ErrEmptyText when nothing
// survives preprocessing.
func (p *LocalProvider) Embed(_ context.Context, body string) ([]float32, error) {
	text := Preprocess(body)
	if text == "" {
		return nil, ErrEmptyText
	}
	text = AugmentShort(text)

	vec := make([]float32, p.dim)
	for _, feature := range features(text) {
		bucket, sign := hashFeature(feature, p.dim)
		vec[bucket] += sign
	}

	normalize(vec)
	return vec, nil
}

// features emits word unigrams plus intra-word character bigrams. Bigrams
// give agglutinative scripts (Korean, Japanese) sub-word signal that plain
// whitespace tokens miss.
func features(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := make([]string, 0, len(words)*3)
	for _, w := range words {
		out = append(out, "w:"+w)
		runes := []rune(w)
		for i := 0; i+1 < len(runes); i++ {
			out = append(out, "b:"+string(runes[i:i+2]))
		}
	}
	return out
}

func hashFeature(feature string, dim int) (int, float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(dim))
	sign := float32(1)
	if (sum>>63)&1 == 1 {
		sign = -1
	}
	return bucket, sign
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
