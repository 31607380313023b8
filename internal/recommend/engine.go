// Package recommend ranks a user's notes against a target note with a
// hybrid score: embedding cosine similarity, keyword Jaccard overlap, and
// temporal proximity, each weighted and summed.
package recommend

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"

	"github.com/synapselabs/synapse-api/internal/store"
)

// ErrInvalidK rejects a requested result count outside [1, MaxCandidates].
var ErrInvalidK = errors.New("k out of range")

const previewChars = 100

// Store is the read surface the engine needs. *store.Store satisfies it.
type Store interface {
	GetNote(ctx context.Context, userID, noteID string) (*store.Note, error)
	NearestNotes(ctx context.Context, userID, excludeNoteID string, embedding pgvector.Vector, limit int) ([]store.Neighbor, error)
	KeywordsForNote(ctx context.Context, noteID string) ([]string, error)
	KeywordsForNotes(ctx context.Context, noteIDs []string) (map[string][]string, error)
}

// Weights are the hybrid score coefficients. They should sum to 1 so the
// final score stays in [0, 1].
type Weights struct {
	Embedding float64
	Keyword   float64
	Temporal  float64
}

// Engine scores vector-neighbor candidates for a target note.
type Engine struct {
	Store         Store
	Weights       Weights
	MinScore      float64 // candidates below this are discarded
	MaxCandidates int     // neighbor fetch size and upper bound for k
}

func New(st Store, w Weights, minScore float64, maxCandidates int) *Engine {
	return &Engine{Store: st, Weights: w, MinScore: minScore, MaxCandidates: maxCandidates}
}

// Recommendation is one ranked related note.
type Recommendation struct {
	NoteID         string    `json:"note_id"`
	BodyPreview    string    `json:"body_preview"`
	Score          float64   `json:"score"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
	CommonKeywords []string  `json:"common_keywords"`
}

// Response is the full recommendation result for one target note.
type Response struct {
	NoteID           string           `json:"note_id"`
	Recommendations  []Recommendation `json:"recommendations"`
	TotalCandidates  int              `json:"total_candidates"`
	ProcessingTimeMS int64            `json:"processing_time_ms"`
}

// Recommend returns up to k related notes for noteID. A target that is
// absent, foreign-owned, or soft-deleted yields store.ErrNotFound; a target
// with no embedding yields an empty result.
func (e *Engine) Recommend(ctx context.Context, userID, noteID string, k int) (*Response, error) {
	if k < 1 || k > e.MaxCandidates {
		return nil, ErrInvalidK
	}

	start := time.Now()

	target, err := e.Store.GetNote(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if target.DeletedAt != nil {
		return nil, store.ErrNotFound
	}

	resp := &Response{NoteID: noteID, Recommendations: make([]Recommendation, 0, k)}
	if target.Embedding == nil {
		resp.ProcessingTimeMS = time.Since(start).Milliseconds()
		return resp, nil
	}

	neighbors, err := e.Store.NearestNotes(ctx, userID, noteID, *target.Embedding, e.MaxCandidates)
	if err != nil {
		return nil, err
	}
	resp.TotalCandidates = len(neighbors)
	if len(neighbors) == 0 {
		resp.ProcessingTimeMS = time.Since(start).Milliseconds()
		return resp, nil
	}

	targetKWs, err := e.Store.KeywordsForNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	targetSet := lowerSet(targetKWs)

	ids := make([]string, len(neighbors))
	for i, nb := range neighbors {
		ids[i] = nb.ID
	}
	candidateKWs, err := e.Store.KeywordsForNotes(ctx, ids)
	if err != nil {
		return nil, err
	}

	scored := make([]Recommendation, 0, len(neighbors))
	for _, nb := range neighbors {
		se := clamp01(nb.Similarity)
		candSet := lowerSet(candidateKWs[nb.ID])
		common := intersect(targetKWs, candSet)
		sk := jaccard(targetSet, candSet)
		st := temporalScore(target.CreatedAt, nb.CreatedAt)

		score := e.Weights.Embedding*se + e.Weights.Keyword*sk + e.Weights.Temporal*st
		if score < e.MinScore {
			continue
		}

		scored = append(scored, Recommendation{
			NoteID:         nb.ID,
			BodyPreview:    preview(nb.Body),
			Score:          score,
			Reason:         buildReason(se, st, common),
			CreatedAt:      nb.CreatedAt,
			CommonKeywords: common,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.NoteID < b.NoteID
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	resp.Recommendations = scored
	resp.ProcessingTimeMS = time.Since(start).Milliseconds()

	log.Debug().
		Str("user_id", userID).
		Str("note_id", noteID).
		Int("candidates", resp.TotalCandidates).
		Int("returned", len(scored)).
		Msg("recommendation computed")

	return resp, nil
}

// temporalScore decays with the absolute day gap between the two notes'
// creation times, halving roughly every three weeks.
func temporalScore(a, b time.Time) float64 {
	days := math.Abs(a.Sub(b).Hours()) / 24
	return math.Exp(-days / 30)
}

// buildReason concatenates the fired threshold clauses with " | ". A
// candidate that passes the score floor without firing any clause gets a
// generic fallback.
func buildReason(se, st float64, common []string) string {
	var clauses []string

	switch {
	case se > 0.7:
		clauses = append(clauses, "content highly similar")
	case se > 0.5:
		clauses = append(clauses, "related topic")
	}

	switch {
	case len(common) >= 3:
		clauses = append(clauses, "shared keywords: "+strings.Join(common[:3], ", "))
	case len(common) >= 1:
		clauses = append(clauses, "keywords "+strings.Join(common, ", ")+" related")
	}

	if st > 0.8 {
		clauses = append(clauses, "recent note")
	}

	if len(clauses) == 0 {
		return "similar context"
	}
	return strings.Join(clauses, " | ")
}

func preview(body string) string {
	runes := []rune(body)
	if len(runes) <= previewChars {
		return body
	}
	return string(runes[:previewChars])
}

func lowerSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return set
}

// intersect keeps the target's keyword order so reasons read stably.
func intersect(targetKWs []string, candSet map[string]struct{}) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, n := range targetKWs {
		lower := strings.ToLower(n)
		if _, ok := candSet[lower]; !ok {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, lower)
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
