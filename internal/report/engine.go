// Package report builds the weekly activity report: embedding clusters,
// keyword aggregation, a diff against the prior week, and suggested
// cross-note connections, cached per (user, week).
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/synapselabs/synapse-api/internal/store"
)

var (
	// ErrInvalidWeek rejects a malformed or out-of-range week key.
	ErrInvalidWeek = errors.New("invalid week key")
	// ErrNoNotes means the week window holds no embedded notes.
	ErrNoNotes = errors.New("no notes found")
)

const (
	topKeywordCount    = 10
	newKeywordCap      = 5
	clusterKeywordsN   = 3
	connectionMinSim   = 0.7
	connectionCap      = 5
	representativeSize = 100
)

// Store is the persistence surface the engine needs. *store.Store
// satisfies it.
type Store interface {
	NotesCreatedBetween(ctx context.Context, userID string, from, to time.Time) ([]store.Note, error)
	KeywordsForNotes(ctx context.Context, noteIDs []string) (map[string][]string, error)
	GetWeeklyReport(ctx context.Context, userID, weekKey string) (*store.WeeklyReport, error)
	SaveWeeklyReport(ctx context.Context, r store.WeeklyReport) error
}

// Engine generates and caches weekly reports.
type Engine struct {
	Store    Store
	Seed     int64 // clustering seed, fixed for reproducible reports
	Restarts int
}

func New(st Store, seed int64, restarts int) *Engine {
	return &Engine{Store: st, Seed: seed, Restarts: restarts}
}

// ClusterSummary describes one embedding cluster within the week.
type ClusterSummary struct {
	ClusterID              int      `json:"cluster_id"`
	Size                   int      `json:"size"`
	RepresentativeSentence string   `json:"representative_sentence"`
	TopKeywords            []string `json:"top_keywords"`
	NoteIDs                []string `json:"note_ids"`
}

// KeywordCount is one aggregated keyword with its week-wide frequency.
type KeywordCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Connection suggests linking two notes whose embeddings are close.
type Connection struct {
	FromNoteID string  `json:"from_note_id"`
	ToNoteID   string  `json:"to_note_id"`
	Similarity float64 `json:"similarity"`
	Reason     string  `json:"reason"`
}

// Data is the full report document persisted as the cache blob.
type Data struct {
	WeekKey              string           `json:"week_key"`
	TotalNotes           int              `json:"total_notes"`
	Clusters             []ClusterSummary `json:"clusters"`
	TopKeywords          []KeywordCount   `json:"top_keywords"`
	NewKeywords          []string         `json:"new_keywords"`
	PotentialConnections []Connection     `json:"potential_connections"`
	GeneratedAt          time.Time        `json:"generated_at"`
}

// Response wraps the report document. Report is the raw cached blob so a
// cache hit returns byte-identical content.
type Response struct {
	WeekKey          string          `json:"week_key"`
	Report           json.RawMessage `json:"report"`
	ProcessingTimeMS int64           `json:"processing_time_ms"`
}

// Weekly returns the report for weekKey, generating and caching it when
// absent or when regenerate is set. A cache hit reports zero processing
// time.
func (e *Engine) Weekly(ctx context.Context, userID, weekKey string, regenerate bool) (*Response, error) {
	year, week, err := ParseWeekKey(weekKey)
	if err != nil {
		return nil, err
	}

	if !regenerate {
		cached, err := e.Store.GetWeeklyReport(ctx, userID, weekKey)
		switch {
		case err == nil:
			return &Response{WeekKey: weekKey, Report: cached.Data, ProcessingTimeMS: 0}, nil
		case errors.Is(err, store.ErrNotFound):
		default:
			return nil, err
		}
	}

	start := time.Now()
	from, to := WeekRange(year, week)

	notes, err := e.Store.NotesCreatedBetween(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, ErrNoNotes
	}

	noteIDs := make([]string, len(notes))
	for i, n := range notes {
		noteIDs[i] = n.ID
	}
	keywordsByNote, err := e.Store.KeywordsForNotes(ctx, noteIDs)
	if err != nil {
		return nil, err
	}

	allKeywords := rankKeywords(notes, keywordsByNote)

	data := Data{
		WeekKey:     weekKey,
		TotalNotes:  len(notes),
		Clusters:    e.buildClusters(notes, keywordsByNote),
		TopKeywords: capKeywords(allKeywords, topKeywordCount),
		GeneratedAt: time.Now().UTC(),
	}
	data.PotentialConnections = potentialConnections(notes)

	data.NewKeywords, err = e.newKeywords(ctx, userID, year, week, allKeywords)
	if err != nil {
		return nil, err
	}

	blob, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	if err := e.Store.SaveWeeklyReport(ctx, store.WeeklyReport{
		UserID:  userID,
		WeekKey: weekKey,
		Data:    blob,
	}); err != nil {
		return nil, err
	}

	elapsed := time.Since(start).Milliseconds()
	if elapsed < 1 {
		// Generation always reports at least a millisecond so a fresh run
		// is distinguishable from a cache hit.
		elapsed = 1
	}

	log.Info().
		Str("user_id", userID).
		Str("week_key", weekKey).
		Int("notes", data.TotalNotes).
		Int("clusters", len(data.Clusters)).
		Msg("weekly report generated")

	return &Response{WeekKey: weekKey, Report: blob, ProcessingTimeMS: elapsed}, nil
}

// clusterCountFor maps week note count to cluster count.
func clusterCountFor(n int) int {
	switch {
	case n < 3:
		return 1
	case n < 10:
		return 2
	case n < 20:
		return 3
	case n < 40:
		return 4
	default:
		return 5
	}
}

func (e *Engine) buildClusters(notes []store.Note, keywordsByNote map[string][]string) []ClusterSummary {
	k := clusterCountFor(len(notes))

	vectors := make([][]float32, len(notes))
	for i, n := range notes {
		vectors[i] = n.Embedding.Slice()
	}
	assign := kmeans(vectors, k, e.Seed, e.Restarts)

	members := make(map[int][]store.Note)
	for i, c := range assign {
		members[c] = append(members[c], notes[i])
	}

	clusterIDs := make([]int, 0, len(members))
	for c := range members {
		clusterIDs = append(clusterIDs, c)
	}
	sort.Ints(clusterIDs)

	out := make([]ClusterSummary, 0, len(clusterIDs))
	for _, c := range clusterIDs {
		group := members[c]

		// Notes arrive created-ascending, so the first member is the
		// earliest note in the cluster.
		rep := []rune(group[0].Body)
		if len(rep) > representativeSize {
			rep = rep[:representativeSize]
		}

		counts := make(map[string]int)
		ids := make([]string, len(group))
		for i, n := range group {
			ids[i] = n.ID
			for _, kw := range keywordsByNote[n.ID] {
				counts[kw]++
			}
		}

		out = append(out, ClusterSummary{
			ClusterID:              c,
			Size:                   len(group),
			RepresentativeSentence: string(rep),
			TopKeywords:            topNames(counts, clusterKeywordsN),
			NoteIDs:                ids,
		})
	}
	return out
}

// rankKeywords aggregates keyword frequencies across the whole week,
// sorted by count descending then name ascending.
func rankKeywords(notes []store.Note, keywordsByNote map[string][]string) []KeywordCount {
	counts := make(map[string]int)
	for _, n := range notes {
		for _, kw := range keywordsByNote[n.ID] {
			counts[kw]++
		}
	}

	out := make([]KeywordCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, KeywordCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func capKeywords(ranked []KeywordCount, limit int) []KeywordCount {
	if len(ranked) > limit {
		return ranked[:limit]
	}
	return ranked
}

// topNames is topKeywords without the counts, for cluster summaries.
func topNames(counts map[string]int, limit int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > limit {
		names = names[:limit]
	}
	return names
}

// newKeywords diffs the current week's keyword set against the previous
// ISO week's, keeping up to newKeywordCap entries ordered by current-week
// frequency.
func (e *Engine) newKeywords(ctx context.Context, userID string, year, week int, current []KeywordCount) ([]string, error) {
	prevYear, prevWeek := 0, 0
	fmt.Sscanf(PrevWeekKey(year, week), "%d-W%d", &prevYear, &prevWeek)
	from, to := WeekRange(prevYear, prevWeek)

	prevNotes, err := e.Store.NotesCreatedBetween(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	prevSet := make(map[string]struct{})
	if len(prevNotes) > 0 {
		ids := make([]string, len(prevNotes))
		for i, n := range prevNotes {
			ids[i] = n.ID
		}
		prevKWs, err := e.Store.KeywordsForNotes(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, names := range prevKWs {
			for _, name := range names {
				prevSet[name] = struct{}{}
			}
		}
	}

	out := make([]string, 0, newKeywordCap)
	for _, kc := range current {
		if _, seen := prevSet[kc.Name]; seen {
			continue
		}
		out = append(out, kc.Name)
		if len(out) == newKeywordCap {
			break
		}
	}
	return out, nil
}

// potentialConnections scans all unordered note pairs for embedding
// similarity at or above the threshold, keeping the top pairs.
func potentialConnections(notes []store.Note) []Connection {
	var out []Connection
	for i := 0; i < len(notes); i++ {
		for j := i + 1; j < len(notes); j++ {
			sim := cosineSimilarity(notes[i].Embedding.Slice(), notes[j].Embedding.Slice())
			if sim < connectionMinSim {
				continue
			}
			out = append(out, Connection{
				FromNoteID: notes[i].ID,
				ToNoteID:   notes[j].ID,
				Similarity: sim,
				Reason:     fmt.Sprintf("high similarity (%.2f)", sim),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if len(out) > connectionCap {
		out = out[:connectionCap]
	}
	return out
}
