package syncservice

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/synapselabs/synapse-api/internal/derive"
	"github.com/synapselabs/synapse-api/internal/store"
)

// fakeStore mirrors the store's LWW and monotonic-timestamp semantics in
// memory so the sync engine can be exercised without Postgres.
type fakeStore struct {
	notes       map[string]*store.Note
	noteKWs     map[string][]store.DerivedKeyword
	relations   map[string]*store.Relation
	reflections map[string]*store.Reflection // key: userID|date

	clock time.Time

	failUpsertNote bool // simulate a storage error on the next note upsert
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		notes:       make(map[string]*store.Note),
		noteKWs:     make(map[string][]store.DerivedKeyword),
		relations:   make(map[string]*store.Relation),
		reflections: make(map[string]*store.Reflection),
		clock:       time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
	}
}

// tick advances the fake wall clock, guaranteeing strictly increasing
// server timestamps.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Microsecond)
	return f.clock
}

func (f *fakeStore) GetNoteMeta(_ context.Context, noteID string) (*store.NoteMeta, error) {
	n, ok := f.notes[noteID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.NoteMeta{UserID: n.UserID, UpdatedAt: n.UpdatedAt}, nil
}

func (f *fakeStore) UpsertNote(_ context.Context, w store.NoteWrite, kws []store.DerivedKeyword) (bool, error) {
	if f.failUpsertNote {
		f.failUpsertNote = false
		return false, errors.New("storage failure")
	}

	existing, ok := f.notes[w.ID]
	if ok {
		if existing.UserID != w.UserID {
			return false, store.ErrForbidden
		}
		if !w.UpdatedAt.After(existing.UpdatedAt) {
			return false, nil
		}
		existing.Body = w.Body
		existing.Importance = w.Importance
		existing.SourceURL = w.SourceURL
		existing.ImagePath = w.ImagePath
		existing.Embedding = w.Embedding
		existing.UpdatedAt = w.UpdatedAt
		existing.DeletedAt = w.DeletedAt
		existing.ServerTimestamp = f.tick()
	} else {
		f.notes[w.ID] = &store.Note{
			ID: w.ID, UserID: w.UserID, Body: w.Body, Importance: w.Importance,
			SourceURL: w.SourceURL, ImagePath: w.ImagePath, Embedding: w.Embedding,
			CreatedAt: w.CreatedAt, UpdatedAt: w.UpdatedAt, DeletedAt: w.DeletedAt,
			ServerTimestamp: f.tick(),
		}
	}
	f.noteKWs[w.ID] = kws
	return true, nil
}

func (f *fakeStore) SoftDeleteNote(_ context.Context, userID, noteID string, deletedAt time.Time) (bool, error) {
	n, ok := f.notes[noteID]
	if !ok {
		return false, nil
	}
	if n.UserID != userID {
		return false, store.ErrForbidden
	}
	if !deletedAt.After(n.UpdatedAt) {
		return false, nil
	}
	d := deletedAt
	n.DeletedAt = &d
	n.UpdatedAt = deletedAt
	n.ServerTimestamp = f.tick()
	return true, nil
}

func (f *fakeStore) ListNotesSince(_ context.Context, userID string, since *time.Time, limit int) ([]store.Note, error) {
	var out []store.Note
	for _, n := range f.notes {
		if n.UserID != userID {
			continue
		}
		if since != nil && !n.ServerTimestamp.After(*since) {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ServerTimestamp.Before(out[j].ServerTimestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) InsertRelation(_ context.Context, r store.Relation) error {
	if _, exists := f.relations[r.ID]; exists {
		return nil
	}
	r.ServerTimestamp = f.tick()
	f.relations[r.ID] = &r
	return nil
}

func (f *fakeStore) DeleteRelation(_ context.Context, userID, relationID string) error {
	r, ok := f.relations[relationID]
	if !ok {
		return nil
	}
	if from, ok := f.notes[r.FromNoteID]; ok && from.UserID == userID {
		delete(f.relations, relationID)
	}
	return nil
}

func (f *fakeStore) ListRelationsSince(_ context.Context, userID string, since *time.Time, limit int) ([]store.Relation, error) {
	var out []store.Relation
	for _, r := range f.relations {
		from, ok := f.notes[r.FromNoteID]
		if !ok || from.UserID != userID {
			continue
		}
		if since != nil && !r.ServerTimestamp.After(*since) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ServerTimestamp.Before(out[j].ServerTimestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UpsertReflection(_ context.Context, r store.Reflection) (bool, error) {
	key := r.UserID + "|" + r.Date
	existing, ok := f.reflections[key]
	if ok {
		if !r.UpdatedAt.After(existing.UpdatedAt) {
			return false, nil
		}
		existing.Content = r.Content
		existing.UpdatedAt = r.UpdatedAt
		existing.ServerTimestamp = f.tick()
		return true, nil
	}
	r.ServerTimestamp = f.tick()
	f.reflections[key] = &r
	return true, nil
}

func (f *fakeStore) DeleteReflection(_ context.Context, userID, date string) error {
	delete(f.reflections, userID+"|"+date)
	return nil
}

func (f *fakeStore) ListReflectionsSince(_ context.Context, userID string, since *time.Time, limit int) ([]store.Reflection, error) {
	var out []store.Reflection
	for _, r := range f.reflections {
		if r.UserID != userID {
			continue
		}
		if since != nil && !r.ServerTimestamp.After(*since) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ServerTimestamp.Before(out[j].ServerTimestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeDeriver returns a fixed vector plus naive word keywords; failEmbed
// simulates an embedding provider outage.
type fakeDeriver struct {
	failEmbed bool
}

func (d *fakeDeriver) Derive(_ context.Context, _, body string) (derive.Result, error) {
	var res derive.Result
	if body == "" {
		return res, nil
	}
	if !d.failEmbed {
		v := pgvector.NewVector([]float32{1, 0, 0})
		res.Embedding = &v
	}
	res.Keywords = []store.DerivedKeyword{{Name: "kw-" + body[:min(3, len(body))], Score: 1.0}}
	return res, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
