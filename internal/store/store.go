// Package store is the persistence layer: Postgres via pgx, with the
// notes table carrying a pgvector embedding column. All queries are scoped
// by user id; LWW comparisons run inside row-locked transactions so
// concurrent writes against the same note serialize.
package store

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

var (
	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the entity exists but belongs to another user.
	ErrForbidden = errors.New("forbidden")
	// ErrEmailTaken is the unique-key conflict on user registration.
	ErrEmailTaken = errors.New("email already registered")
)

// Store wraps the connection pool with entity-level operations.
type Store struct {
	DB *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

// User is an account row. Never hard-deleted.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Note is a synced note row. Embedding is nil only when generation failed.
type Note struct {
	ID              string
	UserID          string
	Body            string
	Importance      int
	SourceURL       *string
	ImagePath       *string
	Embedding       *pgvector.Vector
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
	ServerTimestamp time.Time
}

// Neighbor is one vector-nearest-neighbor candidate with its cosine
// similarity to the query embedding.
type Neighbor struct {
	ID         string
	Body       string
	CreatedAt  time.Time
	Similarity float64
}

// Relation links two notes. Immutable after insert; deletes are hard.
type Relation struct {
	ID              string
	FromNoteID      string
	ToNoteID        string
	RelationType    string
	CreatedAt       time.Time
	ServerTimestamp time.Time
}

// Reflection is one per-user per-day journal entry.
type Reflection struct {
	UserID          string
	Date            string
	Content         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ServerTimestamp time.Time
}

// WeeklyReport caches a generated report document per (user, week).
type WeeklyReport struct {
	UserID    string
	WeekKey   string
	Data      []byte
	CreatedAt time.Time
}
