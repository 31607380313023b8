package syncx

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// EntityType identifies which table a pushed change targets.
type EntityType string

const (
	EntityNote       EntityType = "note"
	EntityRelation   EntityType = "relation"
	EntityReflection EntityType = "reflection"
)

// Operation is the client-requested mutation kind.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Change is one element of a push batch. Payload stays raw until the
// (entity_type, operation) pair selects a concrete shape.
type Change struct {
	EntityType EntityType      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Operation  Operation       `json:"operation"`
	Payload    json.RawMessage `json:"payload"`
}

// ValidationError marks a per-item payload problem. Items failing with it
// are reported in the push results array, never as an envelope error.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Concrete payload shapes, one per (entity_type, operation).

// NoteUpsert covers note insert and update (identical upsert semantics).
// Body is a pointer so the key must be present but an empty string is a
// valid body.
type NoteUpsert struct {
	Body       *string    `json:"body" validate:"required"`
	Importance int        `json:"importance" validate:"required,min=1,max=5"`
	SourceURL  *string    `json:"source_url"`
	ImagePath  *string    `json:"image_path"`
	CreatedAt  time.Time  `json:"created_at" validate:"required"`
	UpdatedAt  time.Time  `json:"updated_at" validate:"required"`
	DeletedAt  *time.Time `json:"deleted_at"`
}

// NoteDelete carries an optional tombstone timestamp; the server
// substitutes now() when absent.
type NoteDelete struct {
	DeletedAt *time.Time `json:"deleted_at"`
}

type RelationInsert struct {
	FromNoteID   string    `json:"from_note_id" validate:"required"`
	ToNoteID     string    `json:"to_note_id" validate:"required"`
	RelationType string    `json:"relation_type" validate:"required"`
	CreatedAt    time.Time `json:"created_at" validate:"required"`
}

type RelationDelete struct{}

// ReflectionUpsert covers reflection insert and update (one row per
// user per calendar day).
type ReflectionUpsert struct {
	Date      string    `json:"date" validate:"required,datetime=2006-01-02"`
	Content   *string   `json:"content" validate:"required"`
	CreatedAt time.Time `json:"created_at" validate:"required"`
	UpdatedAt time.Time `json:"updated_at" validate:"required"`
}

type ReflectionDelete struct {
	Date string `json:"date"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseChange decodes a change's payload into its typed variant and
// validates required fields. Unknown entity types and operations are
// rejected with a ValidationError.
func ParseChange(c Change) (any, error) {
	if c.EntityID == "" {
		return nil, validationf("missing entity_id")
	}

	switch c.EntityType {
	case EntityNote:
		switch c.Operation {
		case OpInsert, OpUpdate:
			return decode[NoteUpsert](c.Payload)
		case OpDelete:
			return decode[NoteDelete](c.Payload)
		}
	case EntityRelation:
		switch c.Operation {
		case OpInsert:
			return decode[RelationInsert](c.Payload)
		case OpDelete:
			return RelationDelete{}, nil
		case OpUpdate:
			return nil, validationf("relations are immutable, operation %q not allowed", c.Operation)
		}
	case EntityReflection:
		switch c.Operation {
		case OpInsert, OpUpdate:
			return decode[ReflectionUpsert](c.Payload)
		case OpDelete:
			return decode[ReflectionDelete](c.Payload)
		}
	default:
		return nil, validationf("unknown entity type: %q", c.EntityType)
	}

	return nil, validationf("unknown operation %q for entity type %q", c.Operation, c.EntityType)
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, validationf("malformed payload: %v", err)
	}
	if err := validate.Struct(&v); err != nil {
		if _, ok := err.(validator.ValidationErrors); ok {
			return v, validationf("invalid payload: %v", err)
		}
		return v, err
	}
	return v, nil
}
