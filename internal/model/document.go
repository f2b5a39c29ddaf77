package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Document is the user object exactly as the backend sent it, keyed by
// top-level field. Keeping the raw form lets shallow merges and persistence
// round-trip fields the typed User does not know about.
type Document map[string]json.RawMessage

// ParseDocument decodes a serialized user object
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse user document: %w", err)
	}
	return doc, nil
}

// Clone returns a shallow copy; the raw values are never mutated in place.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge returns a copy of d with the top-level fields of partial replacing
// the existing ones. Nested objects are replaced, not merged.
func (d Document) Merge(partial map[string]any) (Document, error) {
	out := d.Clone()
	if out == nil {
		out = make(Document, len(partial))
	}
	for k, v := range partial {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", k, err)
		}
		out[k] = raw
	}
	return out, nil
}

// ErrInvalidUser is returned when a document field has the wrong JSON type
var ErrInvalidUser = errors.New("invalid user document")

// User decodes the typed view of the document
func (d Document) User() (*User, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode user document: %w", err)
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUser, err)
	}
	return &u, nil
}

// Encode serializes the document for storage
func (d Document) Encode() (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode user document: %w", err)
	}
	return string(raw), nil
}
