// Package storage persists named record collections as whole JSON documents.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Collection names used by the tool library.
const (
	Tools         = "tools"
	Users         = "users"
	Loans         = "loans"
	Solicitations = "solicitations"
)

// Gateway loads and saves one collection at a time. Save replaces the stored
// document wholesale; readers see either the old or the new content.
type Gateway interface {
	// Load returns the raw JSON array for collection, or "[]" if it was never saved.
	Load(collection string) ([]byte, error)
	Save(collection string, data []byte) error
	Close() error
}

// Identified is implemented by every persisted record.
type Identified interface {
	GetID() int64
}

var emptyArray = []byte("[]")

// Load decodes the collection into a slice of T. An absent or empty
// collection yields an empty, non-nil slice.
func Load[T any](gw Gateway, collection string) ([]T, error) {
	raw, err := gw.Load(collection)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}
	records := []T{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return records, nil
}

// Save encodes records as a pretty-printed JSON array and hands it to the gateway.
func Save[T any](gw Gateway, collection string, records []T) error {
	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", collection, err)
	}
	data = append(data, '\n')
	if err := gw.Save(collection, data); err != nil {
		return fmt.Errorf("save %s: %w", collection, err)
	}
	return nil
}

// NextID returns max(id)+1, or 1 for an empty collection.
func NextID[T Identified](records []T) int64 {
	var max int64
	for _, r := range records {
		if id := r.GetID(); id > max {
			max = id
		}
	}
	return max + 1
}
