// Package persistence saves and restores worlds: a versioned JSON document
// validated against an embedded schema, zstd-compressed snapshot files, and
// a SQLite archive of snapshots and events.
package persistence

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/talgya/living-world/internal/content"
	"github.com/talgya/living-world/internal/engine"
)

// ErrBadSnapshot reports persisted state that cannot be loaded. Loading is
// all or nothing; no partial world is ever returned.
var ErrBadSnapshot = errors.New("persistence: bad snapshot")

//go:embed state.schema.json
var stateSchema string

const schemaURL = "https://living-world.local/schemas/state.schema.json"

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString(schemaURL, stateSchema)
})

// Encode serializes a state document.
func Encode(st *engine.State) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// Decode parses and validates a state document. It checks shape against the
// schema and rejects unknown fields; cross-references are checked by
// engine.Restore.
func Decode(data []byte) (*engine.State, error) {
	schema, err := compiled()
	if err != nil {
		return nil, fmt.Errorf("compile state schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}

	dec = json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var st engine.State
	if err := dec.Decode(&st); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	return &st, nil
}

// Save exports and encodes a world. Call it between steps.
func Save(w *engine.World) ([]byte, error) {
	st, err := w.Export()
	if err != nil {
		return nil, err
	}
	return Encode(st)
}

// Load decodes a document and rebuilds the world from it.
func Load(data []byte, opts engine.Options, factory content.Factory) (*engine.World, error) {
	st, err := Decode(data)
	if err != nil {
		return nil, err
	}
	w, err := engine.Restore(st, opts, factory)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	return w, nil
}
