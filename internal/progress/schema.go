package progress

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/tome/internal/chunk"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	stateSchema = sync.OnceValues(func() (*jsonschema.Schema, error) { return compileSchema("state.schema.json") })
	unitsSchema = sync.OnceValues(func() (*jsonschema.Schema, error) { return compileSchema("units.schema.json") })
)

func compileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", name, err)
	}
	return schema, nil
}

func validateAgainst(schema func() (*jsonschema.Schema, error), raw []byte) error {
	s, err := schema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrStateCorruption, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrStateCorruption, err)
	}
	return nil
}

// DecodeState parses and validates a persisted state record.
func DecodeState(raw []byte) (*JobState, error) {
	if err := validateAgainst(stateSchema, raw); err != nil {
		return nil, err
	}
	var st JobState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorruption, err)
	}
	if err := st.Check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorruption, err)
	}
	st.normalize()
	return &st, nil
}

// EncodeState serializes a state record after checking its invariants.
func EncodeState(st *JobState) ([]byte, error) {
	if err := st.Check(); err != nil {
		return nil, fmt.Errorf("refusing to persist invalid state: %w", err)
	}
	c := st.Clone()
	c.normalize()
	return json.MarshalIndent(c, "", "  ")
}

// DecodeUnits parses and validates a persisted unit list.
func DecodeUnits(raw []byte) ([]chunk.Unit, error) {
	if err := validateAgainst(unitsSchema, raw); err != nil {
		return nil, err
	}
	var units []chunk.Unit
	if err := json.Unmarshal(raw, &units); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorruption, err)
	}
	if err := CheckUnits(units); err != nil {
		return nil, err
	}
	return units, nil
}

// EncodeUnits serializes a unit list.
func EncodeUnits(units []chunk.Unit) ([]byte, error) {
	if units == nil {
		units = []chunk.Unit{}
	}
	return json.MarshalIndent(units, "", "  ")
}

// CheckUnits verifies numbering is dense from 1 and fingerprints match text.
func CheckUnits(units []chunk.Unit) error {
	for i, u := range units {
		if u.Number != i+1 {
			return fmt.Errorf("%w: unit at position %d is numbered %d", ErrStateCorruption, i+1, u.Number)
		}
		if u.Fingerprint != chunk.Fingerprint(u.Text) {
			return fmt.Errorf("%w: unit %d fingerprint mismatch", ErrStateCorruption, u.Number)
		}
	}
	return nil
}
