// Package intake decodes raw model output into typed intake actions.
package intake

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"mortgageintake/pkg/domain"
)

//go:embed batch.schema.json
var batchSchema string

const schemaURL = "https://mortgageintake.schemas.local/intake/batch.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, strings.NewReader(batchSchema)); err != nil {
			compileErr = fmt.Errorf("intake schema load failed: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("intake schema compile failed: %w", compileErr)
		}
	})
	return compiled, compileErr
}

// Decode validates data against the batch schema and decodes it into actions.
// A batch is either a bare array of actions or an object with an "actions"
// array. Shape problems wrap domain.ErrMalformedAction.
func Decode(data []byte) ([]domain.Action, error) {
	s, err := schema()
	if err != nil {
		return nil, err
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode batch: %v", domain.ErrMalformedAction, err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedAction, err)
	}

	raw := data
	if _, isObject := doc.(map[string]any); isObject {
		var wrapper struct {
			Actions json.RawMessage `json:"actions"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedAction, err)
		}
		raw = wrapper.Actions
	}
	var actions []domain.Action
	if err := json.Unmarshal(raw, &actions); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedAction, unwrapMalformed(err))
	}
	for i := range actions {
		actions[i].Index = i
	}
	return actions, nil
}

// DecodeReader reads a whole batch from r.
func DecodeReader(r io.Reader) ([]domain.Action, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	return Decode(data)
}

// unwrapMalformed strips a nested sentinel so the message does not repeat it.
func unwrapMalformed(err error) string {
	return strings.TrimPrefix(err.Error(), domain.ErrMalformedAction.Error()+": ")
}
