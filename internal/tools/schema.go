package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator compiles every contract's InputSchema once and validates tool
// inputs against it before dispatch (spec §4.1a). A failure here is an
// InputValidation error (spec §7) — the specialist's tool call observes it
// as its own error and proceeds per its existing error-handling contract;
// nothing panics.
type Validator struct {
	mu       sync.Mutex
	compiled map[Name]*jsonschema.Schema
}

// NewValidator compiles the schemas in Registry.
func NewValidator() (*Validator, error) {
	v := &Validator{compiled: make(map[Name]*jsonschema.Schema, len(Registry))}
	compiler := jsonschema.NewCompiler()

	for name, c := range Registry {
		url := fmt.Sprintf("mem://tools/%s.json", name)
		var doc any
		if err := json.Unmarshal(c.InputSchema, &doc); err != nil {
			return nil, fmt.Errorf("tools: decoding schema for %q: %w", name, err)
		}
		if err := compiler.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("tools: adding schema resource for %q: %w", name, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("tools: compiling schema for %q: %w", name, err)
		}
		v.compiled[name] = schema
	}
	return v, nil
}

// Validate checks input (any JSON-marshalable value) against name's
// compiled input schema.
func (v *Validator) Validate(_ context.Context, name Name, input any) error {
	v.mu.Lock()
	schema, ok := v.compiled[name]
	v.mu.Unlock()
	if !ok {
		return fmt.Errorf("tools: no contract registered for %q", name)
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("tools: marshaling input for %q: %w", name, err)
	}

	var decoded any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return fmt.Errorf("tools: decoding input for %q: %w", name, err)
	}

	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("tools: input validation failed for %q: %w", name, err)
	}
	return nil
}

// CallPayload is spec §3's ToolCallPayload: the record produced whenever a
// specialist invokes a tool. Output is the sole cross-agent contract; Raw
// exists for diagnostics only and must never be read by another agent.
type CallPayload struct {
	Tool     Name
	Input    any
	Contract Contract
	Output   any // projected — see Project()
	Raw      any // diagnostics only
}

// Invoke validates input, calls fetch, and projects the result into a
// CallPayload. fetch returns the provider's raw response in whatever shape
// Project understands (map[string]any or []map[string]any).
func Invoke(ctx context.Context, v *Validator, name Name, input any, fetch func(ctx context.Context) (any, error)) (CallPayload, error) {
	c, ok := Registry[name]
	if !ok {
		return CallPayload{}, fmt.Errorf("tools: unknown contract %q", name)
	}

	if v != nil {
		if err := v.Validate(ctx, name, input); err != nil {
			return CallPayload{}, err
		}
	}

	raw, err := fetch(ctx)
	if err != nil {
		return CallPayload{}, err
	}

	projected, err := Project(name, raw)
	if err != nil {
		return CallPayload{}, err
	}

	return CallPayload{Tool: name, Input: input, Contract: c, Output: projected, Raw: raw}, nil
}
