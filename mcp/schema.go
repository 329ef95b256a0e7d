package mcp

import (
	"bytes"
	"encoding/json"

	"github.com/fwojciec/cargomcp"
	"github.com/google/jsonschema-go/jsonschema"
)

// closed is the additionalProperties value that forbids unknown fields.
var closed = &jsonschema.Schema{Not: &jsonschema.Schema{}}

func object(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: closed,
	}
}

func str(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func nonEmpty(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description, MinLength: ptr(1)}
}

func boolean(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: description}
}

func integer(description string, minimum, maximum float64, def string) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: "integer", Description: description, Minimum: &minimum}
	if maximum > 0 {
		s.Maximum = &maximum
	}
	if def != "" {
		s.Default = json.RawMessage(def)
	}
	return s
}

func enum(description string, values []string) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: "string", Description: description}
	for _, v := range values {
		s.Enum = append(s.Enum, v)
	}
	return s
}

func ptr[T any](v T) *T { return &v }

var projectDir = str("Directory inside the Cargo project. Defaults to the server's project directory.")

// decode validates raw tool arguments against schema and decodes them into
// dst, rejecting fields dst does not declare.
func decode(schema *jsonschema.Resolved, raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return cargomcp.Errorf(cargomcp.EINVALID, "arguments are not valid JSON: %v", err)
	}
	if _, ok := instance.(map[string]any); !ok {
		return cargomcp.Errorf(cargomcp.EINVALID, "arguments must be a JSON object")
	}
	if err := schema.Validate(instance); err != nil {
		return cargomcp.Errorf(cargomcp.EINVALID, "invalid arguments: %v", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return cargomcp.Errorf(cargomcp.EINVALID, "invalid arguments: %v", err)
	}
	return nil
}
