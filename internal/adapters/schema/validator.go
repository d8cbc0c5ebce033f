// Package schema validates rendered catalog documents against embedded
// STAC core JSON schemas.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jobrunner/stacsync/internal/domain"
)

const schemaBaseURL = "https://stacsync.local/schemas/"

//go:embed schemas/*.json
var schemaFS embed.FS

// Validator implements output.SchemaValidator.
type Validator struct {
	schemas map[domain.DocumentKind]*jsonschema.Schema
}

// NewValidator compiles the embedded catalog and item schemas.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true

	files := map[domain.DocumentKind]string{
		domain.KindCatalog: "catalog.json",
		domain.KindItem:    "item.json",
	}
	for _, name := range files {
		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("reading schema %s: %w", name, err)
		}
		if err := c.AddResource(schemaBaseURL+name, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("schema load failed for %s: %w", name, err)
		}
	}

	v := &Validator{schemas: make(map[domain.DocumentKind]*jsonschema.Schema, len(files))}
	for kind, name := range files {
		compiled, err := c.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("schema compile failed for %s: %w", name, err)
		}
		v.schemas[kind] = compiled
	}
	return v, nil
}

// Validate implements output.SchemaValidator.
func (v *Validator) Validate(doc domain.Document) error {
	s, ok := v.schemas[doc.Kind]
	if !ok {
		return &domain.ValidationError{
			Document: doc.Href,
			Kind:     string(doc.Kind),
			Message:  "no schema for document kind",
		}
	}

	value, err := unmarshalJSON(bytes.NewReader(doc.Body))
	if err != nil {
		return &domain.ValidationError{
			Document: doc.Href,
			Kind:     string(doc.Kind),
			Message:  fmt.Sprintf("invalid JSON: %v", err),
		}
	}

	if err := s.Validate(value); err != nil {
		msg := err.Error()
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			msg = describe(ve)
		}
		return &domain.ValidationError{
			Document: doc.Href,
			Kind:     string(doc.Kind),
			Message:  msg,
		}
	}
	return nil
}

// unmarshalJSON decodes r with json.UseNumber, as jsonschema/v5 requires
// for Schema.Validate, and rejects trailing data after the top-level value.
func unmarshalJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid character after top-level value")
	}
	return v, nil
}

// describe returns the deepest failure with its instance location.
func describe(ve *jsonschema.ValidationError) string {
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	loc := leaf.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, leaf.Message)
}
