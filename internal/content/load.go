package content

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDocument wraps every schema violation.
var ErrInvalidDocument = errors.New("content: invalid document")

const schemaURL = "document.schema.json"

//go:embed schema/document.schema.json
var schemaJSON []byte

//go:embed regions/default.yaml
var defaultRegionYAML []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func documentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("content: add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("content: compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// Parse validates and decodes a YAML document.
func Parse(data []byte) (*Document, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("content: decode: %w", err)
	}
	return &doc, nil
}

// Validate checks a YAML document against the embedded schema. The YAML tree
// is round-tripped through JSON so the validator sees JSON types.
func Validate(data []byte) error {
	schema, err := documentSchema()
	if err != nil {
		return err
	}
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("content: decode: %w", err)
	}
	if tree == nil {
		return fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

// LoadFile reads, validates and decodes the document at path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("content: read %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Default returns the embedded demo document.
func Default() (*Document, error) {
	return Parse(defaultRegionYAML)
}
