package record

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ryan-d-young/money/errors"
)

// Model is a named JSON Schema describing the shape of a router's inputs or
// outputs. The schema is compiled once at construction; Validate is safe for
// concurrent use. A model remembers the provider it was declared by so the
// registry can verify parent identity.
type Model struct {
	name     string
	provider string
	schema   *gojsonschema.Schema
	raw      []byte
}

// NewModel compiles a JSON Schema into a Model. An uncompilable schema is a
// fatal configuration error.
func NewModel(provider, name string, schemaJSON []byte) (*Model, error) {
	if name == "" {
		return nil, errors.WrapFatal(errors.ErrInvalidConfig, "record", "NewModel", "empty model name")
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, errors.WrapFatal(errors.ErrInvalidConfig, "record", "NewModel",
			fmt.Sprintf("schema compile for %q: %v", name, err))
	}
	return &Model{
		name:     name,
		provider: provider,
		schema:   schema,
		raw:      append([]byte(nil), schemaJSON...),
	}, nil
}

// MustModel is NewModel that panics on error, for package-level declarations.
func MustModel(provider, name string, schemaJSON []byte) *Model {
	m, err := NewModel(provider, name, schemaJSON)
	if err != nil {
		panic(err)
	}
	return m
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Provider returns the provider name the model was declared by.
func (m *Model) Provider() string { return m.provider }

// SchemaJSON returns the raw schema document.
func (m *Model) SchemaJSON() []byte {
	return append([]byte(nil), m.raw...)
}

// Validate checks a field map against the compiled schema, returning
// ErrInvalidRequest with the collected violations on failure.
func (m *Model) Validate(fields map[string]any) error {
	if fields == nil {
		fields = map[string]any{}
	}
	result, err := m.schema.Validate(gojsonschema.NewGoLoader(fields))
	if err != nil {
		return errors.WrapInvalid(errors.ErrInvalidRequest, "record", "Model.Validate",
			fmt.Sprintf("model %s: %v", m.name, err))
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return errors.WrapInvalid(errors.ErrInvalidRequest, "record", "Model.Validate",
		fmt.Sprintf("model %s: %s", m.name, strings.Join(violations, "; ")))
}
