package tablestore

import (
	"strings"

	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/record"
)

// Schema declares one provider table. The optional model validates rows on
// insert; a nil model stores rows verbatim. Like models, schemas remember
// their provider so the registry can verify parent identity.
type Schema struct {
	provider string
	name     string
	model    *record.Model
}

// NewSchema declares a table.
func NewSchema(provider, name string, model *record.Model) (Schema, error) {
	if provider == "" || name == "" {
		return Schema{}, errors.WrapFatal(errors.ErrInvalidConfig, "tablestore", "NewSchema",
			"provider and table name are required")
	}
	return Schema{provider: provider, name: name, model: model}, nil
}

// MustSchema is NewSchema that panics on error, for package-level
// declarations in provider packages.
func MustSchema(provider, name string, model *record.Model) Schema {
	s, err := NewSchema(provider, name, model)
	if err != nil {
		panic(err)
	}
	return s
}

// Provider returns the owning provider's name.
func (s Schema) Provider() string { return s.provider }

// Name returns the bare table name.
func (s Schema) Name() string { return s.name }

// Model returns the row validation model, nil when rows are unvalidated.
func (s Schema) Model() *record.Model { return s.model }

// Qualified returns the provider.table address used in Store calls.
func (s Schema) Qualified() string {
	return s.provider + "." + s.name
}

// Bucket returns the KV bucket name backing this table. Bucket names allow
// only alphanumerics, dash and underscore.
func (s Schema) Bucket() string {
	sanitize := func(v string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
				return r
			default:
				return '_'
			}
		}, v)
	}
	return "money_" + sanitize(s.provider) + "_" + sanitize(s.name)
}

// validateRow checks fields against the schema's model when one is declared.
func (s Schema) validateRow(fields map[string]any) error {
	if s.model == nil {
		return nil
	}
	return s.model.Validate(fields)
}
