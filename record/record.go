// Package record defines the normalized data envelope that flows between
// routers and the persistence layer: field maps (Record), model-bound field
// maps (Object), the make-once Request that carries validated call arguments,
// and the symbol-tagged Response a router yields.
package record

import (
	"encoding/json"
	"maps"
)

// Payload is the normalized body of a Response: either a bare Record or a
// model-bound Object whose JSON projection re-validates first.
type Payload interface {
	// FieldMap returns a copy of the normalized fields.
	FieldMap() map[string]any
	// JSON serializes the payload.
	JSON() ([]byte, error)
}

// Record is an untyped map of normalized fields.
type Record struct {
	fields map[string]any
}

// NewRecord builds a Record, copying the field map so the caller's map stays
// independent.
func NewRecord(fields map[string]any) Record {
	return Record{fields: maps.Clone(fields)}
}

// FieldMap returns a copy of the fields.
func (r Record) FieldMap() map[string]any {
	return maps.Clone(r.fields)
}

// Field returns a single field value.
func (r Record) Field(name string) (any, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// Len returns the number of fields.
func (r Record) Len() int { return len(r.fields) }

// JSON serializes the fields.
func (r Record) JSON() ([]byte, error) {
	return json.Marshal(r.fields)
}

// Object is a Record bound to the Model describing its shape.
type Object struct {
	Record
	model *Model
}

// NewObject binds a field map to a model.
func NewObject(model *Model, fields map[string]any) Object {
	return Object{Record: NewRecord(fields), model: model}
}

// Model returns the bound model.
func (o Object) Model() *Model { return o.model }

// JSON validates the fields through the bound model before serializing.
func (o Object) JSON() ([]byte, error) {
	if o.model != nil {
		if err := o.model.Validate(o.fields); err != nil {
			return nil, err
		}
	}
	return o.Record.JSON()
}
