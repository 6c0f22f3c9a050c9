package record

import (
	"encoding/json"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/pkg/timestamp"
)

// Request is the typed envelope for one router invocation's arguments.
// Make populates it at most once; Data and JSON fail before that. A Request
// is safe for concurrent readers after Make returns.
type Request struct {
	id          uuid.UUID
	submittedAt int64
	model       *Model

	mu   sync.Mutex
	made bool
	data map[string]any
}

// NewRequest allocates an empty request. A nil model means arguments are
// stored verbatim without validation.
func NewRequest(model *Model) *Request {
	return &Request{
		id:          uuid.New(),
		submittedAt: timestamp.Now(),
		model:       model,
	}
}

// ID returns the request's unique id.
func (r *Request) ID() uuid.UUID { return r.id }

// SubmittedAt returns the creation time as Unix milliseconds.
func (r *Request) SubmittedAt() int64 { return r.submittedAt }

// Model returns the declared argument model, nil when unvalidated.
func (r *Request) Model() *Model { return r.model }

// Make freezes kwargs into the request. It may be called at most once;
// a second call is ErrAlreadyCompleted. When a model is declared the kwargs
// are validated against it before freezing, and a validation failure leaves
// the request unpopulated so it can be retried with corrected arguments.
func (r *Request) Make(kwargs map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.made {
		return errors.WrapInvalid(errors.ErrAlreadyCompleted, "record", "Request.Make",
			"request "+r.id.String()+" already populated")
	}
	if r.model != nil {
		if err := r.model.Validate(kwargs); err != nil {
			return err
		}
	}
	r.data = maps.Clone(kwargs)
	if r.data == nil {
		r.data = map[string]any{}
	}
	r.made = true
	return nil
}

// Made reports whether Make has succeeded.
func (r *Request) Made() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.made
}

// Data returns a copy of the frozen arguments, or ErrNotPopulated before Make.
func (r *Request) Data() (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.made {
		return nil, errors.WrapInvalid(errors.ErrNotPopulated, "record", "Request.Data",
			"request "+r.id.String()+" read before Make")
	}
	return maps.Clone(r.data), nil
}

// JSON serializes the request envelope, or ErrNotPopulated before Make.
func (r *Request) JSON() ([]byte, error) {
	data, err := r.Data()
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{
		"id":           r.id.String(),
		"submitted_at": timestamp.Format(r.submittedAt),
		"data":         data,
	})
}
