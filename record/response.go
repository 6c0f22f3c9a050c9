package record

import (
	"encoding/json"

	"github.com/ryan-d-young/money/symbol"
)

// Response is one symbol-tagged unit of normalized data yielded by a router.
// The payload is owned exclusively by the response; the originating Request
// is shared, since a streaming router yields many responses for one request.
type Response struct {
	request    *Request
	identifier symbol.Symbol
	timestamp  symbol.Symbol
	attribute  symbol.Symbol
	payload    Payload
}

// ResponseOption customizes a Response at construction.
type ResponseOption func(*Response)

// WithIdentifier tags the response with a '$' symbol.
func WithIdentifier(s symbol.Symbol) ResponseOption {
	return func(r *Response) { r.identifier = s }
}

// WithTimestamp tags the response with an '@' symbol.
func WithTimestamp(s symbol.Symbol) ResponseOption {
	return func(r *Response) { r.timestamp = s }
}

// WithAttribute tags the response with a '#' symbol.
func WithAttribute(s symbol.Symbol) ResponseOption {
	return func(r *Response) { r.attribute = s }
}

// NewResponse builds a response for a request. The timestamp symbol defaults
// to the current time when not supplied.
func NewResponse(req *Request, payload Payload, opts ...ResponseOption) Response {
	r := Response{request: req, payload: payload}
	for _, opt := range opts {
		opt(&r)
	}
	if r.timestamp.IsZero() {
		r.timestamp = symbol.Now()
	}
	return r
}

// Request returns the originating request, nil for synthetic responses.
func (r Response) Request() *Request { return r.request }

// Identifier returns the '$' tag, possibly zero.
func (r Response) Identifier() symbol.Symbol { return r.identifier }

// Timestamp returns the '@' tag.
func (r Response) Timestamp() symbol.Symbol { return r.timestamp }

// Attribute returns the '#' tag, possibly zero.
func (r Response) Attribute() symbol.Symbol { return r.attribute }

// Payload returns the normalized body.
func (r Response) Payload() Payload { return r.payload }

// Fields returns a copy of the payload's normalized fields, nil when the
// response has no payload.
func (r Response) Fields() map[string]any {
	if r.payload == nil {
		return nil
	}
	return r.payload.FieldMap()
}

// JSON serializes the response envelope. Model-bound payloads re-validate
// during serialization.
func (r Response) JSON() ([]byte, error) {
	var payload json.RawMessage
	if r.payload != nil {
		raw, err := r.payload.JSON()
		if err != nil {
			return nil, err
		}
		payload = raw
	}

	envelope := map[string]any{
		"timestamp": r.timestamp.String(),
	}
	if !r.identifier.IsZero() {
		envelope["identifier"] = r.identifier.String()
	}
	if !r.attribute.IsZero() {
		envelope["attribute"] = r.attribute.String()
	}
	if r.request != nil {
		envelope["request_id"] = r.request.ID().String()
	}
	if payload != nil {
		envelope["payload"] = payload
	}
	return json.Marshal(envelope)
}
