package symbol

import (
	"fmt"
	"strings"

	"github.com/ryan-d-young/money/errors"
)

// Collection is an ordered, deduplicated set of symbols of a single kind.
// Membership order is first-seen insertion order. The zero Collection is
// empty and has no kind.
type Collection struct {
	kind    Kind
	symbols []Symbol
	seen    map[string]struct{}
}

// NewCollection builds a collection from symbols. All members must share
// one kind; mixing kinds is ErrHeterogeneousCollection. Duplicates are
// dropped, keeping the first occurrence.
func NewCollection(symbols ...Symbol) (Collection, error) {
	c := Collection{seen: make(map[string]struct{}, len(symbols))}
	for _, s := range symbols {
		if err := c.add(s); err != nil {
			return Collection{}, err
		}
	}
	return c, nil
}

func (c *Collection) add(s Symbol) error {
	if s.IsZero() {
		return errors.WrapInvalid(errors.ErrInvalidSymbol, "symbol", "NewCollection", "zero symbol")
	}
	if len(c.symbols) == 0 {
		c.kind = s.Kind()
	} else if s.Kind() != c.kind {
		return errors.WrapInvalid(errors.ErrHeterogeneousCollection,
			"symbol", "NewCollection",
			fmt.Sprintf("cannot mix %s with %s", s.Kind(), c.kind))
	}
	if _, dup := c.seen[s.Raw()]; dup {
		return nil
	}
	c.seen[s.Raw()] = struct{}{}
	c.symbols = append(c.symbols, s)
	return nil
}

// ParseCollection decodes a serialized collection: comma-separated symbol
// tokens, optionally prefixed with the collection discriminator. Tokens are
// whitespace-trimmed and deduplicated in first-seen order.
func ParseCollection(data string) (Collection, error) {
	if len(data) > 0 && data[0] == discCollection {
		data = data[1:]
	}
	if data == "" {
		return Collection{}, errors.WrapInvalid(errors.ErrInvalidSymbol,
			"symbol", "ParseCollection", "empty input")
	}

	tokens := strings.Split(data, string(separator))
	symbols := make([]Symbol, 0, len(tokens))
	for _, tok := range tokens {
		tok = trimToken(tok)
		if tok == "" {
			continue
		}
		s, err := Parse(tok)
		if err != nil {
			return Collection{}, err
		}
		symbols = append(symbols, s)
	}
	if len(symbols) == 0 {
		return Collection{}, errors.WrapInvalid(errors.ErrInvalidSymbol,
			"symbol", "ParseCollection", "no symbols in input")
	}
	return NewCollection(symbols...)
}

// Kind returns the shared kind of the members.
func (c Collection) Kind() Kind { return c.kind }

// Len returns the number of members.
func (c Collection) Len() int { return len(c.symbols) }

// Symbols returns the members in insertion order. The slice is a copy.
func (c Collection) Symbols() []Symbol {
	out := make([]Symbol, len(c.symbols))
	copy(out, c.symbols)
	return out
}

// Contains reports membership by raw value.
func (c Collection) Contains(raw string) bool {
	_, ok := c.seen[raw]
	return ok
}

// String serializes the collection as the collection discriminator followed
// by comma-joined member symbols. Parsing the output yields an equal
// collection.
func (c Collection) String() string {
	if len(c.symbols) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte(discCollection)
	for i, s := range c.symbols {
		if i > 0 {
			b.WriteByte(separator)
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (c Collection) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Collection) UnmarshalText(text []byte) error {
	parsed, err := ParseCollection(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
