// Package symbol implements the discriminator-prefixed addressing vocabulary
// used to tag every normalized record: who (Identifier), when (Timestamp),
// and what facet (Attribute), plus homogeneous Collections of symbols.
//
// Symbol kinds form a closed set enumerated at compile time; the wire format
// for a symbol is its kind's discriminator character followed by the raw
// value. Extension kinds can be registered at startup through RegisterKind,
// which fails fast on discriminator collisions.
package symbol

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/pkg/timestamp"
)

// Kind identifies a symbol's class. The built-in kinds are a closed set;
// values above KindCollection are minted by RegisterKind.
type Kind int

const (
	// KindIdentifier addresses an entity ("who"), discriminator '$'
	KindIdentifier Kind = iota
	// KindTimestamp addresses a point in time ("when"), discriminator '@'
	KindTimestamp
	// KindAttribute addresses an entity facet ("what"), discriminator '#'
	KindAttribute
	// KindCollection prefixes a serialized homogeneous collection, discriminator '+'
	KindCollection
)

const (
	discIdentifier = '$'
	discTimestamp  = '@'
	discAttribute  = '#'
	discCollection = '+'

	// separator joins collection tokens and is reserved in every raw value
	separator = ','
)

// kindTable maps registered discriminators to kinds. Built-in kinds are
// seeded here; RegisterKind extends it under kindMu.
var (
	kindMu    sync.RWMutex
	kindTable = map[byte]Kind{
		discIdentifier: KindIdentifier,
		discTimestamp:  KindTimestamp,
		discAttribute:  KindAttribute,
		discCollection: KindCollection,
	}
	kindNames = map[Kind]string{
		KindIdentifier: "identifier",
		KindTimestamp:  "timestamp",
		KindAttribute:  "attribute",
		KindCollection: "collection",
	}
	kindDiscriminators = map[Kind]byte{
		KindIdentifier: discIdentifier,
		KindTimestamp:  discTimestamp,
		KindAttribute:  discAttribute,
		KindCollection: discCollection,
	}
	nextKind = KindCollection + 1
)

// String returns the kind's name.
func (k Kind) String() string {
	kindMu.RLock()
	defer kindMu.RUnlock()
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Discriminator returns the kind's wire discriminator character.
func (k Kind) Discriminator() byte {
	kindMu.RLock()
	defer kindMu.RUnlock()
	return kindDiscriminators[k]
}

// RegisterKind registers an extension symbol kind under a new discriminator.
// Claiming a discriminator that is already taken (including the separator)
// is a fatal configuration error: ErrDuplicateDiscriminator. Registration
// must happen once per discriminator for the life of the process.
func RegisterKind(name string, discriminator byte) (Kind, error) {
	kindMu.Lock()
	defer kindMu.Unlock()

	if discriminator == separator {
		return 0, errors.WrapFatal(errors.ErrDuplicateDiscriminator,
			"symbol", "RegisterKind", fmt.Sprintf("discriminator %q is the separator", discriminator))
	}
	if existing, ok := kindTable[discriminator]; ok {
		return 0, errors.WrapFatal(errors.ErrDuplicateDiscriminator,
			"symbol", "RegisterKind",
			fmt.Sprintf("discriminator %q already claimed by %s", discriminator, kindNames[existing]))
	}

	k := nextKind
	nextKind++
	kindTable[discriminator] = k
	kindNames[k] = name
	kindDiscriminators[k] = discriminator
	return k, nil
}

// kindFor looks up the kind registered for a discriminator.
func kindFor(discriminator byte) (Kind, bool) {
	kindMu.RLock()
	defer kindMu.RUnlock()
	k, ok := kindTable[discriminator]
	return k, ok
}

// reserved reports whether c may not appear in a raw value: the separator
// and every registered discriminator are reserved.
func reserved(c byte) bool {
	if c == separator {
		return true
	}
	_, taken := kindFor(c)
	return taken
}

// Symbol is an immutable discriminator-tagged string value.
// The zero Symbol is invalid; construct through New or the kind helpers.
type Symbol struct {
	kind Kind
	raw  string
	set  bool
}

// New constructs a symbol of the given kind, rejecting raw values that are
// empty or contain reserved characters.
func New(kind Kind, raw string) (Symbol, error) {
	if kind == KindCollection {
		return Symbol{}, errors.WrapInvalid(errors.ErrInvalidSymbol,
			"symbol", "New", "collection is not a scalar symbol kind")
	}
	if raw == "" {
		return Symbol{}, errors.WrapInvalid(errors.ErrInvalidSymbol,
			"symbol", "New", "empty raw value")
	}
	for i := 0; i < len(raw); i++ {
		if reserved(raw[i]) {
			return Symbol{}, errors.WrapInvalid(errors.ErrInvalidSymbol,
				"symbol", "New", fmt.Sprintf("reserved character %q in %q", raw[i], raw))
		}
	}
	return Symbol{kind: kind, raw: raw, set: true}, nil
}

// Identifier constructs a '$' symbol.
func Identifier(raw string) (Symbol, error) {
	return New(KindIdentifier, raw)
}

// Attribute constructs a '#' symbol.
func Attribute(raw string) (Symbol, error) {
	return New(KindAttribute, raw)
}

// Timestamp constructs an '@' symbol. An empty raw value defaults to the
// current UTC time in the wire profile; anything else must parse under
// that profile. Zone offsets are normalized to UTC 'Z' form: an offset
// would embed '+', a reserved discriminator, in the raw value.
func Timestamp(raw string) (Symbol, error) {
	if raw == "" {
		raw = timestamp.Format(timestamp.Now())
	} else {
		ms, err := timestamp.ParseProfile(raw)
		if err != nil {
			return Symbol{}, errors.WrapInvalid(errors.ErrInvalidSymbol,
				"symbol", "Timestamp", fmt.Sprintf("value %q does not match the timestamp profile", raw))
		}
		raw = timestamp.Format(ms)
	}
	return Symbol{kind: KindTimestamp, raw: raw, set: true}, nil
}

// Now constructs a Timestamp symbol for the current time.
func Now() Symbol {
	s, _ := Timestamp("")
	return s
}

// Kind returns the symbol's kind.
func (s Symbol) Kind() Kind { return s.kind }

// Raw returns the raw value without its discriminator.
func (s Symbol) Raw() string { return s.raw }

// IsZero reports whether the symbol is unset.
func (s Symbol) IsZero() bool { return !s.set }

// String serializes the symbol as <discriminator><raw>.
func (s Symbol) String() string {
	if !s.set {
		return ""
	}
	return string(s.kind.Discriminator()) + s.raw
}

// Time decodes a timestamp symbol into a time.Time.
func (s Symbol) Time() (time.Time, error) {
	if s.kind != KindTimestamp || !s.set {
		return time.Time{}, errors.WrapInvalid(errors.ErrInvalidSymbol,
			"symbol", "Time", "not a timestamp symbol")
	}
	ms, err := timestamp.ParseProfile(s.raw)
	if err != nil {
		return time.Time{}, errors.WrapInvalid(errors.ErrInvalidSymbol, "symbol", "Time", "profile parse")
	}
	return timestamp.FromUnixMs(ms), nil
}

// MarshalText implements encoding.TextMarshaler using the wire format.
func (s Symbol) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler from the wire format.
func (s *Symbol) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Parse decodes a serialized symbol, dispatching on its leading
// discriminator. Unknown leading characters are ErrInvalidSymbol.
func Parse(data string) (Symbol, error) {
	if data == "" {
		return Symbol{}, errors.WrapInvalid(errors.ErrInvalidSymbol, "symbol", "Parse", "empty input")
	}
	kind, ok := kindFor(data[0])
	if !ok {
		return Symbol{}, errors.WrapInvalid(errors.ErrInvalidSymbol,
			"symbol", "Parse", fmt.Sprintf("unknown discriminator %q", data[0]))
	}
	raw := data[1:]
	if kind == KindTimestamp {
		return Timestamp(raw)
	}
	if kind == KindCollection {
		return Symbol{}, errors.WrapInvalid(errors.ErrInvalidSymbol,
			"symbol", "Parse", "collection input; use ParseCollection")
	}
	return New(kind, raw)
}

// trimToken removes surrounding whitespace from a collection token.
func trimToken(tok string) string {
	return strings.TrimSpace(tok)
}
