// Package compose builds multi-step pipelines out of routers: persist a
// router's responses (Store), feed one router's output into another
// (Bridge), repeat a call until a predicate says stop (Cycle), or execute
// an ordered plan of steps (Chain). Steps run against a live session; a
// later step's failure never rolls back what earlier steps already did.
package compose

import (
	"context"
	"fmt"
	"sort"

	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/record"
	"github.com/ryan-d-young/money/router"
	"github.com/ryan-d-young/money/tablestore"
)

// Session is the dispatch surface the compose engine drives. A running
// session.Session satisfies it.
type Session interface {
	Call(ctx context.Context, provider, router string, kwargs map[string]any) (*router.Stream, error)
	RouterInfo(provider, router string) (router.Info, error)
	Store() (tablestore.Store, error)
}

// Target names one router.
type Target struct {
	Provider string
	Router   string
}

func (t Target) String() string { return t.Provider + "/" + t.Router }

// Command is one executable pipeline step: invoked with kwargs, it returns
// the responses it produced.
type Command interface {
	Run(ctx context.Context, kwargs map[string]any) ([]record.Response, error)
}

// Call is the basic step: invoke one router and collect its stream.
type Call struct {
	session Session
	target  Target
}

// NewCall builds a plain invocation step.
func NewCall(session Session, target Target) Call {
	return Call{session: session, target: target}
}

// Run invokes the target router and drains its stream.
func (c Call) Run(ctx context.Context, kwargs map[string]any) ([]record.Response, error) {
	stream, err := c.session.Call(ctx, c.target.Provider, c.target.Router, kwargs)
	if err != nil {
		return nil, err
	}
	return stream.Drain(ctx)
}

// Store invokes a router and writes every yielded response into the
// router's declared stores table, one insert per response. Responses pass
// through unchanged; persistence is a side effect.
type Store struct {
	session Session
	target  Target
}

// NewStore builds a persisting step. The target router must declare a
// stores table; Run fails otherwise.
func NewStore(session Session, target Target) Store {
	return Store{session: session, target: target}
}

// Run invokes the router, inserting each response as it arrives. An insert
// failure stops consumption; responses already persisted stay persisted.
func (s Store) Run(ctx context.Context, kwargs map[string]any) ([]record.Response, error) {
	info, err := s.session.RouterInfo(s.target.Provider, s.target.Router)
	if err != nil {
		return nil, err
	}
	if info.Stores == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Store", "Run",
			fmt.Sprintf("router %s declares no stores table", s.target))
	}
	store, err := s.session.Store()
	if err != nil {
		return nil, err
	}

	stream, err := s.session.Call(ctx, s.target.Provider, s.target.Router, kwargs)
	if err != nil {
		return nil, err
	}

	table := info.Stores.Qualified()
	var out []record.Response
	for resp := range stream.Recv() {
		if err := store.Insert(ctx, table, tablestore.Row{Fields: resp.Fields()}); err != nil {
			stream.Close()
			return out, errors.Wrap(err, "Store", "Run",
				fmt.Sprintf("insert into %s", table))
		}
		out = append(out, resp)
	}
	return out, stream.Err()
}

// Bridge invokes a source router and feeds each of its responses' fields as
// kwargs into a target router, yielding the target's responses instead.
// This chains "discover identifiers" routers into "fetch details" routers.
type Bridge struct {
	session Session
	source  Target
	target  Target
}

// NewBridge builds a bridging step.
func NewBridge(session Session, source, target Target) Bridge {
	return Bridge{session: session, source: source, target: target}
}

// Run invokes the source and, for each response, the target with that
// response's fields. Target responses accumulate in source order.
func (b Bridge) Run(ctx context.Context, kwargs map[string]any) ([]record.Response, error) {
	stream, err := b.session.Call(ctx, b.source.Provider, b.source.Router, kwargs)
	if err != nil {
		return nil, err
	}

	var out []record.Response
	for resp := range stream.Recv() {
		targetStream, err := b.session.Call(ctx, b.target.Provider, b.target.Router, resp.Fields())
		if err != nil {
			stream.Close()
			return out, err
		}
		targetResponses, err := targetStream.Drain(ctx)
		out = append(out, targetResponses...)
		if err != nil {
			stream.Close()
			return out, err
		}
	}
	return out, stream.Err()
}

// Predicate inspects one batch of responses and the kwargs that produced it
// and returns the kwargs for the next iteration, or nil to stop.
type Predicate func(batch []record.Response, kwargs map[string]any) map[string]any

// Cycle invokes a router repeatedly, accumulating responses, until its
// predicate returns nil. This is the pagination primitive. No iteration
// bound is enforced; a predicate that never returns nil loops forever.
type Cycle struct {
	session   Session
	target    Target
	predicate Predicate
}

// NewCycle builds a repeating step.
func NewCycle(session Session, target Target, predicate Predicate) Cycle {
	return Cycle{session: session, target: target, predicate: predicate}
}

// Run loops invoke → accumulate → predicate until the predicate returns
// nil or ctx ends.
func (c Cycle) Run(ctx context.Context, kwargs map[string]any) ([]record.Response, error) {
	if c.predicate == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Cycle", "Run",
			"cycle has no predicate")
	}

	var out []record.Response
	for {
		if err := ctx.Err(); err != nil {
			return out, errors.WrapTransient(err, "Cycle", "Run", "cancelled")
		}

		stream, err := c.session.Call(ctx, c.target.Provider, c.target.Router, kwargs)
		if err != nil {
			return out, err
		}
		batch, err := stream.Drain(ctx)
		out = append(out, batch...)
		if err != nil {
			return out, err
		}

		next := c.predicate(batch, kwargs)
		if next == nil {
			return out, nil
		}
		kwargs = next
	}
}

// Pages is the stock pagination predicate: keep fetching while each batch
// fills a whole page, bumping the "page" kwarg each iteration. A batch
// smaller than pageSize means the source is exhausted.
func Pages(pageSize int) Predicate {
	return func(batch []record.Response, kwargs map[string]any) map[string]any {
		if len(batch) < pageSize {
			return nil
		}
		next := make(map[string]any, len(kwargs)+1)
		for k, v := range kwargs {
			next[k] = v
		}
		page := 1
		if current, ok := kwargs["page"]; ok {
			switch v := current.(type) {
			case int:
				page = v
			case float64:
				page = int(v)
			}
		}
		next["page"] = page + 1
		return next
	}
}

// sortedIndexes returns a plan's step indexes in execution order.
func sortedIndexes[V any](steps map[int]V) []int {
	indexes := make([]int, 0, len(steps))
	for i := range steps {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	return indexes
}
