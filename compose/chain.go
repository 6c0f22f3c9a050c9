package compose

import (
	"context"
	"fmt"

	"github.com/ryan-d-young/money/errors"
	"github.com/ryan-d-young/money/pkg/cache"
	"github.com/ryan-d-young/money/record"
)

// planCacheSize bounds the per-chain sub-plan cache.
const planCacheSize = 16

// Chain is an ordered plan of steps executed in index order. Each step's
// final response threads into the next step's kwargs. Steps already run are
// never rolled back when a later step fails; partial execution is the
// caller's to handle.
type Chain struct {
	steps map[int]Command
	order []int
	plans *cache.LRU[*Chain]
}

// NewChain builds a chain from an index→step plan. Indexes need not be
// contiguous; execution follows ascending index order.
func NewChain(steps map[int]Command) (*Chain, error) {
	if len(steps) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Chain", "NewChain",
			"chain has no steps")
	}
	for i, step := range steps {
		if step == nil {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Chain", "NewChain",
				fmt.Sprintf("step %d is nil", i))
		}
	}

	copied := make(map[int]Command, len(steps))
	for i, step := range steps {
		copied[i] = step
	}
	plans, err := cache.NewLRU[*Chain](planCacheSize)
	if err != nil {
		return nil, err
	}
	return &Chain{
		steps: copied,
		order: sortedIndexes(copied),
		plans: plans,
	}, nil
}

// Len returns the number of steps.
func (c *Chain) Len() int { return len(c.steps) }

// Indexes returns the step indexes in execution order.
func (c *Chain) Indexes() []int {
	return append([]int(nil), c.order...)
}

// Run executes the plan in index order. The first step receives the given
// kwargs; each later step receives the fields of the previous step's last
// response, or nil when the previous step yielded nothing. The final
// step's responses are returned. A failing step aborts the chain; earlier
// steps' effects stand.
func (c *Chain) Run(ctx context.Context, kwargs map[string]any) ([]record.Response, error) {
	var out []record.Response
	for _, i := range c.order {
		responses, err := c.steps[i].Run(ctx, kwargs)
		if err != nil {
			return nil, errors.Wrap(err, "Chain", "Run", fmt.Sprintf("step %d", i))
		}
		out = responses
		if len(responses) > 0 {
			kwargs = responses[len(responses)-1].Fields()
		} else {
			kwargs = nil
		}
	}
	return out, nil
}

// Plan returns the sub-chain covering indexes in [start, end], for partial
// re-execution. Views are cached per (start, end) pair.
func (c *Chain) Plan(start, end int) (*Chain, error) {
	if start > end {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Chain", "Plan",
			fmt.Sprintf("start %d after end %d", start, end))
	}

	key := fmt.Sprintf("%d:%d", start, end)
	if plan, ok := c.plans.Get(key); ok {
		return plan, nil
	}

	steps := make(map[int]Command)
	for _, i := range c.order {
		if i >= start && i <= end {
			steps[i] = c.steps[i]
		}
	}
	if len(steps) == 0 {
		return nil, errors.WrapInvalid(errors.ErrNotFound, "Chain", "Plan",
			fmt.Sprintf("no steps in [%d, %d]", start, end))
	}

	plan, err := NewChain(steps)
	if err != nil {
		return nil, err
	}
	c.plans.Set(key, plan)
	return plan, nil
}
