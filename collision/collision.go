package collision

import (
	"github.com/elliotchance/orderedmap/v2"
	"github.com/go-gl/mathgl/mgl64"
)

// Arbiter is an independent source of movement obstruction. Blocks returns true if moving from
// oldPos to newPos must be rejected.
type Arbiter interface {
	Blocks(oldPos, newPos mgl64.Vec3) bool
}

// Describer is implemented by arbiters that can explain a rejection. The returned data is purely
// diagnostic.
type Describer interface {
	Describe(oldPos, newPos mgl64.Vec3) (*orderedmap.OrderedMap[string, any], bool)
}

// Func adapts a plain function into an Arbiter.
type Func func(oldPos, newPos mgl64.Vec3) bool

// Blocks ...
func (f Func) Blocks(oldPos, newPos mgl64.Vec3) bool {
	return f(oldPos, newPos)
}

// Verdict is the result of evaluating a move against a Chain. It is computed fresh for every
// query and never stored by the chain.
type Verdict struct {
	// Blocked is true if any arbiter rejected the move.
	Blocked bool
	// Source is the name of the arbiter that rejected the move, empty if the move was allowed.
	Source string
	// Data holds diagnostics from the rejecting arbiter, if it implements Describer.
	Data *orderedmap.OrderedMap[string, any]
}

// Entry is a named arbiter in a Chain.
type Entry struct {
	Name    string
	Arbiter Arbiter
}

// Chain evaluates arbiters in a fixed priority order. The first arbiter that blocks a move wins
// and the remaining arbiters are not consulted.
type Chain struct {
	entries []Entry
}

// NewChain returns a Chain consulting the entries in the order passed. Entries with a nil
// arbiter are skipped.
func NewChain(entries ...Entry) *Chain {
	c := &Chain{}
	for _, e := range entries {
		if e.Arbiter != nil {
			c.entries = append(c.entries, e)
		}
	}
	return c
}

// Names returns the arbiter names in evaluation order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Name
	}
	return names
}

// Blocks implements Arbiter, so that chains may be nested.
func (c *Chain) Blocks(oldPos, newPos mgl64.Vec3) bool {
	for _, e := range c.entries {
		if e.Arbiter.Blocks(oldPos, newPos) {
			return true
		}
	}
	return false
}

// Evaluate runs the chain and returns a Verdict naming the first arbiter to reject the move.
func (c *Chain) Evaluate(oldPos, newPos mgl64.Vec3) Verdict {
	for _, e := range c.entries {
		if !e.Arbiter.Blocks(oldPos, newPos) {
			continue
		}

		v := Verdict{Blocked: true, Source: e.Name}
		if d, ok := e.Arbiter.(Describer); ok {
			if data, ok := d.Describe(oldPos, newPos); ok {
				v.Data = data
			}
		}
		return v
	}
	return Verdict{}
}
