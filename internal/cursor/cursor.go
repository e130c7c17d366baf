// Package cursor is the per-chain block cursor: it advances monotonically
// and never rewinds, per spec.md §3.
package cursor

import "fmt"

// Cursor tracks the last block number a chain pipeline has fully
// extracted.
type Cursor struct {
	lastProcessed uint64
	seeded        bool
}

// New returns a cursor that has not yet been seeded; Seed must be called
// once before Advance.
func New() *Cursor {
	return &Cursor{}
}

// Seed sets the initial cursor position (the chain's head at process
// start, or the DEBUG_BLOCK pin). It must be called exactly once before
// any call to Advance.
func (c *Cursor) Seed(head uint64) {
	c.lastProcessed = head
	c.seeded = true
}

// Seeded reports whether Seed has been called.
func (c *Cursor) Seeded() bool {
	return c.seeded
}

// LastProcessed returns the last block number fully extracted.
func (c *Cursor) LastProcessed() uint64 {
	return c.lastProcessed
}

// NextRange returns the inclusive range [LastProcessed+1, head] to hand
// to the extractor, and whether there is anything new to process.
func (c *Cursor) NextRange(head uint64) (from, to uint64, ok bool) {
	if head <= c.lastProcessed {
		return 0, 0, false
	}
	return c.lastProcessed + 1, head, true
}

// Advance moves the cursor forward to head. It panics on a regression:
// cursor monotonicity is a pipeline invariant that, if violated, signals a
// programming error rather than a recoverable runtime condition.
func (c *Cursor) Advance(head uint64) {
	if head < c.lastProcessed {
		panic(fmt.Sprintf("cursor: refusing to advance backwards from %d to %d", c.lastProcessed, head))
	}
	c.lastProcessed = head
}
