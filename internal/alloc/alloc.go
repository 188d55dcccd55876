// Package alloc defines the allocator capability the preprocessor core
// consumes. The core never allocates working buffers directly; it asks the
// capability, and a nil return latches the out-of-memory state upstream.
package alloc

import "sync/atomic"

// Allocator is the allocation capability. Alloc returns a zeroed slice of
// exactly n bytes, or nil when the allocation cannot be satisfied. Free
// returns a slice previously handed out by Alloc; implementations may treat
// it as a no-op.
type Allocator interface {
	Alloc(n int) []byte
	Free(b []byte)
}

// Stats tracks allocation activity for an instrumented allocator.
type Stats struct {
	Allocations int64
	Frees       int64
	TotalBytes  int64
}

// Heap is the default Allocator backed by the Go heap. Free is a no-op; the
// garbage collector reclaims returned buffers.
type Heap struct {
	allocations atomic.Int64
	frees       atomic.Int64
	totalBytes  atomic.Int64
}

// NewHeap creates the default heap-backed allocator.
func NewHeap() *Heap {
	return &Heap{}
}

// Alloc returns a zeroed n-byte slice.
func (h *Heap) Alloc(n int) []byte {
	if n < 0 {
		return nil
	}
	h.allocations.Add(1)
	h.totalBytes.Add(int64(n))
	return make([]byte, n)
}

// Free records the return; the memory itself is left to the collector.
func (h *Heap) Free(b []byte) {
	if b != nil {
		h.frees.Add(1)
	}
}

// GetStats returns a snapshot of allocation counters.
func (h *Heap) GetStats() Stats {
	return Stats{
		Allocations: h.allocations.Load(),
		Frees:       h.frees.Load(),
		TotalBytes:  h.totalBytes.Load(),
	}
}

// FailAfter wraps an Allocator and starts returning nil after the first n
// successful allocations. Used by tests to drive the out-of-memory paths.
type FailAfter struct {
	Inner     Allocator
	remaining atomic.Int64
}

// NewFailAfter creates an allocator that fails every allocation past the
// first n.
func NewFailAfter(inner Allocator, n int64) *FailAfter {
	fa := &FailAfter{Inner: inner}
	fa.remaining.Store(n)
	return fa
}

// Alloc forwards to the inner allocator until the budget is spent.
func (fa *FailAfter) Alloc(n int) []byte {
	if fa.remaining.Add(-1) < 0 {
		return nil
	}
	return fa.Inner.Alloc(n)
}

// Free forwards to the inner allocator.
func (fa *FailAfter) Free(b []byte) {
	fa.Inner.Free(b)
}
