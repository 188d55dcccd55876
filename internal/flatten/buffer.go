package flatten

import "github.com/standardbeagle/spp/internal/alloc"

// chunkSize is the fixed size of one output chunk.
const chunkSize = 64 * 1024

// chunk is one link of the output buffer.
type chunk struct {
	bytes []byte
	used  int
	next  *chunk
}

// buffer accumulates output in a singly linked list of fixed-size chunks,
// tracking the total byte count and the tail for appends.
type buffer struct {
	head  *chunk
	tail  *chunk
	total int
	alloc alloc.Allocator
}

func newBuffer(a alloc.Allocator) *buffer {
	return &buffer{alloc: a}
}

// write appends data, growing by whole chunks. Reports false on allocation
// failure, after which the buffer contents are undefined.
func (b *buffer) write(data []byte) bool {
	for len(data) > 0 {
		if b.tail == nil || b.tail.used == chunkSize {
			mem := b.alloc.Alloc(chunkSize)
			if mem == nil {
				return false
			}
			c := &chunk{bytes: mem}
			if b.tail == nil {
				b.head = c
			} else {
				b.tail.next = c
			}
			b.tail = c
		}
		n := copy(b.tail.bytes[b.tail.used:], data)
		b.tail.used += n
		b.total += n
		data = data[n:]
	}
	return true
}

func (b *buffer) writeByte(c byte) bool {
	return b.write([]byte{c})
}

var indentUnit = []byte("    ")

// writeIndent emits n indentation units.
func (b *buffer) writeIndent(n int) bool {
	for i := 0; i < n; i++ {
		if !b.write(indentUnit) {
			return false
		}
	}
	return true
}

// flatten concatenates every chunk into one contiguous buffer of total+1
// bytes with a trailing zero terminator, returning it sliced to the content
// length. The chunks are released back to the allocator. Returns nil on
// allocation failure.
func (b *buffer) flatten() []byte {
	out := b.alloc.Alloc(b.total + 1)
	if out == nil {
		return nil
	}
	off := 0
	for c := b.head; c != nil; c = c.next {
		off += copy(out[off:], c.bytes[:c.used])
	}
	out[b.total] = 0
	for c := b.head; c != nil; c = c.next {
		b.alloc.Free(c.bytes)
	}
	b.head, b.tail = nil, nil
	return out[:b.total]
}
