// Package bufferpool implements the reference-counted pool of decoded-frame
// buffers shared between the decode loop and the pipeline callbacks.
//
// Slots are identified by small monotonically assigned ids. The pool grows on
// demand and never shrinks; a slot id is recycled only after the buffer
// holding it has been returned. All bookkeeping is guarded by a single mutex
// so Get and Return may be called from any goroutine.
package bufferpool

import (
	"sync"
	"sync/atomic"
)

// Frame is the decoded-frame payload bound to a pool slot. The payload is
// owned by the slot: it becomes invalid as soon as the slot is returned and
// reused.
type Frame struct {
	// Data contains the raw mapped pixel data, planes back to back.
	Data []byte
	// Format is the negotiated raw pixel format name (e.g. "I420").
	Format string
	// Width and Height are the coded dimensions of the frame.
	Width  int
	Height int
}

// Buffer is a refcounted handle to one pool slot. The handle starts with one
// reference when obtained from Get; every Acquire must be balanced by a
// Release, and the final Release returns the slot to the pool.
type Buffer struct {
	id   int
	pool *Pool
	refs atomic.Int32

	mu    sync.Mutex
	frame *Frame
}

// ID returns the slot id of this buffer.
func (b *Buffer) ID() int { return b.id }

// Acquire adds a reference to the buffer.
func (b *Buffer) Acquire() { b.refs.Add(1) }

// Release drops one reference. When the last reference is dropped the frame
// is unbound and the slot id goes back on the free list.
func (b *Buffer) Release() {
	if b.refs.Add(-1) == 0 {
		b.pool.ret(b.id)
	}
}

// BindFrame attaches a decoded frame to the buffer. Any previously bound
// frame is dropped.
func (b *Buffer) BindFrame(f *Frame) {
	b.mu.Lock()
	b.frame = f
	b.mu.Unlock()
}

// Frame returns the currently bound frame, or nil if the slot is empty.
func (b *Buffer) Frame() *Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame
}

func (b *Buffer) unbind() {
	b.mu.Lock()
	b.frame = nil
	b.mu.Unlock()
}

// Pool hands out refcounted frame buffers, recycling slot ids in FIFO order.
type Pool struct {
	mu   sync.Mutex
	all  []*Buffer
	free []int
	used map[int]struct{}
}

// New creates an empty pool. Slots are allocated lazily by Get.
func New() *Pool {
	return &Pool{used: make(map[int]struct{})}
}

// Get pops the head of the free list and reuses that slot, or allocates a
// new monotonically numbered slot if none are free. The returned buffer
// carries one reference.
func (p *Pool) Get() *Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	var buf *Buffer
	if len(p.free) > 0 {
		id := p.free[0]
		p.free = p.free[1:]
		p.used[id] = struct{}{}
		buf = p.all[id]
	} else {
		id := len(p.all)
		buf = &Buffer{id: id, pool: p}
		p.all = append(p.all, buf)
		p.used[id] = struct{}{}
	}

	buf.refs.Store(1)
	return buf
}

// ret puts a slot back on the tail of the free list. Called by the last
// Release of the owning buffer.
func (p *Pool) ret(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id < 0 || id >= len(p.all) {
		return
	}
	if _, ok := p.used[id]; !ok {
		return
	}

	p.all[id].unbind()
	delete(p.used, id)
	p.free = append(p.free, id)
}

// Size returns the total number of slots ever allocated.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all)
}

// InUse returns the number of slots currently held by callers.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.used)
}

// Drain unbinds every slot. Called on decoder disposal; outstanding handles
// keep their ids but lose their frames.
func (p *Pool) Drain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.all {
		b.unbind()
	}
}
