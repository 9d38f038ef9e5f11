// Package page implements the "page descriptor table" that spec.md treats
// as an external collaborator (§1, §6.1): a total, injective lookup from
// page frame number to a page descriptor, each of which can yield a
// physical byte address and a writable pointer into its frame's body.
//
// The descriptor table is an arena + index scheme, per spec.md's design
// notes: PFNs are plain integers, never raw pointers, and a Page value is
// a (table, pfn) pair rather than a self-referential pointer into the
// arena. The intrusive next_free link that the buddy allocator stores in
// the body of a free block's first page is exposed through exactly one
// audited pair of accessors, NextFree/SetNextFree, so that every other
// package treats a page's body as opaque.
package page

import (
	"unsafe"

	"github.com/Redd-Hibb/stacsos/pfn"
)

// Table is the backing arena for a contiguous universe of page frames. It
// owns one flat byte slice sized frameCount*pageSize and hands out Page
// values that index into it.
type Table struct {
	pageBits uint
	pageSize uint64
	frames   pfn.Num
	bodies   []byte
}

// NewTable allocates a Table able to describe frameCount frames of
// 1<<pageBits bytes each. The bodies slice is zeroed, matching a freshly
// mapped region of physical memory.
func NewTable(pageBits uint, frameCount pfn.Num) *Table {
	size := uint64(1) << pageBits
	return &Table{
		pageBits: pageBits,
		pageSize: size,
		frames:   frameCount,
		bodies:   make([]byte, size*uint64(frameCount)),
	}
}

// PageSize returns 1<<PageBits, in bytes.
func (t *Table) PageSize() uint64 { return t.pageSize }

// PageBits returns the configured PAGE_BITS.
func (t *Table) PageBits() uint { return t.pageBits }

// FrameCount returns the total number of frames this table describes.
func (t *Table) FrameCount() pfn.Num { return t.frames }

// FromPFN returns the page descriptor for p. The lookup is total over
// [0, FrameCount) and panics outside that range, mirroring the contract
// spec.md §6.1 places on page::from_pfn: the allocator never calls it with
// an out-of-range PFN, so an out-of-range call here is a bug in the
// caller, not a recoverable condition.
func (t *Table) FromPFN(p pfn.Num) Page {
	if p >= t.frames {
		panic("page: pfn out of range")
	}
	return Page{table: t, pfn: p}
}

// Page is a reference to one page frame's descriptor. It is a value type
// (a (table, pfn) pair), never a pointer into the arena. The zero value,
// Page{}, is used internally to mean "no page" and is always paired with
// an explicit ok bool rather than relying on PFN 0 being special.
type Page struct {
	table *Table
	pfn   pfn.Num
}

// PFN returns the page frame number this descriptor refers to.
func (p Page) PFN() pfn.Num { return p.pfn }

// Valid reports whether p refers to an actual table slot, as opposed to
// being the zero Page{} value used internally to mean "no page".
func (p Page) Valid() bool { return p.table != nil }

// BaseAddress returns the physical byte address of the first byte of this
// frame: pfn << PAGE_BITS.
func (p Page) BaseAddress() uint64 {
	return uint64(p.pfn) << p.table.pageBits
}

// BaseAddressPtr returns a writable pointer into this frame's body. The
// returned pointer is valid for exactly PageSize() bytes.
func (p Page) BaseAddressPtr() unsafe.Pointer {
	off := uint64(p.pfn) * p.table.pageSize
	return unsafe.Pointer(&p.table.bodies[off])
}

// Zero clears every byte of this frame's body. Used by AllocatePages when
// FlagZero is set.
func (p Page) Zero() {
	off := uint64(p.pfn) * p.table.pageSize
	b := p.table.bodies[off : off+p.table.pageSize]
	for i := range b {
		b[i] = 0
	}
}

// nextFreeSlot returns a pointer to the first 8 bytes of this frame's
// body, reinterpreted as the intrusive next_free link. This is the single
// unsafe primitive spec.md's design notes ask to be encapsulated behind
// one audited helper; nothing outside this file casts a page body to
// anything but raw bytes.
func (p Page) nextFreeSlot() *uint64 {
	return (*uint64)(p.BaseAddressPtr())
}

// NextFree reads the intrusive next_free link stored in this page's body.
// The second return value is false if the link is nil (this page is the
// tail of its free list). Only meaningful for the first page of a
// currently-listed free block (spec.md §3 invariant 5).
func (p Page) NextFree() (Page, bool) {
	raw := *p.nextFreeSlot()
	if raw == 0 {
		return Page{}, false
	}
	return Page{table: p.table, pfn: pfn.Num(raw - 1)}, true
}

// SetNextFree writes the intrusive next_free link stored in this page's
// body. Passing ok=false clears the link to nil, which is how
// removeFreeBlock makes a detached page's stale link detectable as a bug
// (spec.md §4.A.5).
func (p Page) SetNextFree(next Page, ok bool) {
	if !ok {
		*p.nextFreeSlot() = 0
		return
	}
	*p.nextFreeSlot() = uint64(next.pfn) + 1
}
