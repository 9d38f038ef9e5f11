package buddy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Redd-Hibb/stacsos/page"
	"github.com/Redd-Hibb/stacsos/pfn"
)

// newAllocator builds an Allocator over a fresh table with pageBits-sized
// frames, enough to hold frameCount pages. pageBits=3 (8-byte pages) is
// used for the large scenarios so the backing arena stays small; the link
// field alone needs 8 bytes, so that is the practical minimum.
func newAllocator(t *testing.T, pageBits uint, frameCount pfn.Num) (*Allocator, *page.Table) {
	t.Helper()
	tbl := page.NewTable(pageBits, frameCount)
	return New(tbl), tbl
}

// scenario 1 (spec.md §8): a full 2^16-page range, allocate one order-0
// page, and check the resulting split chain.
func TestScenario1SplitChain(t *testing.T) {
	a, tbl := newAllocator(t, 3, 1<<LastOrder)

	a.InsertFreePages(0, 1<<LastOrder)

	got, ok := a.AllocatePages(0, FlagNone)
	require.True(t, ok)
	require.EqualValues(t, 0, got.PFN())

	for order := 0; order <= LastOrder-1; order++ {
		require.Truef(t, a.freeOK[order], "order %d should have exactly one free block", order)
		want := pfn.Num(pfn.PageCount(order))
		require.Equalf(t, want, a.freeHead[order].PFN(), "order %d free block should be at pfn %d", order, want)
		if _, more := a.freeHead[order].NextFree(); more {
			t.Fatalf("order %d should have exactly one free block, found a second", order)
		}
	}
	require.False(t, a.freeOK[LastOrder], "order %d (LastOrder) should be empty", LastOrder)

	assertInvariants(t, a, tbl)
}

// scenario 2 (spec.md §8): from scenario 1's end state, freeing the
// allocated page cascades all the way back to a single order-16 block.
func TestScenario2MergeCascade(t *testing.T) {
	a, tbl := newAllocator(t, 3, 1<<LastOrder)
	a.InsertFreePages(0, 1<<LastOrder)
	got, ok := a.AllocatePages(0, FlagNone)
	require.True(t, ok)

	a.FreePages(got, 0)

	for order := 0; order < LastOrder; order++ {
		require.Falsef(t, a.freeOK[order], "order %d should be empty after full merge", order)
	}
	require.True(t, a.freeOK[LastOrder])
	require.EqualValues(t, 0, a.freeHead[LastOrder].PFN())
	if _, more := a.freeHead[LastOrder].NextFree(); more {
		t.Fatalf("order %d should have exactly one free block", LastOrder)
	}

	assertInvariants(t, a, tbl)
}

// scenario 3 (spec.md §8): an unaligned bulk insert must conserve the page
// count and leave every invariant intact, whatever exact decomposition
// results from opportunistic merging.
func TestScenario3UnalignedBulkInsert(t *testing.T) {
	a, tbl := newAllocator(t, 3, 64)

	a.InsertFreePages(3, 10)

	require.EqualValues(t, 10, a.FreePageTotal())
	assertInvariants(t, a, tbl)
}

// scenario 4 (spec.md §8): exhaustion behavior for a single order-0 block.
func TestScenario4Exhaustion(t *testing.T) {
	a, _ := newAllocator(t, 3, 4)

	a.InsertFreePages(0, 1)

	if _, ok := a.AllocatePages(1, FlagNone); ok {
		t.Fatalf("expected allocate_pages(order=1) to fail with only an order-0 block free")
	}

	got, ok := a.AllocatePages(0, FlagNone)
	require.True(t, ok)
	require.EqualValues(t, 0, got.PFN())

	if _, ok := a.AllocatePages(0, FlagNone); ok {
		t.Fatalf("expected second allocate_pages(order=0) to fail: allocator should be exhausted")
	}
}

// scenario 5 (spec.md §8): dump()'s exact textual format.
func TestScenario5DumpFormat(t *testing.T) {
	a, _ := newAllocator(t, 12, 16)

	a.InsertFreePages(8, 8) // one order-3 block at pfn 8

	out := a.Dump()
	if !contains(out, "[03] 8000--ffff") {
		t.Fatalf("expected dump output to contain \"[03] 8000--ffff\", got:\n%s", out)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

// boundary behaviors, spec.md §8.

func TestAllocateOutOfRangeOrderReturnsNilWithoutModifyingState(t *testing.T) {
	a, tbl := newAllocator(t, 3, 64)
	a.InsertFreePages(0, 64)
	before := a.Dump()

	_, ok := a.AllocatePages(LastOrder+1, FlagNone)
	require.False(t, ok)

	require.Equal(t, before, a.Dump())
	assertInvariants(t, a, tbl)
}

func TestInsertZeroPagesIsNoOp(t *testing.T) {
	a, tbl := newAllocator(t, 3, 64)
	before := a.Dump()

	a.InsertFreePages(5, 0)

	require.Equal(t, before, a.Dump())
	assertInvariants(t, a, tbl)
}

func TestFreeAtLastOrderNeverMerges(t *testing.T) {
	a, tbl := newAllocator(t, 3, 1<<(LastOrder+1))

	// Two adjacent order-LastOrder-aligned buddies, both order LastOrder:
	// freeing them must not attempt a merge past LastOrder.
	a.FreePages(tbl.FromPFN(0), LastOrder)
	a.FreePages(tbl.FromPFN(pfn.Num(1<<LastOrder)), LastOrder)

	require.True(t, a.freeOK[LastOrder])
	first := a.freeHead[LastOrder]
	second, ok := first.NextFree()
	require.True(t, ok)
	if _, more := second.NextFree(); more {
		t.Fatalf("expected exactly two order-%d blocks", LastOrder)
	}
	assertInvariants(t, a, tbl)
}

func TestZeroFlagClearsBlock(t *testing.T) {
	a, tbl := newAllocator(t, 3, 8)
	a.InsertFreePages(0, 8)

	for n := pfn.Num(0); n < 8; n++ {
		buf := (*[8]byte)(tbl.FromPFN(n).BaseAddressPtr())
		for i := range buf {
			buf[i] = 0xAA
		}
	}

	got, ok := a.AllocatePages(3, FlagZero)
	require.True(t, ok)
	for n := pfn.Num(0); n < 8; n++ {
		body := (*[8]byte)(tbl.FromPFN(got.PFN() + n).BaseAddressPtr())
		for i, b := range body {
			require.Zerof(t, b, "byte %d of page %d of zero-flagged allocation was not cleared", i, n)
		}
	}
}

// property tests over random insert/alloc/free sequences.

func assertInvariants(t *testing.T, a *Allocator, tbl *page.Table) {
	t.Helper()

	seen := map[pfn.Num]int{}
	for order := 0; order <= LastOrder; order++ {
		var lastPFN pfn.Num
		havePrev := false
		cur, ok := a.freeHead[order], a.freeOK[order]
		for ok {
			require.Truef(t, pfn.Aligned(order, cur.PFN()), "order %d block at pfn %d is not aligned", order, cur.PFN())
			if havePrev {
				require.Greaterf(t, cur.PFN(), lastPFN, "order %d free list not strictly ascending", order)
			}
			if prevOrder, dup := seen[cur.PFN()]; dup {
				t.Fatalf("pfn %d listed at both order %d and order %d", cur.PFN(), prevOrder, order)
			}
			seen[cur.PFN()] = order
			lastPFN, havePrev = cur.PFN(), true
			cur, ok = cur.NextFree()
		}
	}

	// P3: no two buddies of the same order are simultaneously free.
	for order := 0; order < LastOrder; order++ {
		cur, ok := a.freeHead[order], a.freeOK[order]
		for ok {
			buddyPFN := pfn.Buddy(order, cur.PFN())
			if bo, present := seen[buddyPFN]; present {
				require.NotEqualf(t, order, bo, "pfn %d and its buddy %d are both free at order %d", cur.PFN(), buddyPFN, order)
			}
			cur, ok = cur.NextFree()
		}
	}
	_ = tbl
}

func TestRandomInsertAllocFreeInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const frames = pfn.Num(1 << 12)
	a, tbl := newAllocator(t, 3, frames)

	a.InsertFreePages(0, uint64(frames))
	assertInvariants(t, a, tbl)

	var allocated []struct {
		p     page.Page
		order int
	}

	for i := 0; i < 500; i++ {
		if len(allocated) > 0 && rng.Intn(2) == 0 {
			idx := rng.Intn(len(allocated))
			victim := allocated[idx]
			allocated[idx] = allocated[len(allocated)-1]
			allocated = allocated[:len(allocated)-1]

			before := a.FreePageTotal()
			a.FreePages(victim.p, victim.order)
			after := a.FreePageTotal()
			require.Equal(t, before+pfn.PageCount(victim.order), after)
		} else {
			order := rng.Intn(6)
			before := a.FreePageTotal()
			p, ok := a.AllocatePages(order, FlagNone)
			if !ok {
				continue
			}
			require.Truef(t, pfn.Aligned(order, p.PFN()), "allocated block at pfn %d not aligned to order %d", p.PFN(), order)
			after := a.FreePageTotal()
			require.Equal(t, before-pfn.PageCount(order), after)
			allocated = append(allocated, struct {
				p     page.Page
				order int
			}{p, order})
		}
		assertInvariants(t, a, tbl)
	}
}

// P6: allocate immediately followed by free on the same block restores the
// prior free-page total.
func TestAllocateThenFreeConservesTotal(t *testing.T) {
	a, tbl := newAllocator(t, 3, 256)
	a.InsertFreePages(0, 256)

	for order := 0; order <= 8; order++ {
		before := a.FreePageTotal()
		p, ok := a.AllocatePages(order, FlagNone)
		if !ok {
			continue
		}
		a.FreePages(p, order)
		after := a.FreePageTotal()
		require.Equalf(t, before, after, "order %d alloc+free did not conserve free-page total", order)
		assertInvariants(t, a, tbl)
	}
}
