// Package pfn holds the pure bit arithmetic that underlies the buddy
// allocator: page frame numbers, orders, and the XOR trick used to find a
// block's buddy. None of it touches memory; it exists so that buddy and
// its tests can share one definition of "aligned" and "buddy of".
package pfn

// Num is a page frame number: the index of a physical page in the
// managed universe. Byte address = Num << PageBits.
type Num uint64

// LastOrder is the highest order the allocator will track. A block of
// order LastOrder spans 1<<LastOrder pages.
//
// order 0 : 1 page
// order 1 : 2 pages
// order 2 : 4 pages
// ...
// order 16: 65536 pages
const LastOrder = 16

// PageCount returns the number of pages in a block of the given order,
// i.e. 2^order.
func PageCount(order int) uint64 {
	return uint64(1) << uint(order)
}

// Aligned reports whether pfn is a valid base for a block of the given
// order, i.e. a multiple of 2^order.
func Aligned(order int, p Num) bool {
	return p&Num(PageCount(order)-1) == 0
}

// Buddy returns the page frame number of the block that pairs with the
// order-n block starting at p to form a single order-(n+1) block.
func Buddy(order int, p Num) Num {
	return p ^ Num(PageCount(order))
}

// InRange reports whether order is a valid order for the allocator, i.e.
// 0 <= order <= LastOrder.
func InRange(order int) bool {
	return order >= 0 && order <= LastOrder
}
