// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package faaq

import (
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/faaq/hp"
)

// B is the fixed slot count per node. A tuning parameter per the reference
// algorithm (S=8, B=1024, K=8); fixed here as a compile-time constant
// rather than a type parameter, matching the teacher's own preference for
// fixed-size arrays (pad [64]byte) over runtime-configurable layouts.
const B = 1024

// taken marks a slot a consumer has claimed; distinct from any payload
// address since it is this process's own heap address, allocated fresh
// per queue in Create.

// Node is one segment of the queue's singly-linked chain. hp.Header is
// embedded as the first field so unsafe.Pointer(node) == the address
// handed to hp.Domain.Retire, satisfying the "descriptor at a known
// offset" contract without a side table.
//
// next and items carry the addresses Protect and the fast-path CAS/
// exchange operate on; nextPtr and itemPtrs are their real-pointer
// companions, the only thing keeping a successor node or an enqueued
// payload reachable to the garbage collector once the goroutine that
// published it returns. nextPtr is the actual point of consensus among
// racing producers extending the chain (see Queue.Enqueue): next is
// always derived from whichever nextPtr CAS wins, so it can never
// observe a value nextPtr hasn't already published. itemPtrs[idx] has a
// single writer and, later, a single clearer, because enqIdx/deqIdx's
// fetch-and-add hands out each idx to exactly one producer and one
// consumer.
type Node[T any] struct {
	hp.Header
	_        pad64
	deqIdx   atomix.Uint64
	_        pad64
	enqIdx   atomix.Uint64
	_        pad64
	next     atomix.Uintptr
	nextPtr  atomic.Pointer[Node[T]]
	_        pad64
	items    [B]atomix.Uintptr
	itemPtrs [B]unsafe.Pointer
}

// pad64 is cache-line padding, reused verbatim from the teacher's
// pad/padShort/padPtr family in options.go.
type pad64 [64]byte

func itemToUintptr[T any](item *T) uintptr {
	return uintptr(unsafe.Pointer(item))
}

func uintptrToItem[T any](addr uintptr) *T {
	return (*T)(unsafe.Pointer(addr))
}

func uintptrFromNode[T any](n *Node[T]) uintptr {
	return uintptr(unsafe.Pointer(n))
}

// createNode allocates a fresh node. If initial is non-nil, slot 0 is
// pre-published with it and enqIdx starts at 1; otherwise both indices
// start at 0. All other slots default to the zero value (null).
func createNode[T any](initial *T) *Node[T] {
	n := &Node[T]{}
	if initial != nil {
		n.itemPtrs[0] = unsafe.Pointer(initial)
		n.items[0].StoreRelaxed(itemToUintptr(initial))
		n.enqIdx.StoreRelaxed(1)
	}
	return n
}

func nodeReclaim[T any](q *Queue[T]) func(*hp.Header) {
	return func(h *hp.Header) {
		q.nodesReclaimed.AddAcqRel(1)
		// The node becomes unreachable once this callback returns; Go's
		// collector, not an explicit free, reclaims its memory. Retaining
		// no reference here is what makes that true.
		_ = h
	}
}
