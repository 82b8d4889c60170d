// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package faaq

import (
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/faaq/hp"
	"code.hybscloud.com/spin"
)

// Queue is an unbounded, multi-producer multi-consumer FIFO built from a
// chain of fixed-size Node segments. Node lifecycle is mediated by an
// hp.Domain: a node is unlinked by the consumer that swings head past it,
// then handed to the domain for deferred reclamation once no concurrent
// reader still holds a hazard pointer into it.
//
// Every operation takes a caller-assigned thread id tid in [0, maxThreads).
// Passing the same tid concurrently from two goroutines is undefined.
//
// headPtr and tailPtr are real-pointer companions to head and tail: the
// authoritative state for the lock-free protocol (the CAS/exchange logic,
// and everything Holder.Protect reads) stays exactly as it was, entirely
// address-based; headPtr/tailPtr exist solely so the garbage collector
// always has a live reference to whichever node head/tail currently name,
// once the goroutine that published that node has returned.
type Queue[T any] struct {
	_         pad64
	head      atomix.Uintptr // *Node[T]
	headPtr   atomic.Pointer[Node[T]]
	_         pad64
	tail      atomix.Uintptr // *Node[T]
	tailPtr   atomic.Pointer[Node[T]]
	_         pad64
	holders []hp.Holder // len == 2*maxThreads; even=head protection, odd=tail protection
	domain  *hp.Domain
	taken   unsafe.Pointer // one-byte sentinel, distinct from any payload address
	takenAddr uintptr

	maxThreads int

	nodesCreated   atomix.Int64
	nodesReclaimed atomix.Int64
}

// Create allocates a queue against the process-wide default hazard-pointer
// domain. Fails only for a non-positive maxThreads.
func Create[T any](maxThreads int) (*Queue[T], error) {
	return CreateWithDomain[T](maxThreads, hp.DefaultDomain())
}

// CreateWithDomain is the user-constructed-domain variant of Create, for
// tests that need an isolated domain rather than the shared default.
func CreateWithDomain[T any](maxThreads int, dom *hp.Domain) (*Queue[T], error) {
	if maxThreads <= 0 {
		return nil, ErrInvalidThreadCount
	}

	taken := unsafe.Pointer(new(byte))
	q := &Queue[T]{
		domain:     dom,
		taken:      taken,
		takenAddr:  uintptr(taken),
		maxThreads: maxThreads,
		holders:    make([]hp.Holder, 2*maxThreads),
	}
	for t := 0; t < maxThreads; t++ {
		q.holders[2*t] = dom.AcquireHolder(t)
		q.holders[2*t+1] = dom.AcquireHolder(t)
	}

	sentinel := createNode[T](nil)
	q.nodesCreated.AddAcqRel(1)
	addr := uintptrFromNode(sentinel)
	q.headPtr.Store(sentinel)
	q.tailPtr.Store(sentinel)
	q.head.StoreRelease(addr)
	q.tail.StoreRelease(addr)
	return q, nil
}

// Stats reports the number of nodes this queue has allocated and the
// number that have been fully reclaimed (via the hp.Domain callback or,
// for never-published losers of the slow-path allocation race, directly).
// Intended for tests and diagnostics verifying the no-leaks property; not
// load-bearing for correctness.
func (q *Queue[T]) Stats() (created, reclaimed int64) {
	return q.nodesCreated.LoadAcquire(), q.nodesReclaimed.LoadAcquire()
}

// Enqueue publishes item, which must be non-nil and not equal to the
// queue's taken sentinel. tid must be in [0, maxThreads). It always
// returns nil; invalid arguments panic.
func (q *Queue[T]) Enqueue(tid int, item *T) error {
	if item == nil {
		panic("faaq: enqueue item must not be nil")
	}
	if unsafe.Pointer(item) == q.taken {
		panic("faaq: enqueue item must not equal the taken sentinel")
	}
	if tid < 0 || tid >= q.maxThreads {
		panic("faaq: thread id out of range")
	}

	h := q.holders[2*tid+1]
	sw := spin.Wait{}
	for {
		ltail := (*Node[T])(h.Protect(&q.tail))
		idx := ltail.enqIdx.AddAcqRel(1) - 1

		if idx < B {
			ltail.itemPtrs[idx] = unsafe.Pointer(item)
			if ltail.items[idx].CompareAndSwapAcqRel(0, itemToUintptr(item)) {
				h.Reset(nil)
				return nil
			}
			// Only reachable if a consumer's exchange raced this slot with
			// the taken sentinel ahead of us; drop the attempt and retry.
			ltail.itemPtrs[idx] = nil
			h.Reset(nil)
			sw.Once()
			continue
		}

		if q.tail.LoadAcquire() != uintptrFromNode(ltail) {
			h.Reset(nil)
			sw.Once()
			continue
		}

		next := ltail.next.LoadAcquire()
		if next == 0 {
			newNode := createNode(item)
			q.nodesCreated.AddAcqRel(1)
			// ltail.nextPtr is the real point of consensus among producers
			// racing to extend the chain from ltail: next (the address
			// Protect/help-advance operate on) is only ever published by
			// whichever producer wins this CompareAndSwap, so it can never
			// name a node nextPtr hasn't already published.
			if ltail.nextPtr.CompareAndSwap(nil, newNode) {
				newAddr := uintptrFromNode(newNode)
				ltail.next.CompareAndSwapAcqRel(0, newAddr) // cannot fail: we just won the corresponding nextPtr race
				q.tailPtr.Store(newNode)
				q.tail.CompareAndSwapAcqRel(uintptrFromNode(ltail), newAddr)
				h.Reset(nil)
				return nil
			}
			// Lost the race to publish; newNode was never visible to any
			// other goroutine, so it's safe to drop directly.
			q.nodesReclaimed.AddAcqRel(1)
			h.Reset(nil)
			sw.Once()
			continue
		}

		q.tailPtr.Store(ltail.nextPtr.Load())
		q.tail.CompareAndSwapAcqRel(uintptrFromNode(ltail), next)
		h.Reset(nil)
		sw.Once()
	}
}

// Dequeue removes and returns the oldest item, or reports false if the
// queue was empty at the linearization point. tid must be in
// [0, maxThreads).
func (q *Queue[T]) Dequeue(tid int) (*T, bool) {
	if tid < 0 || tid >= q.maxThreads {
		panic("faaq: thread id out of range")
	}

	h := q.holders[2*tid]
	sw := spin.Wait{}
	for {
		lhead := (*Node[T])(h.Protect(&q.head))
		deq := lhead.deqIdx.LoadAcquire()
		enq := lhead.enqIdx.LoadAcquire()
		next := lhead.next.LoadAcquire()

		if deq >= enq && next == 0 {
			h.Reset(nil)
			return nil, false
		}

		idx := lhead.deqIdx.AddAcqRel(1) - 1

		if idx >= B {
			next = lhead.next.LoadAcquire()
			if next == 0 {
				h.Reset(nil)
				return nil, false
			}
			if q.head.CompareAndSwapAcqRel(uintptrFromNode(lhead), next) {
				// lhead.nextPtr is already resolved here: observing a
				// nonzero lhead.next via LoadAcquire happens-after whichever
				// producer's nextPtr CompareAndSwap published it.
				q.headPtr.Store(lhead.nextPtr.Load())
				h.Reset(nil)
				q.domain.Retire(&lhead.Header, nodeReclaim(q))
			} else {
				h.Reset(nil)
			}
			sw.Once()
			continue
		}

		prev := lhead.items[idx].ExchangeAcquire(q.takenAddr)
		if prev == 0 {
			// Producer FAA'd this index but hasn't published yet; we've
			// poisoned the slot so its CAS will fail and it retries
			// elsewhere. Yield and retry rather than spin tight.
			h.Reset(nil)
			sw.Once()
			continue
		}
		lhead.itemPtrs[idx] = nil
		h.Reset(nil)
		return uintptrToItem[T](prev), true
	}
}

// Destroy assumes quiescence: no concurrent Enqueue/Dequeue may be in
// flight. It drains the queue via thread id 0, reclaims the final node
// directly, releases every holder back to the domain, and forces a
// reclamation pass.
func (q *Queue[T]) Destroy() {
	for {
		if _, ok := q.Dequeue(0); !ok {
			break
		}
	}

	if finalHead := q.headPtr.Load(); finalHead != nil {
		nodeReclaim(q)(&finalHead.Header)
	}

	for i := range q.holders {
		q.holders[i].Release()
	}
	q.domain.Cleanup()
}
