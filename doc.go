// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package faaq provides an unbounded, multi-producer multi-consumer FIFO
// queue built on fetch-and-add fast paths and a Michael-Scott-style chain
// of fixed-size node segments. Node lifecycle — when a dequeued node's
// memory actually becomes safe to drop — is mediated by the hazard-pointer
// engine in [code.hybscloud.com/faaq/hp], not by reference counting or
// garbage-collector finalizers.
//
// # Quick Start
//
//	q, err := faaq.Create[Event](runtime.GOMAXPROCS(0))
//	if err != nil {
//	    // only returns for maxThreads <= 0
//	}
//
//	// Producer (thread id 0)
//	ev := &Event{Kind: "tick"}
//	if err := q.Enqueue(0, ev); err != nil {
//	    // not reached: Enqueue returns nil; a nil item or sentinel
//	    // collision panics instead
//	}
//
//	// Consumer (thread id 1)
//	item, ok := q.Dequeue(1)
//	if !ok {
//	    // queue was empty at the linearization point, not an error
//	}
//
// # Thread Identity
//
// Every operation takes a caller-assigned tid in [0, maxThreads). Unlike
// the teacher's bounded queues, which infer producer/consumer roles from
// the type of queue constructed (SPSC/MPSC/SPMC/MPMC), faaq has exactly
// one algorithm and instead asks the caller to assign each concurrent
// worker a stable small integer. tid doubles as the key into the
// hazard-pointer engine's thread-local record cache (see hp's package
// doc); reusing a tid across two goroutines that run concurrently is
// undefined, same as reusing one across two queues.
//
// # Error Handling
//
// [Create] and [CreateWithDomain] are the only operations that return a
// non-nil error, and only for a non-positive maxThreads
// ([ErrInvalidThreadCount]); [Queue.Enqueue]'s error result is always nil.
// Every other invalid argument — a nil item, an item pointer that
// happens to equal the queue's internal taken sentinel, or a tid outside
// [0, maxThreads) — is a programmer error and panics rather than
// returning an error, matching the teacher's own
// panic("lfq: capacity must be >= 2")-style precondition checks.
// [Queue.Dequeue] returning false for an empty queue is not an error at
// all; callers polling for work should back off with
// [code.hybscloud.com/iox]'s Backoff type between empty dequeues, the
// same pattern the teacher documents for its own ErrWouldBlock retries.
//
// # Thread Safety
//
// Enqueue and Dequeue are lock-free (wait-free on the fast path: one FAA
// plus one CAS or exchange). Any number of goroutines may call them
// concurrently, each with its own tid. [Queue.Destroy] assumes
// quiescence — no concurrent Enqueue/Dequeue may be in flight when it
// runs.
//
// # Race Detection
//
// faaq's [RaceEnabled] mirrors the teacher's own constant and exists for
// the same reason: Go's race detector does not model
// code.hybscloud.com/atomix's acquire/release orderings as a
// happens-before source, so concurrent stress tests that are correct
// under the documented memory model check RaceEnabled and skip under
// -race to avoid false positives.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives
// with explicit memory ordering, [code.hybscloud.com/spin] for CAS-retry
// backoff, and [code.hybscloud.com/faaq/hp] for deferred node
// reclamation.
package faaq
