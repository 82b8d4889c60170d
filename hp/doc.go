// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hp provides hazard-pointer safe memory reclamation.
//
// Hazard pointers let many goroutines dereference shared pointers to heap
// objects while other goroutines logically unlink and eventually free those
// objects, with no reader-side locking and no global quiescence requirement.
//
// # Quick Start
//
//	dom := hp.DefaultDomain()
//	h := dom.AcquireHolder(tid)
//	defer h.Release()
//
//	p := h.Protect(&someAtomicPointerField)
//	if p != nil {
//	    // p is safe to dereference until h.Reset or h.Release.
//	}
//
// # Retiring an object
//
// An object becomes reclaimable once it has been unlinked from every
// structure a reader could reach it through. Retiring it hands the object
// to the domain; the domain frees it once no hazard pointer protects its
// address:
//
//	dom.Retire(&obj.Header, func(h *hp.Header) {
//	    freePool.Put((*MyObject)(unsafe.Pointer(h)))
//	})
//
// # Domains
//
// [DefaultDomain] returns a process-wide singleton suitable for most uses.
// [NewDomain] constructs an independent domain, useful in tests that need
// deterministic retired-object counts without interference from other
// packages sharing the default domain.
//
// # Thread identity
//
// Go goroutines have no OS-level thread-local storage, and goroutines
// migrate between OS threads. hp's thread-local record cache is therefore
// keyed by a caller-supplied logical id (tid), not by goroutine or OS
// thread. Callers that retire a worker permanently should call
// [Domain.ReleaseThread] to flush that tid's cached records back to the
// domain; failing to do so leaks at most K hp.Record slots, never user
// objects.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives with
// explicit memory ordering and [code.hybscloud.com/spin] for CPU pause
// instructions during CAS retry loops.
package hp
