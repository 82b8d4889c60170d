// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hp

import (
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Record is a single-slot protected-pointer cell owned by at most one
// Holder at a time. Records are never deallocated during normal
// operation; once allocated they are recycled through the domain's free
// stack and thread-local caches, and are leaked only at process shutdown.
// Every Record ever allocated is additionally held, for as long as the
// domain lives, by a real pointer in the domain's records table (see
// appendRecord): that table, not this struct, is what keeps a Record
// reachable to the garbage collector while it sits unprotected on the
// free stack between uses.
type Record struct {
	_         pad64
	ptr       atomix.Uintptr // protected address, 0 means unprotected
	_         pad64
	availNext atomix.Uintptr // address of next Record on the free stack / TLC link
	domain    *Domain
}

// pad64 is cache-line padding to prevent false sharing between a Record's
// hot ptr field and its neighbors' in the all-records slice.
type pad64 [64]byte

// Holder is a scoped owner of one Record for the duration of a protected
// region. Between AcquireHolder and Release, the holder's record is the
// caller's single protection slot.
type Holder struct {
	rec *Record
	dom *Domain
	tid int
}

// Reset stores p (possibly nil) into the holder's protection slot with
// release ordering, announcing that the caller may be about to dereference
// p and that it must not be reclaimed until the slot is cleared or
// overwritten.
func (h Holder) Reset(p unsafe.Pointer) {
	h.rec.ptr.StoreRelease(uintptrFromPtr(p))
}

// Protect is the load-protect-validate primitive. It repeatedly loads src,
// publishes the loaded address as a hazard pointer, fences, and reloads
// src to confirm the address is still current; on mismatch it retries with
// the freshly observed address.
func (h Holder) Protect(src *atomix.Uintptr) unsafe.Pointer {
	sw := spin.Wait{}
	p := src.LoadRelaxed()
	for {
		h.rec.ptr.StoreRelease(p)
		h.dom.fenceSeqCst()
		v := src.LoadAcquire()
		if p == v {
			return ptrFromUintptr(p)
		}
		p = v
		sw.Once()
	}
}

// Release returns the holder's record to the domain: to the calling tid's
// thread-local cache if it has room, else to the domain's free stack.
func (h Holder) Release() {
	h.rec.ptr.StoreRelease(0)
	h.dom.releaseRecord(h.tid, h.rec)
}
