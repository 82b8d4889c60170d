// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hp

import (
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// tagBits is the width of the ABA-guard counter packed into the top bits
// of the domain's free-stack head: a round counter bumped on every push
// and pop, so a pop-then-push of the same address cannot satisfy a stale
// CAS (ABA).
const tagBits = 16
const tagShift = 64 - tagBits
const addrMask = uint64(1)<<tagShift - 1

func packTagged(tag uint16, addr uintptr) uint64 {
	return uint64(tag)<<tagShift | uint64(addr)&addrMask
}

func untagAddr(v uint64) uintptr { return uintptr(v & addrMask) }
func untagCounter(v uint64) uint16 { return uint16(v >> tagShift) }

// shard is one of S independent Treiber stacks of retired objects. head
// is a real pointer rather than a bare address: a retired object has no
// other owner keeping it reachable, so the shard itself must be able to
// anchor it for the garbage collector between Retire and reclaim. This
// is also why shard.head uses sync/atomic.Pointer instead of
// atomix.Uintptr: no ABA-style tag is ever packed into it (extract
// always drains the whole stack at once, never pops item-by-item
// against a remembered head), so nothing here needs the bit-packing
// that forced the domain's free stack to stay address-based.
type shard struct {
	_    pad64
	head atomic.Pointer[Header]
}

func (s *shard) push(h *Header) {
	sw := spin.Wait{}
	for {
		top := s.head.Load()
		h.next = top
		if s.head.CompareAndSwap(top, h) {
			return
		}
		sw.Once()
	}
}

// extract atomically swaps the shard's head with nil, taking the entire
// list in one step.
func (s *shard) extract() *Header {
	return s.head.Swap(nil)
}

// scanSet is the reusable address set intersected against retired objects
// during a reclamation pass. Mutated only while reclaiming is held.
type scanSet map[uintptr]struct{}

// tlcTable is an immutable, copy-on-grow snapshot of tid-indexed
// thread-local caches, published via Domain.tlcTable with release
// ordering so readers never observe a torn slice header.
type tlcTable struct {
	slots []atomix.Uintptr // each slot holds the address of a *tlc, or 0
}

// recordsTable is an immutable, copy-on-grow snapshot of every Record a
// domain has ever allocated, grown the same way tlcTable is. Unlike the
// free stack, which links Records solely through atomix.Uintptr
// bookkeeping, recordsTable holds real *Record pointers:
// it is what keeps every Record reachable to the garbage collector for
// the domain's lifetime, independent of whether that Record currently
// sits on the free stack, in a tlc, or in use by a Holder.
type recordsTable struct {
	recs []*Record
}

// Domain is a hazard-pointer domain: the process-wide (or user-scoped)
// state backing every Holder and every retired object reclaimed through
// it. The zero value is not usable; construct with [DefaultDomain] or
// [NewDomain].
type Domain struct {
	_              pad64
	availHead      atomix.Uint64 // tagged: counter<<48 | address
	_              pad64
	recordCount    atomix.Uint64
	_              pad64
	retiredCount   atomix.Int64
	_              pad64
	reclaiming     atomix.Bool
	_              pad64
	fence          atomix.Uint64

	shards [ShardCount]shard

	opts Options

	tlcTable atomix.Uintptr // *tlcTable
	tlcGrow  atomix.Bool    // guards structural growth of tlcTable only

	records     atomic.Pointer[recordsTable]
	recordsGrow atomix.Bool // guards structural growth of records only

	scanSet scanSet // lazily allocated under reclaiming
}

var defaultDomain = newDomain(defaultOptions())

// DefaultDomain returns the process-wide hazard-pointer domain.
func DefaultDomain() *Domain {
	return defaultDomain
}

// NewDomain constructs an independent hazard-pointer domain. Useful in
// tests that need deterministic retired-object counts without
// interference from other packages sharing [DefaultDomain].
func NewDomain(opts ...Option) *Domain {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newDomain(o)
}

func newDomain(o Options) *Domain {
	d := &Domain{opts: o}
	if o.maxThreads > 0 {
		t := &tlcTable{slots: make([]atomix.Uintptr, o.maxThreads)}
		d.tlcTable.StoreRelease(uintptrFromPtr(unsafe.Pointer(t)))
	}
	return d
}

func (d *Domain) fenceSeqCst() {
	// A sequentially-consistent fence has no standalone primitive in
	// atomix (mirroring sync/atomic): an AddAcqRel read-modify-write on
	// any location is sequentially consistent with every other RMW,
	// which is what the asymmetric-fence argument actually needs.
	d.fence.AddAcqRel(1)
}

// AcquireHolder obtains exclusive use of one Record for tid: from tid's
// thread-local cache if possible, else the domain's free stack, else a
// fresh allocation.
func (d *Domain) AcquireHolder(tid int) Holder {
	t := d.ensureTLC(tid)
	rec := t.pop()
	if rec == nil {
		rec = d.popAvail()
	}
	if rec == nil {
		rec = d.newRecord()
	}
	return Holder{rec: rec, dom: d, tid: tid}
}

func (d *Domain) newRecord() *Record {
	r := &Record{domain: d}
	d.appendRecord(r)
	d.recordCount.AddAcqRel(1)
	return r
}

func (d *Domain) releaseRecord(tid int, r *Record) {
	t := d.ensureTLC(tid)
	if t.push(r) {
		return
	}
	d.pushAvail(r)
}

// ReleaseThread flushes tid's thread-local cache back to the domain's
// free stack. Call this when a worker owning tid retires permanently;
// Go has no goroutine-exit hook to do this automatically. Skipping it
// leaks at most TLCCapacity hp.Record slots, never user objects.
func (d *Domain) ReleaseThread(tid int) {
	addr := d.tlcTable.LoadAcquire()
	if addr == 0 {
		return
	}
	table := (*tlcTable)(ptrFromUintptr(addr))
	if tid < 0 || tid >= len(table.slots) {
		return
	}
	tAddr := table.slots[tid].LoadAcquire()
	if tAddr == 0 {
		return
	}
	t := (*tlc)(ptrFromUintptr(tAddr))
	for _, r := range t.drain() {
		d.pushAvail(r)
	}
}

func (d *Domain) ensureTLC(tid int) *tlc {
	table := d.ensureTable(tid)
	slot := &table.slots[tid]
	if addr := slot.LoadAcquire(); addr != 0 {
		return (*tlc)(ptrFromUintptr(addr))
	}
	fresh := &tlc{}
	freshAddr := uintptrFromPtr(unsafe.Pointer(fresh))
	if slot.CompareAndSwapAcqRel(0, freshAddr) {
		return fresh
	}
	return (*tlc)(ptrFromUintptr(slot.LoadAcquire()))
}

// ensureTable returns a tlcTable snapshot with at least tid+1 slots,
// growing the published snapshot under a spinlock only when needed. The
// table itself is never mutated after publish; growth always copies.
func (d *Domain) ensureTable(tid int) *tlcTable {
	for {
		addr := d.tlcTable.LoadAcquire()
		if addr != 0 {
			t := (*tlcTable)(ptrFromUintptr(addr))
			if tid < len(t.slots) {
				return t
			}
		}

		sw := spin.Wait{}
		for !d.tlcGrow.CompareAndSwapAcqRel(false, true) {
			sw.Once()
		}

		addr = d.tlcTable.LoadAcquire()
		var cur *tlcTable
		if addr != 0 {
			cur = (*tlcTable)(ptrFromUintptr(addr))
		}
		if cur == nil || tid >= len(cur.slots) {
			newLen := tid + 1
			if cur != nil && len(cur.slots)*2 > newLen {
				newLen = len(cur.slots) * 2
			}
			grown := &tlcTable{slots: make([]atomix.Uintptr, newLen)}
			if cur != nil {
				copy(grown.slots, cur.slots)
			}
			d.tlcTable.StoreRelease(uintptrFromPtr(unsafe.Pointer(grown)))
		}
		d.tlcGrow.StoreRelease(false)
	}
}

// appendRecord publishes r into the domain's permanent records table.
// Growth is append-only and infrequent (once per fresh Record
// allocation, itself amortized by the free stack and TLCs), so a
// spinlock-guarded copy-on-grow, identical in shape to ensureTable, is
// an acceptable cost on this cold path.
func (d *Domain) appendRecord(r *Record) {
	sw := spin.Wait{}
	for !d.recordsGrow.CompareAndSwapAcqRel(false, true) {
		sw.Once()
	}
	cur := d.records.Load()
	n := 0
	if cur != nil {
		n = len(cur.recs)
	}
	grown := &recordsTable{recs: make([]*Record, n+1)}
	if cur != nil {
		copy(grown.recs, cur.recs)
	}
	grown.recs[n] = r
	d.records.Store(grown)
	d.recordsGrow.StoreRelease(false)
}

func (d *Domain) walkAllRecords(fn func(*Record)) {
	t := d.records.Load()
	if t == nil {
		return
	}
	for _, r := range t.recs {
		fn(r)
	}
}

func (d *Domain) pushAvail(r *Record) {
	addr := uintptrFromPtr(unsafe.Pointer(r))
	sw := spin.Wait{}
	for {
		packed := d.availHead.LoadAcquire()
		headAddr := untagAddr(packed)
		r.availNext.StoreRelaxed(headAddr)
		newPacked := packTagged(untagCounter(packed)+1, addr)
		if d.availHead.CompareAndSwapAcqRel(packed, newPacked) {
			return
		}
		sw.Once()
	}
}

func (d *Domain) popAvail() *Record {
	sw := spin.Wait{}
	for {
		packed := d.availHead.LoadAcquire()
		addr := untagAddr(packed)
		if addr == 0 {
			return nil
		}
		r := (*Record)(ptrFromUintptr(addr))
		next := r.availNext.LoadRelaxed()
		newPacked := packTagged(untagCounter(packed)+1, next)
		if d.availHead.CompareAndSwapAcqRel(packed, newPacked) {
			return r
		}
		sw.Once()
	}
}

// Retire hands obj over to the domain for deferred reclamation. obj must
// already be unlinked from every structure a reader could reach it
// through; reclaim is invoked exactly once, once no hazard pointer
// protects obj's address.
func (d *Domain) Retire(obj *Header, reclaim func(*Header)) {
	obj.reclaim = reclaim
	d.fenceSeqCst()

	addr := uintptr(unsafe.Pointer(obj))
	shardIdx := (addr >> 4) & (ShardCount - 1)
	d.shards[shardIdx].push(obj)

	d.retiredCount.AddAcqRel(1)
	if claimed := d.checkThreshold(); claimed > 0 {
		d.doReclamation(claimed)
	}
}

func (d *Domain) threshold() int64 {
	dynamic := int64(d.recordCount.LoadAcquire()) * d.opts.thresholdMultiplier
	if dynamic > d.opts.thresholdBase {
		return dynamic
	}
	return d.opts.thresholdBase
}

// checkThreshold claims the current retired_count (CAS to 0) once it
// meets the dynamic threshold. Returns the claimed count, 0 if no
// thread met the threshold.
func (d *Domain) checkThreshold() int64 {
	threshold := d.threshold()
	for {
		cur := d.retiredCount.LoadAcquire()
		if cur < threshold {
			return 0
		}
		if d.retiredCount.CompareAndSwapAcqRel(cur, 0) {
			return cur
		}
	}
}

// doReclamation runs one reclamation pass. At most one reclaimer runs at
// a time; a losing reclaimer hands its claim back and returns.
func (d *Domain) doReclamation(claimed int64) {
	if !d.reclaiming.CompareAndSwapAcqRel(false, true) {
		d.retiredCount.AddAcqRel(claimed)
		return
	}
	defer d.reclaiming.StoreRelease(false)

	if d.scanSet == nil {
		d.scanSet = make(scanSet, int(d.recordCount.LoadRelaxed()))
	}

	for {
		var batches [ShardCount]*Header
		any := false
		for i := range d.shards {
			b := d.shards[i].extract()
			if b != nil {
				any = true
			}
			batches[i] = b
		}

		if !any {
			d.retiredCount.AddAcqRel(claimed)
			break
		}

		d.fenceSeqCst()
		for k := range d.scanSet {
			delete(d.scanSet, k)
		}
		d.walkAllRecords(func(r *Record) {
			if p := r.ptr.LoadAcquire(); p != 0 {
				d.scanSet[p] = struct{}{}
			}
		})

		var survivors *Header
		r := claimed
		for i := range batches {
			cur := batches[i]
			for cur != nil {
				next := cur.next
				addr := uintptr(unsafe.Pointer(cur))
				if _, live := d.scanSet[addr]; live {
					cur.next = survivors
					survivors = cur
				} else {
					cur.reclaim(cur)
					r--
				}
				cur = next
			}
		}
		if survivors != nil {
			d.spliceShard0(survivors)
		}
		d.retiredCount.AddAcqRel(r)

		claimed = d.checkThreshold()
		if claimed == 0 {
			break
		}
	}
}

func (d *Domain) spliceShard0(head *Header) {
	tail := head
	for tail.next != nil {
		tail = tail.next
	}
	sw := spin.Wait{}
	for {
		cur := d.shards[0].head.Load()
		tail.next = cur
		if d.shards[0].head.CompareAndSwap(cur, head) {
			return
		}
		sw.Once()
	}
}

// RetiredCount reports the domain's current unreclaimed-retirement count.
// Diagnostic only, same spirit as the teacher's Cap() accessor; no
// operation depends on observing it.
func (d *Domain) RetiredCount() int64 {
	return d.retiredCount.LoadAcquire()
}

// RecordCount reports the number of hp.Record slots the domain has ever
// allocated (TLC + free-stack + in-use, combined). Diagnostic only.
func (d *Domain) RecordCount() uint64 {
	return d.recordCount.LoadAcquire()
}

// Cleanup forces a reclamation pass over everything currently retired.
// Used at shutdown or in tests to drive retired objects to zero. It
// tolerates an already-running concurrent reclaimer.
func (d *Domain) Cleanup() {
	claimed := d.retiredCount.ExchangeAcqRel(0)
	d.doReclamation(claimed)
}
