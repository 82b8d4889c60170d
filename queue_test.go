// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package faaq_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/faaq"
	"code.hybscloud.com/faaq/hp"
	"code.hybscloud.com/iox"
)

func TestDequeueEmptyReturnsFalse(t *testing.T) {
	q, err := faaq.Create[int](1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer q.Destroy()

	if _, ok := q.Dequeue(0); ok {
		t.Fatalf("Dequeue on empty queue returned ok=true")
	}
}

func TestEnqueueDequeueOrderSingleThread(t *testing.T) {
	q, err := faaq.Create[int](1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer q.Destroy()

	a, b := 0xAAA, 0xBBB
	if err := q.Enqueue(0, &a); err != nil {
		t.Fatalf("Enqueue a: %v", err)
	}
	if err := q.Enqueue(0, &b); err != nil {
		t.Fatalf("Enqueue b: %v", err)
	}

	got, ok := q.Dequeue(0)
	if !ok || *got != 0xAAA {
		t.Fatalf("first dequeue = (%v, %v), want (0xAAA, true)", got, ok)
	}
	got, ok = q.Dequeue(0)
	if !ok || *got != 0xBBB {
		t.Fatalf("second dequeue = (%v, %v), want (0xBBB, true)", got, ok)
	}
	if _, ok := q.Dequeue(0); ok {
		t.Fatalf("third dequeue returned ok=true, want false")
	}
}

func TestNodeChainReclamationAcrossBoundary(t *testing.T) {
	// A low, fixed threshold (max(1, recordCount*1) = 2 with this queue's
	// two holder records) makes the domain reclaim interior nodes once two
	// have been retired rather than waiting for the default T_base=1000 to
	// accumulate, so this stays a fast, deterministic test.
	dom := hp.NewDomain(hp.WithThreshold(1, 1))
	q, err := faaq.CreateWithDomain[int](1, dom)
	if err != nil {
		t.Fatalf("CreateWithDomain: %v", err)
	}
	defer q.Destroy()

	const n = 2098 // > 2*faaq.B, forces at least two node-chain boundaries
	values := make([]int, n)
	for i := range values {
		values[i] = i + 1
		if err := q.Enqueue(0, &values[i]); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		got, ok := q.Dequeue(0)
		if !ok {
			t.Fatalf("Dequeue(%d): empty, want %d", i, values[i])
		}
		if *got != values[i] {
			t.Fatalf("Dequeue(%d) = %d, want %d", i, *got, values[i])
		}
	}
	if _, ok := q.Dequeue(0); ok {
		t.Fatalf("final dequeue returned ok=true, want empty")
	}

	created, reclaimed := q.Stats()
	if created < 3 {
		t.Fatalf("nodesCreated = %d, want at least 3 for %d items over B=%d slots", created, n, faaq.B)
	}
	if reclaimed < 2 {
		t.Fatalf("nodesReclaimed = %d, want at least 2 internal node reclamations", reclaimed)
	}
}

func TestPerProducerFIFO(t *testing.T) {
	if faaq.RaceEnabled {
		t.Skip("skip: concurrent producer stress requires concurrent access")
	}

	const numProducers = 4
	const itemsPerProducer = 5000

	q, err := faaq.Create[int](numProducers + 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer q.Destroy()

	var wg sync.WaitGroup
	for p := 0; p < numProducers; p++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				v := tid*1_000_000 + i
				if err := q.Enqueue(tid, &v); err != nil {
					t.Errorf("Enqueue: %v", err)
					return
				}
			}
		}(p)
	}
	wg.Wait()

	// A single consumer makes the dequeue stream's relative order
	// unambiguous; with multiple concurrent consumers, which goroutine's
	// slot-exchange completes first is a scheduling accident, not a
	// property this algorithm (or any FAA-based MPMC queue) promises to
	// control.
	consumerTid := numProducers
	lastSeq := make([]int, numProducers)
	for i := range lastSeq {
		lastSeq[i] = -1
	}

	total := numProducers * itemsPerProducer
	backoff := iox.Backoff{}
	for got := 0; got < total; {
		v, ok := q.Dequeue(consumerTid)
		if !ok {
			backoff.Wait()
			continue
		}
		backoff.Reset()
		producerID := *v / 1_000_000
		seq := *v % 1_000_000
		if seq <= lastSeq[producerID] {
			t.Fatalf("producer %d: out-of-order dequeue, seq=%d after last=%d", producerID, seq, lastSeq[producerID])
		}
		lastSeq[producerID] = seq
		got++
	}
}

func TestEmptyAfterQuiescenceStaysEmpty(t *testing.T) {
	q, err := faaq.Create[int](1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer q.Destroy()

	val := 1
	if err := q.Enqueue(0, &val); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, ok := q.Dequeue(0); !ok {
		t.Fatalf("Dequeue: expected the single enqueued item")
	}

	for i := 0; i < 100; i++ {
		if _, ok := q.Dequeue(0); ok {
			t.Fatalf("dequeue #%d unexpectedly returned an item after quiescence", i)
		}
	}
}

func TestMPMCExactlyOnceHighVolume(t *testing.T) {
	if faaq.RaceEnabled {
		t.Skip("skip: high-volume MPMC stress requires concurrent access")
	}

	const numProducers = 8
	const numConsumers = 8
	const itemsPerProducer = 20000
	const maxThreads = numProducers + numConsumers

	q, err := faaq.Create[int](maxThreads)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer q.Destroy()

	expectedTotal := numProducers * itemsPerProducer
	seen := make([]atomix.Int32, expectedTotal)

	var wg sync.WaitGroup
	for p := 0; p < numProducers; p++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				v := tid*1_000_000 + i
				if err := q.Enqueue(tid, &v); err != nil {
					t.Errorf("Enqueue: %v", err)
					return
				}
			}
		}(p)
	}

	var consumedCount atomix.Int64
	for c := 0; c < numConsumers; c++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			backoff := iox.Backoff{}
			deadline := time.Now().Add(30 * time.Second)
			for consumedCount.Load() < int64(expectedTotal) {
				if time.Now().After(deadline) {
					return
				}
				v, ok := q.Dequeue(numProducers + tid)
				if !ok {
					backoff.Wait()
					continue
				}
				backoff.Reset()
				producerID := *v / 1_000_000
				seq := *v % 1_000_000
				if producerID < 0 || producerID >= numProducers || seq < 0 || seq >= itemsPerProducer {
					t.Errorf("value out of range: %d", *v)
					consumedCount.Add(1)
					continue
				}
				seen[producerID*itemsPerProducer+seq].Add(1)
				consumedCount.Add(1)
			}
		}(c)
	}

	wg.Wait()

	if got := consumedCount.Load(); got != int64(expectedTotal) {
		t.Fatalf("consumed %d items, want exactly %d (unbounded queue must not drop items)", got, expectedTotal)
	}
	for i := range seen {
		if c := seen[i].Load(); c != 1 {
			t.Fatalf("item %d seen %d times, want exactly 1", i, c)
		}
	}
}
