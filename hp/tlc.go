// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hp

// tlc is a per-tid fixed-capacity cache of free Records, used to amortize
// acquire/release against the domain's shared free stack.
//
// tlc is a strictly local optimization; correctness does not depend on
// it. Acquire pops from the top; release pushes to the top; on overflow
// during release the caller falls through to a domain push instead.
type tlc struct {
	records [TLCCapacity]*Record
	n       int
}

func (c *tlc) pop() *Record {
	if c.n == 0 {
		return nil
	}
	c.n--
	r := c.records[c.n]
	c.records[c.n] = nil
	return r
}

func (c *tlc) push(r *Record) bool {
	if c.n == TLCCapacity {
		return false
	}
	c.records[c.n] = r
	c.n++
	return true
}

// drain empties the cache, returning its contents as a slice for splicing
// onto the domain's free stack. Used by ReleaseThread.
func (c *tlc) drain() []*Record {
	if c.n == 0 {
		return nil
	}
	out := make([]*Record, c.n)
	copy(out, c.records[:c.n])
	c.n = 0
	for i := range c.records {
		c.records[i] = nil
	}
	return out
}
