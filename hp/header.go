// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hp

// Header is the retired-object descriptor. Every object reclaimable
// through a Domain embeds Header as its first field, so the object's
// address and its Header's address coincide.
//
// Header identity is a stable address; the domain never dereferences
// payload beyond this header.
//
// next links a retired object to whatever sat below it on its shard's
// stack at the moment it was pushed. It is a real, garbage-collector-
// visible pointer rather than a bare address: a retired object is, by
// definition, unlinked from every structure its original owner used to
// keep it reachable, so the shard chain built from these next fields is
// the only thing keeping it alive between Retire and the reclaim
// callback. next is written exactly once, by the single goroutine that
// retires the object, before it is published on the shard; the single
// active reclaimer is the only other reader.
type Header struct {
	next    *Header
	reclaim func(*Header)
}
