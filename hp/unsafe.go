// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hp

import "unsafe"

// ptrFromUintptr reinterprets addr as an unsafe.Pointer. addr must be an
// address obtained from uintptrFromPtr on a value still kept alive by the
// caller; the hazard-pointer protocol itself is what keeps it alive here.
func ptrFromUintptr(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr)
}

// uintptrFromPtr extracts the bit pattern of p for storage in an
// atomix.Uintptr slot.
func uintptrFromPtr(p unsafe.Pointer) uintptr {
	return uintptr(p)
}
