// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package faaq

import "errors"

// ErrInvalidThreadCount is returned by Create and CreateWithDomain when
// maxThreads is not positive. It is the only reportable error in the
// package: every other invalid-argument case (nil item, sentinel
// collision, out-of-range tid) is a programmer error and panics instead,
// and an empty queue is signaled by Dequeue's bool return, not an error.
var ErrInvalidThreadCount = errors.New("faaq: max threads must be positive")
