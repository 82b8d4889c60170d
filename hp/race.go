// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package hp

// RaceEnabled is true when the race detector is active. Tests that
// exercise the retire/scan race directly skip under it: the race
// detector does not model atomix's acquire/release orderings as a
// happens-before source, so it flags the protect/retire handshake as a
// data race even when the SeqCst fence pairing makes it correct.
const RaceEnabled = true
