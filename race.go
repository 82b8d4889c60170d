// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package faaq

// RaceEnabled is true when the race detector is active.
// Used by tests to skip concurrent tests against the hazard-pointer path,
// which trigger false positives because the race detector does not model
// atomix's acquire/release orderings as a happens-before source.
const RaceEnabled = true
