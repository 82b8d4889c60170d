// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hp

// Tuning defaults from the reference algorithm. ThresholdBase and
// ThresholdMultiplier can be overridden per domain at NewDomain
// construction time via WithThreshold; ShardCount and TLCCapacity size
// fixed arrays and cannot be changed per domain. DefaultDomain always uses
// these values.
const (
	// ShardCount is the number of independent retired-object stacks (S).
	// Must be a power of two.
	ShardCount = 8

	// TLCCapacity is the per-tid thread-local record cache capacity (K).
	TLCCapacity = 8

	// ThresholdBase is the minimum reclamation threshold (T_base).
	ThresholdBase = 1000

	// ThresholdMultiplier scales the threshold by live record count (M).
	ThresholdMultiplier = 2
)

// Options configures a Domain at construction time.
type Options struct {
	thresholdBase       int64
	thresholdMultiplier int64
	maxThreads          int
}

// Option configures a Domain. See NewDomain.
type Option func(*Options)

// WithThreshold overrides the dynamic reclamation threshold formula
// max(base, recordCount*multiplier). Panics if base < 0 or multiplier < 0.
func WithThreshold(base, multiplier int64) Option {
	if base < 0 || multiplier < 0 {
		panic("hp: threshold base and multiplier must be non-negative")
	}
	return func(o *Options) {
		o.thresholdBase = base
		o.thresholdMultiplier = multiplier
	}
}

// WithMaxThreads pre-sizes the domain's tid-indexed thread-local-cache
// table to avoid growth on first touch of each tid. Optional: the table
// grows lazily regardless.
func WithMaxThreads(n int) Option {
	if n < 0 {
		panic("hp: max threads must be non-negative")
	}
	return func(o *Options) {
		o.maxThreads = n
	}
}

func defaultOptions() Options {
	return Options{
		thresholdBase:       ThresholdBase,
		thresholdMultiplier: ThresholdMultiplier,
	}
}
