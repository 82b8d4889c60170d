// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hp

import "testing"

func TestThresholdMonotonicity(t *testing.T) {
	d := NewDomain(WithThreshold(100, 3))

	before := d.threshold()
	if before != d.opts.thresholdBase {
		t.Fatalf("threshold with zero records = %d, want base %d", before, d.opts.thresholdBase)
	}

	d.recordCount.AddAcqRel(50)
	after := d.threshold()
	if after < before {
		t.Fatalf("threshold decreased as recordCount grew: before=%d after=%d", before, after)
	}

	d.recordCount.AddAcqRel(1000)
	grown := d.threshold()
	if grown < after {
		t.Fatalf("threshold decreased on further recordCount growth: after=%d grown=%d", after, grown)
	}
	if grown <= d.opts.thresholdBase {
		t.Fatalf("dynamic threshold %d did not exceed base %d despite large recordCount", grown, d.opts.thresholdBase)
	}
}
