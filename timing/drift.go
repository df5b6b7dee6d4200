// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package timing applies clock skew and bounded random jitter to scheduled
// RIT instants.
package timing

import (
	"math"
	"math/rand"
	"time"

	"github.com/ritmac/ritsim/logger"
)

// ClockDriftApplier models a node's free-running clock: a constant
// per-node skew drawn once at construction, plus small random-walk noise on
// every application. T = t*(1+skew) + noise, noise ~ N(0, K*t), clamped to
// a non-negative result.
type ClockDriftApplier struct {
	skew float64 // ratio, e.g. 150 ppm == 150e-6
	k    float64 // noise coefficient, default 1e-9
	rng  *rand.Rand
}

const (
	DefaultMinSkewPpm = -250.0
	DefaultMaxSkewPpm = 250.0
	DefaultNoiseK     = 1e-9
)

// NewClockDriftApplier draws a skew uniformly from [minPpm, maxPpm] using rng
// (which should be a per-node stream, see ritsim/prng) and returns a ready
// applier with the default noise coefficient.
func NewClockDriftApplier(rng *rand.Rand, minPpm, maxPpm float64) *ClockDriftApplier {
	ppm := minPpm + rng.Float64()*(maxPpm-minPpm)
	return &ClockDriftApplier{
		skew: ppm / 1e6,
		k:    DefaultNoiseK,
		rng:  rng,
	}
}

// SetSkewPpm overrides the drawn skew with an explicit value, in ppm.
func (c *ClockDriftApplier) SetSkewPpm(ppm float64) {
	c.skew = ppm / 1e6
}

// SetK overrides the noise coefficient.
func (c *ClockDriftApplier) SetK(k float64) {
	c.k = k
}

// Apply returns the drift-adjusted duration for t.
func (c *ClockDriftApplier) Apply(t time.Duration) time.Duration {
	seconds := t.Seconds()
	variance := c.k * seconds
	if variance < 0 {
		variance = 0
	}
	noise := c.rng.NormFloat64() * math.Sqrt(variance)
	delay := seconds*(1.0+c.skew) + noise
	if delay < 0 {
		delay = 0
	}
	logger.Tracef("clock drift applied: in=%v skew=%g noise=%g out=%gs", t, c.skew, noise, delay)
	return time.Duration(delay * float64(time.Second))
}

// TimeDriftApplier adds bounded uniform jitter around a scheduled interval,
// used for beacon-interval randomization: t + U(-t*r/100, +t*r/100).
type TimeDriftApplier struct {
	driftRatio float64 // percent, 0..100
	rng        *rand.Rand
}

// NewTimeDriftApplier returns an applier with the given default drift ratio
// (percent, 0..100).
func NewTimeDriftApplier(rng *rand.Rand, driftRatio float64) *TimeDriftApplier {
	logger.AssertTrue(driftRatio >= 0.0 && driftRatio <= 100.0)
	return &TimeDriftApplier{driftRatio: driftRatio, rng: rng}
}

// ApplyByRatio jitters t by the applier's configured drift ratio.
func (a *TimeDriftApplier) ApplyByRatio(t time.Duration) time.Duration {
	return a.applyByRatio(t, a.driftRatio)
}

// ApplyByRatioPercent jitters t by an explicit drift ratio (percent, 0..100),
// overriding the applier's configured default for this one call.
func (a *TimeDriftApplier) ApplyByRatioPercent(t time.Duration, driftRatio float64) time.Duration {
	logger.AssertTrue(driftRatio >= 0.0 && driftRatio <= 100.0)
	return a.applyByRatio(t, driftRatio)
}

func (a *TimeDriftApplier) applyByRatio(t time.Duration, driftRatio float64) time.Duration {
	ms := float64(t) / float64(time.Millisecond)
	bound := ms * driftRatio / 100.0
	delta := -bound + a.rng.Float64()*(2*bound)
	out := t + time.Duration(delta*float64(time.Millisecond))
	logger.Tracef("time drift applied: in=%v ratio=%g%% delta=%gms out=%v", t, driftRatio, delta, out)
	return out
}
