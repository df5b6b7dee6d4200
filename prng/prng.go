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

// Package prng partitions pseudo-random streams by node id and by run id so
// that every stochastic element of the RIT MAC core (clock skew, jitter
// noise, retry delay, beacon phase) is independently reproducible across runs
// and uncorrelated across nodes, without any component reaching for the
// global math/rand source.
package prng

import (
	"math/rand"

	"github.com/ritmac/ritsim/types"
)

// Stream bases, mirroring the partitioning the core's RNG-consuming
// components are specified against: clock skew is drawn per node, noise and
// jitter are drawn per run.
const (
	StreamBaseClockSkew   = 1000
	StreamBaseNoise       = 2000
	StreamBaseBeaconPhase = 3000
	StreamBaseRetryDelay  = 4000
	StreamBasePhyLoss     = 5000
	StreamBasePhyDelay    = 6000
)

// Root is a seeded root generator from which independent, non-overlapping
// per-node and per-run streams are derived.
type Root struct {
	seed int64
}

// NewRoot creates a Root from rootSeed. Unlike a time-based seed, rootSeed
// must be supplied explicitly by the caller (a harness or test) so that a run
// is reproducible from its rootSeed alone.
func NewRoot(rootSeed int64) *Root {
	return &Root{seed: rootSeed}
}

// NodeStream returns the stream for (base, nodeId), e.g. the clock-skew
// stream for a given node.
func (r *Root) NodeStream(base int64, nodeId types.NodeId) *rand.Rand {
	return rand.New(rand.NewSource(r.seed + base + int64(nodeId)))
}

// RunStream returns the stream for (base, runId), e.g. the noise stream
// shared by all nodes within one run.
func (r *Root) RunStream(base int64, runId int) *rand.Rand {
	return rand.New(rand.NewSource(r.seed + base + int64(runId)))
}
