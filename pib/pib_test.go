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

package pib

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ritmac/ritsim/types"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	require.NoError(t, s.Set(types.PibMacRitPeriodTime, 2*time.Second))
	v, ok := s.Get(types.PibMacRitPeriodTime)
	require.True(t, ok)
	require.Equal(t, 2*time.Second, v)
}

func TestSetRejectsNegativeDuration(t *testing.T) {
	s := New()
	err := s.Set(types.PibMacRitPeriodTime, -1*time.Second)
	require.Error(t, err)
}

func TestGetEffectivePrefersTimeBasedWhenSelected(t *testing.T) {
	s := New()
	s.SetUseTimeBasedRitParams(true)
	require.NoError(t, s.Set(types.PibMacRitPeriodTime, 3*time.Second))
	d, ok := s.GetEffective(types.PibMacRitPeriod)
	require.True(t, ok)
	require.Equal(t, 3*time.Second, d)
}

func TestGetEffectiveConvertsLegacyWhenTimeBasedMissing(t *testing.T) {
	s := New()
	s.SetUseTimeBasedRitParams(true)
	require.NoError(t, s.Set(types.PibMacRitPeriod, 10))
	d, ok := s.GetEffective(types.PibMacRitPeriodTime)
	require.True(t, ok)
	require.Equal(t, legacyToDuration(10), d)
	require.Greater(t, d, time.Duration(0))
}

func TestGetEffectivePrefersLegacyWhenNotTimeBased(t *testing.T) {
	s := New()
	s.SetUseTimeBasedRitParams(false)
	require.NoError(t, s.Set(types.PibMacRitPeriod, 5))
	require.NoError(t, s.Set(types.PibMacRitPeriodTime, 99*time.Hour))
	d, ok := s.GetEffective(types.PibMacRitPeriod)
	require.True(t, ok)
	require.Equal(t, legacyToDuration(5), d)
}

func TestGetEffectiveMissingReturnsNotOk(t *testing.T) {
	s := New()
	_, ok := s.GetEffective(types.PibMacRitPeriod)
	require.False(t, ok)
}

func TestOnPeriodChangeFiresOnChange(t *testing.T) {
	s := New()
	var gotOld, gotNew time.Duration
	calls := 0
	s.OnPeriodChange(func(old, new time.Duration) {
		gotOld, gotNew = old, new
		calls++
	})

	require.NoError(t, s.Set(types.PibMacRitPeriodTime, time.Second))
	require.Equal(t, 1, calls)
	require.Equal(t, time.Duration(0), gotOld)
	require.Equal(t, time.Second, gotNew)

	require.NoError(t, s.Set(types.PibMacRitPeriodTime, 2*time.Second))
	require.Equal(t, 2, calls)
	require.Equal(t, time.Second, gotOld)
	require.Equal(t, 2*time.Second, gotNew)
}

func TestOnPeriodChangeDoesNotFireOnUnrelatedAttribute(t *testing.T) {
	s := New()
	calls := 0
	s.OnPeriodChange(func(old, new time.Duration) { calls++ })
	require.NoError(t, s.Set(types.PibMacRitDataWaitDurationTime, time.Millisecond))
	require.Equal(t, 0, calls)
}
