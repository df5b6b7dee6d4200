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

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOrderingSameTimestampByInsertion(t *testing.T) {
	s := NewAt(time.Unix(0, 0))
	var order []int
	at := s.Now().Add(time.Second)
	s.Schedule(at, func() { order = append(order, 1) })
	s.Schedule(at, func() { order = append(order, 2) })
	s.Schedule(at, func() { order = append(order, 3) })
	s.RunUntil(at)
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestCancelPreventsCallback(t *testing.T) {
	s := NewAt(time.Unix(0, 0))
	fired := false
	id := s.ScheduleAfter(time.Second, func() { fired = true })
	s.Cancel(id)
	s.RunUntil(s.Now().Add(time.Hour))
	require.False(t, fired)
}

func TestCancelIsIdempotent(t *testing.T) {
	s := NewAt(time.Unix(0, 0))
	id := s.ScheduleAfter(time.Second, func() {})
	s.Cancel(id)
	require.NotPanics(t, func() { s.Cancel(id) })
}

func TestRunUntilAdvancesTimeEvenWithoutEvents(t *testing.T) {
	s := NewAt(time.Unix(0, 0))
	end := s.Now().Add(time.Minute)
	s.RunUntil(end)
	require.Equal(t, end, s.Now())
}
