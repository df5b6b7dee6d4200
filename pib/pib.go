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

// Package pib is the MLME-SET/MLME-GET attribute store (the "PIB") the RIT
// MAC exposes to configuration code. Attributes at or above
// types.PibRitRangeStart hold RIT-specific parameters that can be expressed
// either as a legacy integer (a symbol/superframe count) or directly as a
// time.Duration; GetEffective reconciles the two under one flag.
package pib

import (
	"fmt"
	"time"

	"github.com/ritmac/ritsim/types"
)

// aBaseSuperframeDuration and symbolRate follow the 2.4GHz O-QPZ PHY
// parameters used to convert legacy symbol-count PIB values into durations:
// aBaseSuperframeDuration is in symbols, symbolRate is symbols/second.
const (
	aBaseSuperframeDuration = 960
	symbolRate              = 62500.0
)

// legacyToTimeAttr maps an integer-valued RIT attribute to its time-based
// counterpart, for GetEffective's conversion.
var legacyToTimeAttr = map[types.PibAttr]types.PibAttr{
	types.PibMacRitPeriod:           types.PibMacRitPeriodTime,
	types.PibMacRitDataWaitDuration: types.PibMacRitDataWaitDurationTime,
	types.PibMacRitTxWaitDuration:   types.PibMacRitTxWaitDurationTime,
}

// Store is the attribute store for one MAC instance. The zero value is not
// usable; construct with New.
type Store struct {
	values             map[types.PibAttr]interface{}
	useTimeBasedParams bool
	onPeriodChange     func(old, new time.Duration)
}

// New creates an empty Store.
func New() *Store {
	return &Store{values: make(map[types.PibAttr]interface{})}
}

// SetUseTimeBasedRitParams selects which encoding GetEffective prefers for
// RIT timing attributes.
func (s *Store) SetUseTimeBasedRitParams(use bool) {
	s.useTimeBasedParams = use
}

// OnPeriodChange installs the hook invoked whenever macRitPeriod or
// macRitPeriodTime is set to a new effective value; the MAC uses this to
// start its cycle when the period turns positive and stop it when the period
// returns to zero. A change between two positive periods does not restart a
// running cycle.
func (s *Store) OnPeriodChange(fn func(old, new time.Duration)) {
	s.onPeriodChange = fn
}

// Set stores value under id. A Time-valued RIT attribute must be
// non-negative; any other violation of the attribute's expected type is
// rejected rather than silently coerced.
func (s *Store) Set(id types.PibAttr, value interface{}) error {
	switch id {
	case types.PibMacRitPeriodTime, types.PibMacRitDataWaitDurationTime, types.PibMacRitTxWaitDurationTime:
		if _, ok := value.(time.Duration); !ok {
			return fmt.Errorf("pib: attribute %#x: expected time.Duration, got %T", id, value)
		}
	case types.PibMacRitPeriod, types.PibMacRitDataWaitDuration, types.PibMacRitTxWaitDuration:
		switch value.(type) {
		case int, uint16, int64:
		default:
			return fmt.Errorf("pib: attribute %#x: expected an integer, got %T", id, value)
		}
	}
	if d, ok := value.(time.Duration); ok && d < 0 {
		return fmt.Errorf("pib: attribute %#x: negative duration %v", id, d)
	}
	old, hadOld := s.effectivePeriod()
	s.values[id] = value
	if id == types.PibMacRitPeriod || id == types.PibMacRitPeriodTime {
		if newVal, ok := s.effectivePeriod(); ok && s.onPeriodChange != nil && (!hadOld || newVal != old) {
			s.onPeriodChange(old, newVal)
		}
	}
	return nil
}

// Get returns the raw stored value for id, exactly as last Set, without any
// legacy/time-based reconciliation.
func (s *Store) Get(id types.PibAttr) (value interface{}, ok bool) {
	value, ok = s.values[id]
	return value, ok
}

// GetEffective returns the attribute's value as a time.Duration, using
// whichever of the legacy integer or time-based encoding
// UseTimeBasedRitParams selects. When the selected encoding is absent but
// the other is present, the other is converted and returned.
func (s *Store) GetEffective(id types.PibAttr) (d time.Duration, ok bool) {
	timeAttr, legacyAttr := id, id
	if t, isLegacy := legacyToTimeAttr[id]; isLegacy {
		timeAttr = t
	} else {
		for legacy, t := range legacyToTimeAttr {
			if t == id {
				legacyAttr = legacy
				break
			}
		}
	}

	if s.useTimeBasedParams {
		if v, ok := s.values[timeAttr]; ok {
			return v.(time.Duration), true
		}
		if v, ok := s.values[legacyAttr]; ok {
			return legacyToDuration(v), true
		}
		return 0, false
	}
	if v, ok := s.values[legacyAttr]; ok {
		return legacyToDuration(v), true
	}
	if v, ok := s.values[timeAttr]; ok {
		return v.(time.Duration), true
	}
	return 0, false
}

func legacyToDuration(v interface{}) time.Duration {
	var symbols int64
	switch n := v.(type) {
	case int:
		symbols = int64(n) * aBaseSuperframeDuration
	case uint16:
		symbols = int64(n) * aBaseSuperframeDuration
	case int64:
		symbols = n * aBaseSuperframeDuration
	default:
		return 0
	}
	seconds := float64(symbols) / symbolRate
	return time.Duration(seconds * float64(time.Second))
}

func (s *Store) effectivePeriod() (time.Duration, bool) {
	return s.GetEffective(types.PibMacRitPeriod)
}
