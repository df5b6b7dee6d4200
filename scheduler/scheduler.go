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

// Package scheduler provides a single-threaded, deterministic virtual-time
// event queue. Its concrete *Scheduler type is what the RIT MAC core
// consumes directly (there is no separate scheduler interface); it is a
// test/demo stand-in, not a production discrete-event simulator kernel: no
// multi-process coordination, no wall-clock sleeping, just a priority queue
// of (time, callback) pairs drained by Run/RunUntil.
package scheduler

import (
	"container/heap"
	"time"
)

// EventID identifies a scheduled event for cancellation.
type EventID uint64

type event struct {
	at    time.Time
	seq   uint64 // breaks ties between equal timestamps by insertion order
	id    EventID
	fn    func()
	index int
}

type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q eventQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}

func (q *eventQueue) Push(x interface{}) {
	e := x.(*event)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// Scheduler is a single-node virtual-time event queue. The zero value, once
// its start time is set via NewAt, is ready to use.
type Scheduler struct {
	now     time.Time
	q       eventQueue
	byID    map[EventID]*event
	nextID  EventID
	nextSeq uint64
}

// NewAt creates a Scheduler whose virtual clock starts at start.
func NewAt(start time.Time) *Scheduler {
	s := &Scheduler{now: start, byID: make(map[EventID]*event)}
	heap.Init(&s.q)
	return s
}

// Now returns the scheduler's current virtual time.
func (s *Scheduler) Now() time.Time { return s.now }

// Schedule arms fn to run at absolute time at, returning an id that Cancel
// accepts. Scheduling in the past is treated as scheduling for now.
func (s *Scheduler) Schedule(at time.Time, fn func()) EventID {
	if at.Before(s.now) {
		at = s.now
	}
	s.nextID++
	s.nextSeq++
	e := &event{at: at, seq: s.nextSeq, id: s.nextID, fn: fn}
	heap.Push(&s.q, e)
	s.byID[e.id] = e
	return e.id
}

// ScheduleAfter arms fn to run d after now.
func (s *Scheduler) ScheduleAfter(d time.Duration, fn func()) EventID {
	return s.Schedule(s.now.Add(d), fn)
}

// Cancel prevents a pending event from firing. Cancelling an unknown or
// already-fired id is a no-op, matching the core's idempotent-cancellation
// requirement.
func (s *Scheduler) Cancel(id EventID) {
	e, ok := s.byID[id]
	if !ok {
		return
	}
	heap.Remove(&s.q, e.index)
	delete(s.byID, id)
}

// Step fires the single next-due event, advancing Now() to its timestamp.
// Returns false if the queue is empty.
func (s *Scheduler) Step() bool {
	if len(s.q) == 0 {
		return false
	}
	e := heap.Pop(&s.q).(*event)
	delete(s.byID, e.id)
	s.now = e.at
	e.fn()
	return true
}

// RunUntil drains events in timestamp order until the queue is empty or the
// next event's time would exceed end, leaving Now() at end in the latter case.
func (s *Scheduler) RunUntil(end time.Time) {
	for len(s.q) > 0 && !s.q[0].at.After(end) {
		if !s.Step() {
			break
		}
	}
	if s.now.Before(end) {
		s.now = end
	}
}

// Pending reports how many events remain scheduled.
func (s *Scheduler) Pending() int { return len(s.q) }
