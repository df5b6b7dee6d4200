// Copyright (c) 2023-2024, The OTNS Authors.
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

package logger

import (
	"fmt"
	"sync"

	"github.com/ritmac/ritsim/types"
)

// NodeLogger buffers log entries for one simulated node so that a multi-node
// run can attribute every message to the node that produced it, and display
// them in batches at a chosen display level without the per-call overhead of
// a full zap field set.
type NodeLogger struct {
	Id           types.NodeId
	displayLevel Level
	entries      chan logEntry
}

var (
	nodeLogs      = make(map[types.NodeId]*NodeLogger, 10)
	nodeLogsMutex sync.Mutex
)

// GetNodeLogger returns (creating if needed) the NodeLogger for the given node id.
func GetNodeLogger(id types.NodeId) *NodeLogger {
	nodeLogsMutex.Lock()
	defer nodeLogsMutex.Unlock()

	nl, ok := nodeLogs[id]
	if !ok {
		nl = &NodeLogger{
			Id:           id,
			displayLevel: InfoLevel,
			entries:      make(chan logEntry, 1000),
		}
		nodeLogs[id] = nl
	}
	return nl
}

func (nl *NodeLogger) SetDisplayLevel(level Level) {
	nl.displayLevel = level
}

func (nl *NodeLogger) push(level Level, msg string) {
	entry := logEntry{NodeId: nl.Id, Level: level, Msg: msg}
	select {
	case nl.entries <- entry:
	default:
		nl.Flush()
		nl.entries <- entry
	}
}

func (nl *NodeLogger) Tracef(format string, args ...interface{}) { nl.push(TraceLevel, getMessage(format, args)) }
func (nl *NodeLogger) Debugf(format string, args ...interface{}) { nl.push(DebugLevel, getMessage(format, args)) }
func (nl *NodeLogger) Infof(format string, args ...interface{})  { nl.push(InfoLevel, getMessage(format, args)) }
func (nl *NodeLogger) Warnf(format string, args ...interface{})  { nl.push(WarnLevel, getMessage(format, args)) }
func (nl *NodeLogger) Errorf(format string, args ...interface{}) { nl.push(ErrorLevel, getMessage(format, args)) }

// Flush displays (and drains) all entries buffered for this node so far.
func (nl *NodeLogger) Flush() {
	prefix := fmt.Sprintf("node %d: ", nl.Id)
	for {
		select {
		case entry := <-nl.entries:
			if nl.displayLevel >= entry.Level {
				logAlways(entry.Level, prefix+entry.Msg)
			}
		default:
			return
		}
	}
}
