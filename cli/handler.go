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

package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ritmac/ritsim/netdevice"
	"github.com/ritmac/ritsim/scheduler"
	"github.com/ritmac/ritsim/types"
)

// Topology is the small set of operations the REPL drives; cmd/ritnsim's
// main provides one backed by a real netdevice.Device set and scheduler.
type Topology interface {
	Nodes() []*netdevice.Device
	Scheduler() *scheduler.Scheduler
	Send(srcNodeId types.NodeId, payload []byte, dst types.ShortAddress) error
}

// Handler implements runcli's CliHandler against a Topology, exposing just
// enough commands to inspect and drive a run: advancing virtual time,
// sending a packet, and printing each node's id, short address and rank.
type Handler struct {
	topo Topology
}

// NewHandler creates a Handler driving topo.
func NewHandler(topo Topology) *Handler { return &Handler{topo: topo} }

func (h *Handler) GetPrompt() string {
	return fmt.Sprintf("ritnsim(%s)> ", h.topo.Scheduler().Now().Sub(time.Unix(0, 0)))
}

// HandleCommand parses and executes one REPL line. Unrecognized commands
// and malformed arguments are reported to output rather than returned as an
// error, so a typo never tears down the REPL loop.
func (h *Handler) HandleCommand(cmd string, output io.Writer) error {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "go":
		return h.cmdGo(fields[1:], output)
	case "send":
		return h.cmdSend(fields[1:], output)
	case "nodes":
		return h.cmdNodes(output)
	case "exit", "quit":
		return io.EOF
	default:
		fmt.Fprintf(output, "unknown command %q (try: go <duration>, send <node> <dst> <text>, nodes, exit)\n", fields[0])
		return nil
	}
}

func (h *Handler) cmdGo(args []string, output io.Writer) error {
	if len(args) != 1 {
		fmt.Fprintln(output, "usage: go <duration, e.g. 500ms>")
		return nil
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		fmt.Fprintf(output, "invalid duration %q: %v\n", args[0], err)
		return nil
	}
	sched := h.topo.Scheduler()
	sched.RunUntil(sched.Now().Add(d))
	return nil
}

func (h *Handler) cmdSend(args []string, output io.Writer) error {
	if len(args) < 3 {
		fmt.Fprintln(output, "usage: send <srcNodeId> <dstShortAddr> <text>")
		return nil
	}
	srcID, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(output, "invalid source node id %q: %v\n", args[0], err)
		return nil
	}
	dstAddr, err := strconv.ParseUint(args[1], 0, 16)
	if err != nil {
		fmt.Fprintf(output, "invalid destination address %q: %v\n", args[1], err)
		return nil
	}
	payload := []byte(strings.Join(args[2:], " "))
	if err := h.topo.Send(srcID, payload, types.ShortAddress(dstAddr)); err != nil {
		fmt.Fprintf(output, "send failed: %v\n", err)
	}
	return nil
}

func (h *Handler) cmdNodes(output io.Writer) error {
	for _, n := range h.topo.Nodes() {
		fmt.Fprintf(output, "node %d: short=0x%04x rank=%d\n", n.NodeId(), n.ShortAddr(), n.Rank())
	}
	return nil
}
