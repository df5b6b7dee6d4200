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

// Package mac implements the Receiver-Initiated Transmission MAC: a
// duty-cycled MAC mode in which a node is either a Sender (holds queued data,
// periodically listens for a request from its receiver) or a Receiver
// (periodically broadcasts a beacon inviting its senders to request data),
// layered on a standard IEEE 802.15.4 frame format and channel-access chain.
package mac

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/ritmac/ritsim/channelaccess"
	"github.com/ritmac/ritsim/frame"
	"github.com/ritmac/ritsim/logger"
	"github.com/ritmac/ritsim/phy"
	"github.com/ritmac/ritsim/pib"
	"github.com/ritmac/ritsim/scheduler"
	"github.com/ritmac/ritsim/timing"
	"github.com/ritmac/ritsim/trace"
	"github.com/ritmac/ritsim/types"
)

// RitMacMode is the duty-cycle role a node plays while RIT mode is enabled.
type RitMacMode int

const (
	ModeDisabled  RitMacMode = iota // RIT mode off: plain always-on MAC
	ModeSender                      // holds data, periodically requests a window to send it
	ModeReceiver                    // periodically beacons, inviting senders to request data
	ModeSleep                       // between cycles: transceiver off (unless rxAlwaysOn)
	ModeBootstrap                   // transient mode before the first cycle has a rank/period to run against
)

func (m RitMacMode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModeSender:
		return "sender"
	case ModeReceiver:
		return "receiver"
	case ModeSleep:
		return "sleep"
	case ModeBootstrap:
		return "bootstrap"
	default:
		return "invalid"
	}
}

// macState is the MAC's internal transmit state machine, independent of the
// RIT duty-cycle mode above: it tracks what the single in-flight
// transmission (if any) is currently doing.
type macState int

const (
	stateIdle macState = iota
	stateCsma
	stateSending
	stateAckPending
)

// ModuleConfig selects which channel-access front-end, if any, guards each
// frame class. At most one flag in each family (data, beacon) may be set;
// Validate enforces this. continuous_tx, beacon_randomize, and
// compact_rit_data_request modify cycle behavior rather than access
// selection; beacon_ack switches the sender's reply to a held-channel
// beacon-ack-then-data exchange instead of a single direct transmission.
type ModuleConfig struct {
	DataCsmaEnabled  bool
	DataPreCsEnabled bool
	DataPreCsBEnabled bool

	BeaconCsmaEnabled  bool
	BeaconPreCsEnabled bool
	BeaconPreCsBEnabled bool

	ContinuousTxEnabled        bool
	BeaconRandomizeEnabled     bool
	CompactRitDataReqEnabled   bool
	BeaconAckEnabled           bool
}

// Validate rejects a configuration that sets more than one channel-access
// flag within the data family or within the beacon family: exactly one
// front-end (or none, meaning direct PHY transmission) can guard a given
// frame class at a time.
func (c ModuleConfig) Validate() error {
	dataFlags := 0
	for _, b := range []bool{c.DataCsmaEnabled, c.DataPreCsEnabled, c.DataPreCsBEnabled} {
		if b {
			dataFlags++
		}
	}
	if dataFlags > 1 {
		return errors.New("mac: ModuleConfig: at most one data_* channel-access flag may be set")
	}

	beaconFlags := 0
	for _, b := range []bool{c.BeaconCsmaEnabled, c.BeaconPreCsEnabled, c.BeaconPreCsBEnabled} {
		if b {
			beaconFlags++
		}
	}
	if beaconFlags > 1 {
		return errors.New("mac: ModuleConfig: at most one beacon_* channel-access flag may be set")
	}
	return nil
}

// txQueueElement is one queued MCPS-DATA.request awaiting its RIT window.
// The header is kept unencoded (rather than a pre-built wire frame) because
// do_send_rit_data rewrites its destination to the most recent RIT requester
// immediately before transmission.
type txQueueElement struct {
	header     frame.MacHeader
	payload    []byte
	msduHandle byte
}

// Config carries the construction-time parameters a scenario tunes per run.
type Config struct {
	ShortAddr types.ShortAddress
	ExtAddr   types.ExtAddress
	PanId     types.PanId

	RxAlwaysOn       bool
	ChecksumsEnabled bool

	AckWaitDuration       time.Duration
	ContinuousTxTimeout   time.Duration
	ClockDriftMinPpm      float64
	ClockDriftMaxPpm      float64
	BeaconRandomizeRatio  float64 // percent, 0..100
}

// DefaultAckWaitDuration mirrors macAckWaitDuration for an O-QPSK 2.4GHz PHY
// at the default macMinBE/macMaxBE: 120 symbols.
const DefaultAckWaitDuration = 120 * 16 * time.Microsecond

// DefaultContinuousTxTimeout bounds how long a receiver holds its data-wait
// window open while chaining a continuous-TX burst.
const DefaultContinuousTxTimeout = 10 * time.Millisecond

// DefaultBeaconRandomizeRatio is the default jitter ratio applied to the RIT
// period when beacon_randomize is set: up to +/-50%.
const DefaultBeaconRandomizeRatio = 50.0

// DefaultConfig returns a Config with the standard PHY timing defaults.
func DefaultConfig() Config {
	return Config{
		AckWaitDuration:      DefaultAckWaitDuration,
		ContinuousTxTimeout:  DefaultContinuousTxTimeout,
		ClockDriftMinPpm:     timing.DefaultMinSkewPpm,
		ClockDriftMaxPpm:     timing.DefaultMaxSkewPpm,
		BeaconRandomizeRatio: DefaultBeaconRandomizeRatio,
		ChecksumsEnabled:     true,
	}
}

// Mac is one node's RIT MAC instance, sitting between a phy.Adapter below and
// the rank-forwarding NWK layer above.
type Mac struct {
	adapter phy.Adapter
	sched   *scheduler.Scheduler
	bus     *trace.Bus
	pibStore *pib.Store

	cfg          Config
	moduleConfig ModuleConfig
	shortAddr    types.ShortAddress
	extAddr      types.ExtAddress
	panId        types.PanId

	clockDrift *timing.ClockDriftApplier
	timeDrift  *timing.TimeDriftApplier

	preCsB *channelaccess.PreCsB
	preCs  *channelaccess.PreCs
	csmaCa *channelaccess.CsmaCa

	ritMacMode RitMacMode
	macState   macState
	rxOnWhenIdle bool
	rxAlwaysOn   bool
	macDsn       byte

	txQueue                 []txQueueElement
	ritSending               bool
	lastRxRitReqFrameSrcAddr types.ShortAddress
	pendingTxWire            []byte
	pendingAccess            channelaccess.Access
	pendingIsBeaconAck       bool

	periodicRitEvent scheduler.EventID
	txWaitEvent      scheduler.EventID
	dataWaitEvent    scheduler.EventID
	ackWaitEvent     scheduler.EventID

	mcpsDataConfirmCb          func(msduHandle byte, status types.MacStatus)
	mcpsDataIndicationCb       func(payload []byte)
	mlmeRitRequestIndicationCb func(payload []byte)
}

// New creates a Mac driven by adapter, scheduling its RIT timers through
// sched, publishing trace events on bus, and drawing randomness (clock skew,
// channel-access backoff) from rng.
func New(adapter phy.Adapter, sched *scheduler.Scheduler, bus *trace.Bus, rng *rand.Rand, cfg Config) *Mac {
	m := &Mac{
		adapter:   adapter,
		sched:     sched,
		bus:       bus,
		pibStore:  pib.New(),
		cfg:       cfg,
		shortAddr: cfg.ShortAddr,
		extAddr:   cfg.ExtAddr,
		panId:     cfg.PanId,
		rxAlwaysOn: cfg.RxAlwaysOn,

		clockDrift: timing.NewClockDriftApplier(rng, cfg.ClockDriftMinPpm, cfg.ClockDriftMaxPpm),
		timeDrift:  timing.NewTimeDriftApplier(rng, cfg.BeaconRandomizeRatio),

		ritMacMode: ModeDisabled,
		macState:   stateIdle,
	}

	m.preCsB = channelaccess.NewPreCsB(adapter, sched, rng)
	m.preCs = channelaccess.NewPreCs(adapter)
	m.csmaCa = channelaccess.NewCsmaCa(adapter, sched, rng)
	channelaccess.Chain(m.preCsB, m.preCs, m.csmaCa)
	m.preCsB.SetMacStateCallback(m.channelAccessConfirm)
	m.preCs.SetMacStateCallback(m.channelAccessConfirm)
	m.csmaCa.SetMacStateCallback(m.channelAccessConfirm)

	adapter.SetCcaConfirmCallback(m.preCsB.PlmeCcaConfirm)
	adapter.SetDataIndicationCallback(m.pdDataIndication)
	adapter.SetDataConfirmCallback(m.pdDataConfirm)
	adapter.SetStateConfirmCallback(m.plmeSetTrxStateConfirm)

	m.pibStore.OnPeriodChange(m.onPeriodChange)

	return m
}

// selectAccess returns the channel-access front-end configured for the given
// frame class (isCommand selects the beacon/command family; false selects
// the data family), or nil when no flag in that family is set, meaning the
// frame goes straight to the PHY without any CCA.
func (m *Mac) selectAccess(isCommand bool) channelaccess.Access {
	if isCommand {
		switch {
		case m.moduleConfig.BeaconPreCsBEnabled:
			return m.preCsB
		case m.moduleConfig.BeaconPreCsEnabled:
			return m.preCs
		case m.moduleConfig.BeaconCsmaEnabled:
			return m.csmaCa
		default:
			return nil
		}
	}
	switch {
	case m.moduleConfig.DataPreCsBEnabled:
		return m.preCsB
	case m.moduleConfig.DataPreCsEnabled:
		return m.preCs
	case m.moduleConfig.DataCsmaEnabled:
		return m.csmaCa
	default:
		return nil
	}
}

// SetModuleConfig validates and installs cfg.
func (m *Mac) SetModuleConfig(cfg ModuleConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.moduleConfig = cfg
	return nil
}

// GetModuleConfig returns the currently installed ModuleConfig.
func (m *Mac) GetModuleConfig() ModuleConfig { return m.moduleConfig }

// SetUseTimeBasedRitParams selects whether the PIB's GetEffective, which the
// RIT timers read, prefers the time.Duration-valued RIT attributes over their
// legacy symbol-count counterparts when both are set. MlmeGetRequest is not
// affected: it returns the raw stored value.
func (m *Mac) SetUseTimeBasedRitParams(use bool) {
	m.pibStore.SetUseTimeBasedRitParams(use)
}

// SetRxAlwaysOn controls whether setSleep leaves the receiver listening
// (power-unconstrained evaluation nodes) instead of switching the
// transceiver off between RIT cycles.
func (m *Mac) SetRxAlwaysOn(on bool) { m.rxAlwaysOn = on }

// SetMcpsDataConfirmCallback installs the callback fired once per completed
// (or abandoned) outbound data transmission.
func (m *Mac) SetMcpsDataConfirmCallback(cb func(msduHandle byte, status types.MacStatus)) {
	m.mcpsDataConfirmCb = cb
}

// SetMcpsDataIndicationCallback installs the callback fired for every
// accepted inbound data frame's payload.
func (m *Mac) SetMcpsDataIndicationCallback(cb func(payload []byte)) {
	m.mcpsDataIndicationCb = cb
}

// SetMlmeRitRequestIndicationCallback installs the callback fired with the
// RIT request payload carried by a RIT_DATA_REQ received while in Sender
// mode (the upper layer uses this to learn the requester's identity/rank).
func (m *Mac) SetMlmeRitRequestIndicationCallback(cb func(payload []byte)) {
	m.mlmeRitRequestIndicationCb = cb
}

func (m *Mac) confirmData(msduHandle byte, status types.MacStatus) {
	if m.mcpsDataConfirmCb != nil {
		m.mcpsDataConfirmCb(msduHandle, status)
	}
}

// McpsDataRequest queues payload for transmission to params.DstShort. In RIT
// mode the frame is held until the node's next Sender cycle; outside RIT
// mode (ModeDisabled) it is sent immediately through the configured data
// access front-end.
func (m *Mac) McpsDataRequest(params types.McpsDataRequestParams, payload []byte) {
	if len(payload) > frame.MaxMpduPayloadSize {
		m.confirmData(params.MsduHandle, types.MacFrameTooLong)
		return
	}
	// This MAC always sources frames from its own short address, so "both
	// modes are none" reduces to the destination mode alone: a data request
	// with no destination addressing at all is unroutable.
	if params.DstAddrMode == types.AddrModeNone || params.DstAddrMode == types.AddrModeReserved {
		m.confirmData(params.MsduHandle, types.MacInvalidAddress)
		return
	}
	if params.TxOptions&(types.TxOptGts|types.TxOptIndirect) != 0 {
		m.confirmData(params.MsduHandle, types.MacInvalidParameter)
		return
	}

	hdr := frame.MacHeader{
		FrameType:       types.FrameTypeData,
		SeqNum:          m.macDsn,
		FrameVersion:    1,
		AckRequest:      params.TxOptions&types.TxOptAck != 0,
		SrcAddrMode:     types.AddrModeShort,
		SrcShort:        m.shortAddr,
		SrcPanId:        m.panId,
		DstAddrMode:     params.DstAddrMode,
		DstShort:        params.DstShort,
		DstPanId:        m.panId,
		PanIdCompressed: true,
	}
	m.macDsn++

	elem := txQueueElement{header: hdr, payload: payload, msduHandle: params.MsduHandle}

	if !m.isRitModeEnabled() {
		wire := frame.EncodeMacHeader(nil, hdr)
		wire = append(wire, payload...)
		if m.cfg.ChecksumsEnabled {
			wire = frame.AppendFCS(wire)
		}
		if m.macState != stateIdle {
			m.confirmData(params.MsduHandle, types.MacChannelAccessFailure)
			return
		}
		m.txQueue = append(m.txQueue, elem)
		m.transmitControlFrame(wire, false)
		return
	}

	m.txQueue = append(m.txQueue, elem)
	if m.ritMacMode == ModeSleep || m.ritMacMode == ModeBootstrap {
		m.checkTxAndStartSender()
	}
}

// MlmeSetRequest sets a PIB attribute. Attribute ids in the RIT range
// (>= PibRitRangeStart) are handled locally by the RIT engine; any other id
// is rejected, since this from-scratch core has no separate base MAC to
// delegate non-RIT attributes to.
func (m *Mac) MlmeSetRequest(id types.PibAttr, value interface{}) error {
	if id < types.PibRitRangeStart {
		return errors.Errorf("mac: MlmeSetRequest: attribute %#x is not in the RIT range and this MAC has no base attribute store to delegate to", id)
	}
	if err := m.pibStore.Set(id, value); err != nil {
		return errors.Wrapf(err, "mac: MlmeSetRequest(%#x)", id)
	}
	return nil
}

// MlmeGetRequest retrieves the raw stored value of a RIT-range PIB
// attribute.
func (m *Mac) MlmeGetRequest(id types.PibAttr) (interface{}, bool) {
	if id < types.PibRitRangeStart {
		return nil, false
	}
	return m.pibStore.Get(id)
}

// onPeriodChange is the PIB hook fired whenever the effective RIT period
// changes (including the off<->on transition at zero). It starts or stops
// the RIT cycle to track the new value.
func (m *Mac) onPeriodChange(old, newPeriod time.Duration) {
	switch {
	case old <= 0 && newPeriod > 0:
		m.startRitCycle()
	case old > 0 && newPeriod <= 0:
		m.stopRitCycle()
	case newPeriod > 0:
		// live period change while running: let the current cycle finish
		// naturally and re-arm at the new period on its next tick.
	}
}

func (m *Mac) isRitModeEnabled() bool {
	return m.ritMacMode != ModeDisabled
}

// startRitCycle begins RIT duty cycling: the node enters Bootstrap mode and
// arms the first periodic beacon/request tick.
func (m *Mac) startRitCycle() {
	m.checkPeriodVsDataWait()
	m.changeRitMacMode(ModeBootstrap)
	m.armPeriodicRitEvent()
}

// checkPeriodVsDataWait enforces invariant 2: the RIT period must be at
// least as long as the receiver-side data-wait window at cycle start, or a
// receiver cycle could still be open when the next one is due to begin.
// This is a configuration error and must fail loudly rather than silently
// produce overlapping cycles.
func (m *Mac) checkPeriodVsDataWait() {
	period, ok := m.pibStore.GetEffective(types.PibMacRitPeriod)
	if !ok || period <= 0 {
		return
	}
	dataWait, ok := m.pibStore.GetEffective(types.PibMacRitDataWaitDuration)
	if !ok {
		return
	}
	logger.AssertTrue(period >= dataWait,
		"mac: rit period %v is shorter than data-wait duration %v at cycle start", period, dataWait)
}

// stopRitCycle cancels all RIT timers and returns the MAC to an always-on,
// non-duty-cycled mode.
func (m *Mac) stopRitCycle() {
	m.sched.Cancel(m.periodicRitEvent)
	m.sched.Cancel(m.txWaitEvent)
	m.sched.Cancel(m.dataWaitEvent)
	m.sched.Cancel(m.ackWaitEvent)
	m.ritSending = false
	m.changeRitMacMode(ModeDisabled)
	m.setRxOnWhenIdle(true)
}

func (m *Mac) armPeriodicRitEvent() {
	period, ok := m.pibStore.GetEffective(types.PibMacRitPeriod)
	if !ok || period <= 0 {
		return
	}
	delay := m.clockDrift.Apply(period)
	if m.moduleConfig.BeaconRandomizeEnabled {
		delay = m.timeDrift.ApplyByRatio(delay)
	}
	m.periodicRitEvent = m.sched.ScheduleAfter(delay, m.periodicRitDataRequest)
}

// periodicRitDataRequest fires once per RIT period. A node already acting as
// Sender skips this tick entirely (it is busy running its own cycle);
// otherwise it checks whether queued data should start a Sender cycle, or
// else becomes Receiver for this tick and broadcasts a beacon.
func (m *Mac) periodicRitDataRequest() {
	logger.AssertTrue(m.isRitModeEnabled())
	m.armPeriodicRitEvent()

	if m.ritMacMode == ModeSender {
		return
	}

	if m.checkTxAndStartSender() {
		return
	}

	m.changeRitMacMode(ModeReceiver)
	m.doSendRitDataRequest()
}

// checkTxAndStartSender switches into Sender mode and opens the TX-wait
// window when the node has data queued, reporting whether it did so.
func (m *Mac) checkTxAndStartSender() bool {
	if len(m.txQueue) == 0 {
		return false
	}
	m.changeRitMacMode(ModeSender)
	m.startRitTxWaitPeriod()
	return true
}

func (m *Mac) changeRitMacMode(mode RitMacMode) {
	m.bus.Publish(trace.MacMode, 0, mode)
	m.ritMacMode = mode
}

// doSendRitDataRequest transmits this node's RIT beacon: a RIT_DATA_REQ
// command frame carrying whatever request payload the upper layer has set
// (normally a bare NWK header advertising this node's rank), broadcast so
// any sender listening for this receiver's cycle can respond.
func (m *Mac) doSendRitDataRequest() {
	payload, _ := m.pibStore.Get(types.PibMacRitRequestPayload)
	payloadBytes, _ := payload.([]byte)

	hdr := frame.MacHeader{
		FrameType:    types.FrameTypeCommand,
		SeqNum:       m.macDsn,
		FrameVersion: 1,
		DstAddrMode:  types.AddrModeShort,
		DstShort:     types.ShortBroadcastAddr,
		DstPanId:     m.panId,
		SrcAddrMode:  types.AddrModeShort,
		SrcShort:     m.shortAddr,
		SrcPanId:     m.panId,
	}
	if m.moduleConfig.CompactRitDataReqEnabled {
		hdr.DstAddrMode = types.AddrModeNone
		hdr.PanIdCompressed = true
	}
	m.macDsn++

	var body []byte
	body = frame.EncodeMacHeader(body, hdr)
	body = frame.EncodeCommandPayload(body, frame.CommandRitDataReq, payloadBytes)
	if m.cfg.ChecksumsEnabled {
		body = frame.AppendFCS(body)
	}

	m.bus.Publish(trace.MacTx, 0, body)
	m.transmitControlFrame(body, true)
}

// transmitControlFrame is the single entry point for handing a fully encoded
// wire frame to either a channel-access front-end or, if none is configured
// for this frame's class, directly to the PHY.
func (m *Mac) transmitControlFrame(wire []byte, isCommand bool) {
	logger.AssertTrue(m.macState == stateIdle)
	m.pendingTxWire = wire

	access := m.selectAccess(isCommand)
	if access == nil {
		m.macState = stateSending
		m.adapter.PlmeSetTrxStateRequest(types.TrxTx)
		return
	}

	m.pendingAccess = access
	m.macState = stateCsma
	m.adapter.PlmeSetTrxStateRequest(types.TrxRx)
}

// plmeSetTrxStateConfirm is the PHY's response to PLME-SET-TRX-STATE.request.
// A Device confirms synchronously, so this runs inside the same call stack
// that requested the state change: when the MAC is waiting to run channel
// access and the radio is now receive-capable, it starts the selected
// front-end; when it is waiting to transmit and the radio is now
// transmit-capable, it hands the pending frame to the PHY.
func (m *Mac) plmeSetTrxStateConfirm(state types.TrxState, status types.MacStatus) {
	if status != types.MacSuccess {
		return
	}
	switch {
	case m.macState == stateCsma && state == types.TrxRx:
		logger.AssertTrue(m.pendingAccess != nil)
		m.pendingAccess.Start()
	case m.macState == stateSending && state == types.TrxTx:
		m.adapter.PdDataRequest(m.pendingTxWire)
	}
}

// channelAccessConfirm is the shared SetMacStateCallback target for all three
// channel-access instances. Only one can be running at a time, since the MAC
// never has more than one transmission in flight.
func (m *Mac) channelAccessConfirm(status types.CcaStatus) {
	m.pendingAccess = nil
	if status == types.CcaBusy {
		m.onChannelAccessFailure()
		return
	}
	m.macState = stateSending
	m.adapter.PlmeSetTrxStateRequest(types.TrxTx)
}

// onChannelAccessFailure abandons the current transmission attempt: a data
// frame is confirmed MacChannelAccessFailure and dropped from the queue (no
// automatic MAC-layer retry -- that is the NWK layer's job); a beacon or RIT
// request is simply dropped, and the node waits for its next periodic tick.
func (m *Mac) onChannelAccessFailure() {
	m.bus.Publish(trace.MacTxDrop, 0, m.pendingTxWire)
	hdr, ok, _ := frame.DecodeMacHeader(m.pendingTxWire)
	m.pendingTxWire = nil
	m.macState = stateIdle

	if ok && hdr.FrameType == types.FrameTypeData && len(m.txQueue) > 0 {
		head := m.txQueue[0]
		m.txQueue = m.txQueue[1:]
		m.confirmData(head.msduHandle, types.MacChannelAccessFailure)
		if m.ritMacMode == ModeSender {
			m.ritSending = false
			m.endSenderCycle()
		}
		return
	}

	// Command/beacon channel-access failure: no MAC-layer retry for the RIT
	// cycle's own control traffic, the next periodic tick tries again.
	if m.ritMacMode == ModeReceiver {
		m.startRitDataWaitPeriod()
	}
}

// setRxOnWhenIdle records whether the MAC wants the receiver listening while
// otherwise idle, turning the radio on immediately when set. Clearing the
// flag alone does not power the radio down -- that happens explicitly
// through setSleep.
func (m *Mac) setRxOnWhenIdle(on bool) {
	m.rxOnWhenIdle = on
	if on {
		m.adapter.PlmeSetTrxStateRequest(types.TrxRx)
	}
}

// setSleep ends the current RIT cycle's active window: the node goes back to
// Sleep (transceiver off) unless configured to stay receive-capable at all
// times.
func (m *Mac) setSleep() {
	logger.AssertTrue(m.isRitModeEnabled())
	m.macState = stateIdle
	m.changeRitMacMode(ModeSleep)
	if m.rxAlwaysOn {
		m.adapter.PlmeSetTrxStateRequest(types.TrxRx)
		return
	}
	m.adapter.PlmeSetTrxStateRequest(types.TrxOff)
}

// startRitDataWaitPeriod opens the Receiver's post-beacon data-wait window:
// listen for incoming data until rit_data_wait_duration elapses.
func (m *Mac) startRitDataWaitPeriod() {
	logger.AssertTrue(m.isRitModeEnabled())
	m.changeRitMacMode(ModeReceiver)
	m.bus.Publish(trace.DataWait, 0, "start")
	m.setRxOnWhenIdle(true)
	m.macState = stateIdle

	dataWait, ok := m.pibStore.GetEffective(types.PibMacRitDataWaitDuration)
	if !ok || dataWait <= 0 {
		logger.Debugf("mac: no RIT data wait duration configured, ending receiver cycle immediately")
		m.endReceiverCycle()
		return
	}
	m.sched.Cancel(m.dataWaitEvent)
	m.dataWaitEvent = m.sched.ScheduleAfter(dataWait, m.receiverCycleTimeout)
}

// startRitTxWaitPeriod opens the Sender's TX-wait window: listen for a
// RIT_DATA_REQ from the receiver until rit_tx_wait_duration elapses.
func (m *Mac) startRitTxWaitPeriod() {
	logger.AssertTrue(m.isRitModeEnabled() && m.ritMacMode == ModeSender)
	m.bus.Publish(trace.BeaconWait, 0, "start")
	m.setRxOnWhenIdle(true)
	m.macState = stateIdle

	txWait, ok := m.pibStore.GetEffective(types.PibMacRitTxWaitDuration)
	if !ok || txWait <= 0 {
		m.endSenderCycle()
		return
	}
	m.txWaitEvent = m.sched.ScheduleAfter(txWait, m.senderCycleTimeout)
}

func (m *Mac) senderCycleTimeout() {
	logger.AssertTrue(m.isRitModeEnabled() && m.ritMacMode == ModeSender)
	m.bus.Publish(trace.BeaconWait, 0, "timeout")
	m.endSenderCycle()
}

// endSenderCycle tears down the Sender role for this tick: data stays queued
// for the next one.
func (m *Mac) endSenderCycle() {
	logger.AssertTrue(m.isRitModeEnabled() && m.ritMacMode == ModeSender)
	m.sched.Cancel(m.txWaitEvent)
	m.ritSending = false
	m.setSleep()
}

func (m *Mac) receiverCycleTimeout() {
	logger.AssertTrue(m.isRitModeEnabled() && m.ritMacMode == ModeReceiver)
	m.bus.Publish(trace.DataWait, 0, "timeout")
	m.endReceiverCycle()
}

func (m *Mac) endReceiverCycle() {
	logger.AssertTrue(m.isRitModeEnabled())
	m.sched.Cancel(m.dataWaitEvent)
	m.setSleep()
}

func (m *Mac) ackWaitTimeout() {
	if m.ritMacMode != ModeSender {
		logger.Errorf("mac: ack wait timeout in unexpected mode %v", m.ritMacMode)
		return
	}
	m.bus.Publish(trace.MacTxDrop, 0, m.pendingTxWire)
	m.pendingTxWire = nil
	if len(m.txQueue) > 0 {
		head := m.txQueue[0]
		m.confirmData(head.msduHandle, types.MacNoAck)
		m.txQueue = m.txQueue[1:]
	}
	m.ritSending = false
	m.endSenderCycle()
}

// pdDataIndication is the PHY's PD-DATA.indication: a frame arrived over the
// air. It runs the frame through the FCS check, header decode, and address
// filter before dispatching to the appropriate handler.
func (m *Mac) pdDataIndication(wire []byte) {
	body := wire
	if m.cfg.ChecksumsEnabled {
		var ok bool
		body, ok = frame.CheckAndStripFCS(wire)
		if !ok {
			m.bus.Publish(trace.MacRxDrop, 0, wire)
			return
		}
	}

	hdr, ok, rest := frame.DecodeMacHeader(body)
	if !ok {
		m.bus.Publish(trace.MacRxDrop, 0, wire)
		return
	}

	if !m.acceptFrame(hdr) {
		m.bus.Publish(trace.MacRxDrop, 0, wire)
		return
	}
	m.bus.Publish(trace.MacRx, 0, wire)

	switch {
	case hdr.FrameType == types.FrameTypeCommand:
		m.receiveCommand(hdr, rest)
	case hdr.FrameType == types.FrameTypeData:
		m.receiveData(hdr, rest)
	case hdr.FrameType == types.FrameTypeMultipurpose:
		m.receiveBeaconAck(hdr)
	case hdr.FrameType == types.FrameTypeAck:
		m.receiveAck(hdr)
	default:
		logger.Debugf("mac: dropping unsupported frame type %v", hdr.FrameType)
	}
}

// acceptFrame is the MAC's address filter: a destination PAN, when present,
// must match macPanId, be the broadcast PAN, or (for a command frame) find
// macPanId itself unset; a destination address, when present, must match
// this node or be the broadcast/no-ack short address.
func (m *Mac) acceptFrame(hdr frame.MacHeader) bool {
	if hdr.FrameType == types.FrameTypeReserved {
		return false
	}
	if hdr.FrameVersion > 1 {
		return false
	}

	if hdr.DstAddrMode != types.AddrModeNone {
		panOk := hdr.DstPanId == m.panId || hdr.DstPanId == types.PanIdBroadcast
		panOk = panOk || (m.panId == types.PanIdBroadcast && hdr.FrameType == types.FrameTypeCommand)
		if !panOk {
			return false
		}
	}

	switch hdr.DstAddrMode {
	case types.AddrModeNone:
		return true
	case types.AddrModeShort:
		if hdr.DstShort == m.shortAddr {
			return true
		}
		if hdr.DstShort == types.ShortBroadcastAddr {
			return hdr.FrameType == types.FrameTypeCommand && !hdr.AckRequest
		}
		return false
	case types.AddrModeExtended:
		return hdr.DstExt == m.extAddr
	default:
		return false
	}
}

func (m *Mac) receiveCommand(hdr frame.MacHeader, payload []byte) {
	cmdID, rest, ok := frame.DecodeCommandPayload(payload)
	if !ok {
		return
	}
	switch cmdID {
	case frame.CommandRitDataReq:
		m.handleRitDataReq(hdr, rest)
	default:
		logger.Debugf("mac: dropping unsupported command id %#x", cmdID)
	}
}

// handleRitDataReq handles an inbound RIT_DATA_REQ command. Only a node
// currently in Sender mode, waiting on its TX-wait window, acts on it: the
// requester becomes this node's transmission destination for the cycle, and
// the upper layer is notified so it can decide whether this requester is
// actually this node's designated parent.
func (m *Mac) handleRitDataReq(hdr frame.MacHeader, payload []byte) {
	if m.ritMacMode != ModeSender {
		logger.Debugf("mac: RIT_DATA_REQ received outside sender mode (%v), ignored", m.ritMacMode)
		return
	}
	if m.ritSending {
		logger.Debugf("mac: RIT_DATA_REQ received while already sending, ignored")
		return
	}

	m.lastRxRitReqFrameSrcAddr = hdr.SrcShort

	if m.mlmeRitRequestIndicationCb != nil {
		m.mlmeRitRequestIndicationCb(payload)
	}
}

// receiveData handles an inbound data frame while in Receiver mode. A frame
// requesting acknowledgment restarts the data-wait window and schedules an
// ACK; one without ack request ends the receiver cycle immediately since no
// further exchange is expected.
func (m *Mac) receiveData(hdr frame.MacHeader, payload []byte) {
	if m.isRitModeEnabled() && m.ritMacMode != ModeReceiver {
		logger.Debugf("mac: data received outside receiver mode (%v), ignored", m.ritMacMode)
		return
	}
	m.bus.Publish(trace.DataWait, 0, "data")

	if hdr.AckRequest {
		if m.isRitModeEnabled() {
			m.sched.Cancel(m.dataWaitEvent)
		}
		m.sendAck(hdr.SeqNum)

		if m.mcpsDataIndicationCb != nil {
			m.mcpsDataIndicationCb(payload)
		}

		if !m.isRitModeEnabled() {
			return
		}
		dataWait, ok := m.pibStore.GetEffective(types.PibMacRitDataWaitDuration)
		if ok && dataWait > 0 {
			m.dataWaitEvent = m.sched.ScheduleAfter(dataWait, m.receiverCycleTimeout)
		}
		return
	}

	if m.mcpsDataIndicationCb != nil {
		m.mcpsDataIndicationCb(payload)
	}
	if m.isRitModeEnabled() {
		m.endReceiverCycle()
	}
}

func (m *Mac) receiveBeaconAck(hdr frame.MacHeader) {
	if m.ritMacMode != ModeReceiver || !m.moduleConfig.BeaconAckEnabled {
		return
	}
	m.sched.Cancel(m.dataWaitEvent)
	m.dataWaitEvent = m.sched.ScheduleAfter(m.cfg.ContinuousTxTimeout, m.receiverCycleTimeout)
}

// receiveAck matches an inbound ACK frame against the transmission this MAC
// is currently waiting on, completing the sender-side exchange on a match.
func (m *Mac) receiveAck(hdr frame.MacHeader) {
	if m.macState != stateAckPending {
		return
	}
	sentHdr, ok, _ := frame.DecodeMacHeader(m.pendingTxWire)
	if !ok || hdr.SeqNum != sentHdr.SeqNum {
		return
	}

	m.sched.Cancel(m.ackWaitEvent)
	m.bus.Publish(trace.MacTxOk, 0, m.pendingTxWire)
	m.pendingTxWire = nil

	if len(m.txQueue) > 0 {
		head := m.txQueue[0]
		m.confirmData(head.msduHandle, types.MacSuccess)
		m.txQueue = m.txQueue[1:]
	}

	m.ritSending = false
	m.macState = stateIdle
	m.endSenderCycle()
}

func (m *Mac) sendAck(seq byte) {
	hdr := frame.MacHeader{FrameType: types.FrameTypeAck, SeqNum: seq, FrameVersion: 1}
	wire := frame.EncodeMacHeader(nil, hdr)
	if m.cfg.ChecksumsEnabled {
		wire = frame.AppendFCS(wire)
	}

	m.pendingTxWire = wire
	m.macState = stateSending
	m.adapter.PlmeSetTrxStateRequest(types.TrxTx)
}

// SendRitData is the upper layer's signal (via MlmeRitRequestIndication's
// caller deciding the requester is this node's parent) that this node should
// answer the pending RIT_DATA_REQ with its queued data now.
func (m *Mac) SendRitData() {
	if m.ritMacMode != ModeSender {
		logger.Debugf("mac: SendRitData called outside sender mode (%v), ignored", m.ritMacMode)
		return
	}
	if len(m.txQueue) == 0 {
		logger.Warnf("mac: SendRitData called with an empty tx queue")
		return
	}
	if m.macState != stateIdle {
		logger.Debugf("mac: SendRitData skipped, MAC busy")
		return
	}

	m.sched.Cancel(m.txWaitEvent)
	m.bus.Publish(trace.BeaconWait, 0, "end")
	m.ritSending = true

	if m.moduleConfig.BeaconAckEnabled {
		m.doSendRitBeaconAck()
		return
	}
	m.doSendRitData()
}

// doSendRitData rewrites the queue head's destination to the most recently
// received RIT requester and transmits it.
func (m *Mac) doSendRitData() {
	logger.AssertTrue(len(m.txQueue) > 0)
	head := &m.txQueue[0]
	head.header.DstAddrMode = types.AddrModeShort
	head.header.DstShort = m.lastRxRitReqFrameSrcAddr
	head.header.DstPanId = m.panId
	head.header.PanIdCompressed = head.header.SrcPanId == head.header.DstPanId

	var wire []byte
	wire = frame.EncodeMacHeader(wire, head.header)
	wire = append(wire, head.payload...)
	if m.cfg.ChecksumsEnabled {
		wire = frame.AppendFCS(wire)
	}

	m.bus.Publish(trace.MacTx, 0, wire)
	m.transmitControlFrame(wire, false)
}

// doSendRitBeaconAck transmits a multipurpose beacon-ack to the RIT
// requester directly (no channel access), holding the channel before the
// actual data frame follows in the subsequent PD-DATA.confirm.
func (m *Mac) doSendRitBeaconAck() {
	hdr := frame.MacHeader{
		FrameType:       types.FrameTypeMultipurpose,
		SeqNum:          m.macDsn,
		FrameVersion:    1,
		DstAddrMode:     types.AddrModeShort,
		DstShort:        m.lastRxRitReqFrameSrcAddr,
		DstPanId:        m.panId,
		PanIdCompressed: true,
	}
	m.macDsn++

	wire := frame.EncodeMacHeader(nil, hdr)
	if m.cfg.ChecksumsEnabled {
		wire = frame.AppendFCS(wire)
	}

	m.pendingTxWire = wire
	m.pendingIsBeaconAck = true
	m.macState = stateSending
	m.adapter.PlmeSetTrxStateRequest(types.TrxTx)
}

// pdDataConfirm is the PHY's PD-DATA.confirm: the transmission requested by
// the most recent transmitControlFrame/sendAck/doSendRitData* call has
// completed (or failed). Dispatch depends on the outgoing frame's type, its
// ack-request flag, and the current RIT role.
func (m *Mac) pdDataConfirm(status types.MacStatus) {
	if m.rxOnWhenIdle {
		m.adapter.PlmeSetTrxStateRequest(types.TrxRx)
	}
	if status != types.MacSuccess {
		m.bus.Publish(trace.MacTxDrop, 0, m.pendingTxWire)
		m.pendingTxWire = nil
		m.macState = stateIdle
		if m.ritMacMode == ModeSender {
			m.ritSending = false
			m.endSenderCycle()
		}
		return
	}

	hdr, ok, _ := frame.DecodeMacHeader(m.pendingTxWire)
	logger.AssertTrue(ok)

	switch hdr.FrameType {
	case types.FrameTypeAck:
		m.pendingTxWire = nil
		m.macState = stateIdle
		if !m.isRitModeEnabled() {
			return
		}
		if m.moduleConfig.ContinuousTxEnabled {
			m.sched.Cancel(m.dataWaitEvent)
			m.dataWaitEvent = m.sched.ScheduleAfter(m.cfg.ContinuousTxTimeout, m.receiverCycleTimeout)
			return
		}
		m.endReceiverCycle()

	case types.FrameTypeCommand:
		m.macState = stateIdle
		m.startRitDataWaitPeriod()

	case types.FrameTypeMultipurpose:
		m.pendingIsBeaconAck = false
		m.macState = stateIdle
		m.doSendRitData()

	case types.FrameTypeData:
		m.pdDataConfirmData(hdr)

	default:
		logger.Errorf("mac: unexpected frame type in pdDataConfirm: %v", hdr.FrameType)
		m.macState = stateIdle
	}
}

func (m *Mac) pdDataConfirmData(hdr frame.MacHeader) {
	if hdr.AckRequest && m.isRitModeEnabled() {
		m.macState = stateAckPending
		m.ackWaitEvent = m.sched.ScheduleAfter(m.cfg.AckWaitDuration, m.ackWaitTimeout)
		return
	}

	m.bus.Publish(trace.MacTxOk, 0, m.pendingTxWire)
	m.pendingTxWire = nil
	m.macState = stateIdle

	if !m.isRitModeEnabled() {
		// Plain always-on MAC: no RIT cycle to end, just confirm and drain
		// the queue head.
		if len(m.txQueue) > 0 {
			head := m.txQueue[0]
			m.txQueue = m.txQueue[1:]
			m.confirmData(head.msduHandle, types.MacSuccess)
		}
		return
	}

	if len(m.txQueue) == 0 {
		m.ritSending = false
		m.endSenderCycle()
		return
	}

	head := m.txQueue[0]
	m.txQueue = m.txQueue[1:]
	m.confirmData(head.msduHandle, types.MacSuccess)

	if m.moduleConfig.ContinuousTxEnabled && len(m.txQueue) > 0 {
		m.doSendRitData()
		return
	}

	m.ritSending = false
	m.endSenderCycle()
}

// GetRitPeriodTime, GetRitDataWaitDurationTime, and GetRitTxWaitDurationTime
// return the currently effective RIT timing attributes, reconciling the
// legacy integer and time-based PIB encodings.
func (m *Mac) GetRitPeriodTime() (time.Duration, bool) {
	return m.pibStore.GetEffective(types.PibMacRitPeriod)
}

func (m *Mac) GetRitDataWaitDurationTime() (time.Duration, bool) {
	return m.pibStore.GetEffective(types.PibMacRitDataWaitDuration)
}

func (m *Mac) GetRitTxWaitDurationTime() (time.Duration, bool) {
	return m.pibStore.GetEffective(types.PibMacRitTxWaitDuration)
}

// GetContinuousTxTimeoutTime returns the configured continuous-TX chaining
// timeout.
func (m *Mac) GetContinuousTxTimeoutTime() time.Duration {
	return m.cfg.ContinuousTxTimeout
}
