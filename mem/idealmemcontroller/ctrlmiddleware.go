package idealmemcontroller

import (
	"github.com/hachisim/hachi/mem"
	"github.com/hachisim/hachi/sim"
)

// ctrlMiddleware processes control messages that enable, pause, drain, or
// reset the controller.
type ctrlMiddleware struct {
	*Comp
}

func (m *ctrlMiddleware) Tick() bool {
	msg := m.ctrlPort.PeekIncoming()
	if msg == nil {
		return false
	}

	ctrlMsg := msg.(*mem.ControlMsg)
	m.ctrlMsgMustBeValid(ctrlMsg)

	switch {
	case ctrlMsg.Reset:
		return m.handleReset(ctrlMsg)
	case ctrlMsg.Drain:
		return m.handleDrain(ctrlMsg)
	case ctrlMsg.Pause:
		return m.handlePause(ctrlMsg)
	default:
		return m.handleEnable(ctrlMsg)
	}
}

func (m *ctrlMiddleware) ctrlMsgMustBeValid(ctrlMsg *mem.ControlMsg) {
	if ctrlMsg.DiscardTransactions || ctrlMsg.Restart {
		panic("ideal memory controller has no transactions to discard or restart")
	}

	numActions := 0
	for _, set := range []bool{
		ctrlMsg.Enable, ctrlMsg.Pause, ctrlMsg.Drain, ctrlMsg.Reset,
	} {
		if set {
			numActions++
		}
	}

	if numActions != 1 {
		panic("control message must request exactly one of " +
			"enable, pause, drain, reset")
	}
}

func (m *ctrlMiddleware) handleEnable(ctrlMsg *mem.ControlMsg) bool {
	if !m.acknowledge(ctrlMsg) {
		return false
	}

	m.state = "enable"

	return true
}

func (m *ctrlMiddleware) handlePause(ctrlMsg *mem.ControlMsg) bool {
	if !m.acknowledge(ctrlMsg) {
		return false
	}

	m.state = "pause"

	return true
}

// handleReset discards the queued requests and restores the initial state.
func (m *ctrlMiddleware) handleReset(ctrlMsg *mem.ControlMsg) bool {
	if !m.acknowledge(ctrlMsg) {
		return false
	}

	m.inflightBuffer = nil
	m.drainReq = nil
	m.state = "enable"

	return true
}

// handleDrain acknowledges later, once the inflight requests are done.
func (m *ctrlMiddleware) handleDrain(ctrlMsg *mem.ControlMsg) bool {
	if m.drainReq != nil {
		panic("draining is already in progress")
	}

	m.ctrlPort.RetrieveIncoming()
	m.drainReq = ctrlMsg
	m.state = "drain"

	return true
}

// acknowledge responds to the control message and removes it from the ctrl
// port. It returns false if the response cannot be sent this cycle.
func (m *ctrlMiddleware) acknowledge(ctrlMsg *mem.ControlMsg) bool {
	rsp := sim.GeneralRspBuilder{}.
		WithSrc(m.ctrlPort.AsRemote()).
		WithDst(ctrlMsg.Src).
		WithOriginalReq(ctrlMsg).
		Build()

	err := m.ctrlPort.Send(rsp)
	if err != nil {
		return false
	}

	m.ctrlPort.RetrieveIncoming()

	return true
}
