package idealmemcontroller

import (
	"log"
	"reflect"

	"github.com/hachisim/hachi/mem"
	"github.com/hachisim/hachi/sim"
	"github.com/hachisim/hachi/tracing"
)

// memMiddleware models the timing of read and write requests. Requests are
// taken from the top port into an inflight buffer and each one schedules a
// respond event Latency cycles later.
type memMiddleware struct {
	*Comp
}

func (m *memMiddleware) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *readRespondEvent:
		return m.handleReadRespondEvent(e)
	case *writeRespondEvent:
		return m.handleWriteRespondEvent(e)
	default:
		log.Panicf("cannot handle event of %s", reflect.TypeOf(e))
	}

	return nil
}

func (m *memMiddleware) Tick() bool {
	madeProgress := false

	madeProgress = m.takeNewReqs() || madeProgress
	madeProgress = m.execute() || madeProgress

	return madeProgress
}

func (m *memMiddleware) takeNewReqs() (madeProgress bool) {
	if m.state != "enable" {
		return false
	}

	for i := 0; i < m.width; i++ {
		msg := m.topPort.RetrieveIncoming()
		if msg == nil {
			break
		}

		m.inflightBuffer = append(m.inflightBuffer, msg)
		madeProgress = true
	}

	return madeProgress
}

func (m *memMiddleware) execute() bool {
	madeProgress := false

	switch state := m.state; state {
	case "enable":
		madeProgress = m.handleInflightMemReqs()
	case "pause":
		madeProgress = false
	case "drain":
		madeProgress = m.handleDrain()
	}

	return madeProgress
}

func (m *memMiddleware) handleInflightMemReqs() bool {
	madeProgress := false

	for i := 0; i < m.width; i++ {
		madeProgress = m.handleMemReq() || madeProgress
	}

	return madeProgress
}

func (m *memMiddleware) handleMemReq() bool {
	if len(m.inflightBuffer) == 0 {
		return false
	}

	msg := m.inflightBuffer[0]
	m.inflightBuffer = m.inflightBuffer[1:]

	tracing.TraceReqReceive(msg, m.Comp)

	switch msg := msg.(type) {
	case *mem.ReadReq:
		m.handleReadReq(msg)
		return true
	case *mem.WriteReq:
		m.handleWriteReq(msg)
		return true
	default:
		log.Panicf("cannot handle request of type %s", reflect.TypeOf(msg))
	}

	return false
}

func (m *memMiddleware) handleReadReq(req *mem.ReadReq) {
	now := m.CurrentTime()
	timeToSchedule := m.Freq.NCyclesLater(m.Latency, now)
	respondEvent := newReadRespondEvent(timeToSchedule, m, req)
	m.Engine.Schedule(respondEvent)
}

func (m *memMiddleware) handleWriteReq(req *mem.WriteReq) {
	now := m.CurrentTime()
	timeToSchedule := m.Freq.NCyclesLater(m.Latency, now)
	respondEvent := newWriteRespondEvent(timeToSchedule, m, req)
	m.Engine.Schedule(respondEvent)
}

// handleDrain keeps processing the inflight requests. Once both the
// inflight buffer and the top port are empty, it acknowledges the drain
// request and pauses the controller.
func (m *memMiddleware) handleDrain() bool {
	madeProgress := m.handleInflightMemReqs()

	if len(m.inflightBuffer) > 0 || m.topPort.PeekIncoming() != nil {
		return madeProgress
	}

	ctrlRsp := sim.GeneralRspBuilder{}.
		WithSrc(m.ctrlPort.AsRemote()).
		WithDst(m.drainReq.Src).
		WithOriginalReq(m.drainReq).
		Build()

	err := m.ctrlPort.Send(ctrlRsp)
	if err != nil {
		return madeProgress
	}

	m.state = "pause"
	m.drainReq = nil

	return true
}

func (m *memMiddleware) handleReadRespondEvent(e *readRespondEvent) error {
	now := e.Time()
	req := e.req

	data, err := m.Storage.Read(
		m.storageAddr(req.Address), req.AccessByteSize)
	if err != nil {
		log.Panic(err)
	}

	rsp := mem.DataReadyRspBuilder{}.
		WithSrc(m.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID).
		WithData(data).
		Build()

	networkErr := m.topPort.Send(rsp)
	if networkErr != nil {
		retry := newReadRespondEvent(m.Freq.NextTick(now), m, req)
		m.Engine.Schedule(retry)

		return nil
	}

	tracing.TraceReqComplete(req, m.Comp)
	m.TickLater()

	return nil
}

func (m *memMiddleware) handleWriteRespondEvent(e *writeRespondEvent) error {
	now := e.Time()
	req := e.req

	rsp := mem.WriteDoneRspBuilder{}.
		WithSrc(m.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID).
		Build()

	networkErr := m.topPort.Send(rsp)
	if networkErr != nil {
		retry := newWriteRespondEvent(m.Freq.NextTick(now), m, req)
		m.Engine.Schedule(retry)

		return nil
	}

	m.writeStorage(req)

	tracing.TraceReqComplete(req, m.Comp)
	m.TickLater()

	return nil
}
