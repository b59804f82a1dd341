package blocking

import (
	"log"
	"reflect"

	"github.com/hachisim/hachi/mem"
	"github.com/hachisim/hachi/mem/cache/internal/tagging"
	"github.com/hachisim/hachi/sim"
	"github.com/hachisim/hachi/tracing"
)

// middleware moves the one in-service request through the cache. Stages run
// back to front so that a finished stage frees the next one in the same
// cycle.
type middleware struct {
	*Comp
}

func (m *middleware) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *lookupEvent:
		return m.handleLookupEvent()
	default:
		log.Panicf("cannot handle event of %s", reflect.TypeOf(e))
	}

	return nil
}

func (m *middleware) Tick() bool {
	madeProgress := false

	madeProgress = m.respond() || madeProgress
	madeProgress = m.parseBottom() || madeProgress
	madeProgress = m.bottomSender.Tick() || madeProgress
	madeProgress = m.admit() || madeProgress

	return madeProgress
}

// respond hands the finished response to the top port. The cache stays
// blocked until the port accepts it.
func (m *middleware) respond() bool {
	if m.state != stateRespond {
		return false
	}

	err := m.topPorts[m.trans.channelID].Send(m.trans.rsp)
	if err != nil {
		return false
	}

	tracing.TraceReqComplete(m.trans.req, m.Comp)

	m.trans = nil
	m.state = stateIdle

	return true
}

// parseBottom consumes one message from the memory below: the fill for the
// outstanding fetch, or the acknowledgment of an earlier writeback.
func (m *middleware) parseBottom() bool {
	item := m.bottomPort.PeekIncoming()
	if item == nil {
		return false
	}

	switch rsp := item.(type) {
	case *mem.DataReadyRsp:
		return m.handleFetchRsp(rsp)
	case *mem.WriteDoneRsp:
		return m.handleWritebackRsp(rsp)
	default:
		log.Panicf("cannot handle message of type %s", reflect.TypeOf(item))
	}

	return false
}

// admit starts serving a new request. Top ports are polled in a fixed
// order, so the lowest-numbered waiting channel wins.
func (m *middleware) admit() bool {
	if m.state != stateIdle {
		return false
	}

	for channelID, port := range m.topPorts {
		item := port.PeekIncoming()
		if item == nil {
			continue
		}

		req, ok := item.(mem.AccessReq)
		if !ok {
			log.Panicf("cannot handle request of type %s",
				reflect.TypeOf(item))
		}

		port.RetrieveIncoming()
		m.admitReq(req, channelID)

		return true
	}

	return false
}

func (m *middleware) admitReq(req mem.AccessReq, channelID int) {
	if m.trans != nil {
		log.Panic("cache admitted a request while another is in service")
	}

	m.reqMustNotSpanBlocks(req)

	tracing.TraceReqReceive(req, m.Comp)

	m.trans = &transaction{
		req:       req,
		channelID: channelID,
	}
	m.state = stateAwaitLatency

	now := m.CurrentTime()
	evt := newLookupEvent(m.Freq.NCyclesLater(m.latency, now), m)
	m.Engine.Schedule(evt)
}

func (m *middleware) handleLookupEvent() error {
	if m.state != stateAwaitLatency {
		log.Panic("lookup fired while no request is awaiting it")
	}

	req := m.trans.req
	taskID := tracing.MsgIDAtReceiver(req, m.Comp)

	block, found := m.tags.Lookup(m.blockAligned(req.GetAddress()))
	if found {
		tracing.AddTaskStep(taskID, m.Comp, "cache_hit")
		m.respondFromBlock(block)
		m.TickLater()

		return nil
	}

	tracing.AddTaskStep(taskID, m.Comp, "cache_miss")
	m.fetchFromBottom()

	return nil
}

// respondFromBlock serves the in-service request from a resident block and
// readies the response for the top port.
func (m *middleware) respondFromBlock(block tagging.Block) {
	req := m.trans.req
	src := m.topPorts[m.trans.channelID].AsRemote()

	var rsp mem.AccessRsp

	switch req := req.(type) {
	case *mem.ReadReq:
		rsp = m.readFromBlock(block, req, src)
		block.ReadCount++
		m.tags.Update(block)
	case *mem.WriteReq:
		rsp = m.writeToBlock(block, req, src)
	default:
		log.Panicf("cannot serve request of type %s", reflect.TypeOf(req))
	}

	m.tags.Visit(block)

	m.trans.rsp = rsp
	m.state = stateRespond
}

// fetchFromBottom requests the whole block that serves the missed address.
// A sub-block request is thereby upgraded to a block-sized one; the
// original is answered from the block once it is filled.
func (m *middleware) fetchFromBottom() {
	req := m.trans.req
	alignedAddr := m.blockAligned(req.GetAddress())

	fetch := mem.ReadReqBuilder{}.
		WithSrc(m.bottomPort.AsRemote()).
		WithDst(m.addressToPortMapper.Find(alignedAddr)).
		WithAddress(alignedAddr).
		WithByteSize(uint64(m.blockSize)).
		Build()

	m.sendToBottom(fetch)
	tracing.TraceReqInitiate(fetch, m.Comp,
		tracing.MsgIDAtReceiver(req, m.Comp))

	m.trans.fetch = fetch
	m.state = stateAwaitBottom
	m.TickLater()
}

// sendToBottom queues one message for the memory below. At most a pending
// writeback and the fetch that follows it can be queued at a time.
func (m *middleware) sendToBottom(msg sim.Msg) {
	if !m.bottomSender.CanSend(1) {
		log.Panic("cache queued more than two downstream messages")
	}

	m.bottomSender.Send(msg)
}

func (m *middleware) handleFetchRsp(rsp *mem.DataReadyRsp) bool {
	if m.state != stateAwaitBottom || rsp.RespondTo != m.trans.fetch.ID {
		log.Panicf("data ready %s does not answer the outstanding fetch",
			rsp.ID)
	}

	m.bottomPort.RetrieveIncoming()
	tracing.TraceReqFinalize(m.trans.fetch, m.Comp)

	m.installBlock(m.trans.fetch.Address, rsp.Data)

	// The fill must make the original request a hit.
	block, found := m.tags.Lookup(m.blockAligned(m.trans.req.GetAddress()))
	if !found {
		log.Panic("freshly filled block does not serve the request")
	}

	m.respondFromBlock(block)

	return true
}

func (m *middleware) handleWritebackRsp(rsp *mem.WriteDoneRsp) bool {
	writeBack, found := m.inflightWritebacks[rsp.RespondTo]
	if !found {
		log.Panicf("write done %s does not answer a writeback", rsp.ID)
	}

	delete(m.inflightWritebacks, rsp.RespondTo)
	m.bottomPort.RetrieveIncoming()
	tracing.TraceReqFinalize(writeBack, m.Comp)

	return true
}

// installBlock stores fetched block data, evicting one victim if the slots
// that may hold the address are all occupied. Every resident victim is
// written back before its slot is reused, as any installed block may have
// been modified.
func (m *middleware) installBlock(addr uint64, data []byte) {
	if len(data) != m.blockSize {
		log.Panicf("fill data must be exactly %d bytes, got %d",
			m.blockSize, len(data))
	}

	if addr%uint64(m.blockSize) != 0 {
		log.Panicf("fill address %#x is not block aligned", addr)
	}

	if _, resident := m.tags.Lookup(addr); resident {
		log.Panicf("block %#x is already resident", addr)
	}

	victim := m.victimFinder.FindVictim(m.tags, addr)
	if victim.IsValid {
		m.writeBackBlock(victim)
	}

	err := m.storage.Write(victim.CacheAddress, data)
	if err != nil {
		log.Panic(err)
	}

	newBlock := tagging.Block{
		Tag:          addr,
		SetID:        victim.SetID,
		WayID:        victim.WayID,
		CacheAddress: victim.CacheAddress,
		IsValid:      true,
	}
	m.tags.Update(newBlock)
	m.tags.Visit(newBlock)
}

func (m *middleware) writeBackBlock(victim tagging.Block) {
	data, err := m.storage.Read(victim.CacheAddress, uint64(m.blockSize))
	if err != nil {
		log.Panic(err)
	}

	writeBack := mem.WriteReqBuilder{}.
		WithSrc(m.bottomPort.AsRemote()).
		WithDst(m.addressToPortMapper.Find(victim.Tag)).
		WithAddress(victim.Tag).
		WithData(data).
		Build()

	m.sendToBottom(writeBack)
	m.inflightWritebacks[writeBack.ID] = writeBack

	tracing.TraceReqInitiate(writeBack, m.Comp,
		tracing.MsgIDAtReceiver(m.trans.req, m.Comp))
}
