// Package idealmemcontroller provides an ideal memory controller that
// responds to every request after a fixed number of cycles.
package idealmemcontroller

import (
	"log"

	"github.com/hachisim/hachi/mem"
	"github.com/hachisim/hachi/sim"
)

type readRespondEvent struct {
	*sim.EventBase
	req *mem.ReadReq
}

func newReadRespondEvent(time sim.VTimeInSec, handler sim.Handler,
	req *mem.ReadReq,
) *readRespondEvent {
	return &readRespondEvent{sim.NewEventBase(time, handler), req}
}

type writeRespondEvent struct {
	*sim.EventBase
	req *mem.WriteReq
}

func newWriteRespondEvent(time sim.VTimeInSec, handler sim.Handler,
	req *mem.WriteReq,
) *writeRespondEvent {
	return &writeRespondEvent{sim.NewEventBase(time, handler), req}
}

// Comp is an ideal memory controller. It always responds to a request in a
// fixed number of cycles. There is no limitation on the concurrency of this
// unit.
type Comp struct {
	*sim.TickingComponent
	sim.MiddlewareHolder

	topPort  sim.Port
	ctrlPort sim.Port

	Storage   *mem.Storage
	Latency   int
	addrRange mem.AddrRange

	width          int
	state          string
	inflightBuffer []sim.Msg
	drainReq       *mem.ControlMsg
}

// Tick updates the component state.
func (c *Comp) Tick() bool {
	return c.MiddlewareHolder.Tick()
}

// AddressRanges returns the address range that the controller serves.
func (c *Comp) AddressRanges() []mem.AddrRange {
	return []mem.AddrRange{c.addrRange}
}

// AccessFunctional performs the access immediately, without simulating
// latency.
func (c *Comp) AccessFunctional(req mem.AccessReq) mem.AccessRsp {
	switch req := req.(type) {
	case *mem.ReadReq:
		return c.readFunctional(req)
	case *mem.WriteReq:
		return c.writeFunctional(req)
	default:
		log.Panicf("cannot handle request of type %T", req)
	}

	return nil
}

func (c *Comp) readFunctional(req *mem.ReadReq) *mem.DataReadyRsp {
	data, err := c.Storage.Read(
		c.storageAddr(req.Address), req.AccessByteSize)
	if err != nil {
		log.Panic(err)
	}

	return mem.DataReadyRspBuilder{}.
		WithSrc(c.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID).
		WithData(data).
		Build()
}

func (c *Comp) writeFunctional(req *mem.WriteReq) *mem.WriteDoneRsp {
	c.writeStorage(req)

	return mem.WriteDoneRspBuilder{}.
		WithSrc(c.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID).
		Build()
}

// writeStorage commits a write request to the storage, merging the data
// with the existing content if a dirty mask is given.
func (c *Comp) writeStorage(req *mem.WriteReq) {
	addr := c.storageAddr(req.Address)

	if req.DirtyMask == nil {
		err := c.Storage.Write(addr, req.Data)
		if err != nil {
			log.Panic(err)
		}

		return
	}

	data, err := c.Storage.Read(addr, uint64(len(req.Data)))
	if err != nil {
		log.Panic(err)
	}

	for i := 0; i < len(req.Data); i++ {
		if req.DirtyMask[i] {
			data[i] = req.Data[i]
		}
	}

	err = c.Storage.Write(addr, data)
	if err != nil {
		log.Panic(err)
	}
}

func (c *Comp) storageAddr(addr uint64) uint64 {
	if !c.addrRange.Contains(addr) {
		log.Panicf("address 0x%x out of range [0x%x, 0x%x)",
			addr, c.addrRange.Low, c.addrRange.High)
	}

	return addr - c.addrRange.Low
}
