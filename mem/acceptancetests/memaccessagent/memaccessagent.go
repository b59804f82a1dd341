// Package memaccessagent provides a traffic generator for memory system
// acceptance tests.
package memaccessagent

import (
	"encoding/binary"
	"log"
	"math/rand"
	"reflect"

	"github.com/hachisim/hachi/mem"
	"github.com/hachisim/hachi/sim"
)

// A MemAccessAgent floods a memory component with random reads and writes,
// checking every read result against the last write to the same address. It
// never issues an access to an address that already has one in flight, so
// the last write to an address is always visible when a read is issued.
type MemAccessAgent struct {
	*sim.TickingComponent

	memPort sim.Port

	lowModule  sim.RemotePort
	maxAddress uint64
	rand       *rand.Rand

	ReadLeft  int
	WriteLeft int

	writtenValues map[uint64]uint32
	writtenAddrs  []uint64
	pendingReads  map[string]*mem.ReadReq
	pendingWrites map[string]*mem.WriteReq
}

// Tick retires one response and issues at most one new access.
func (a *MemAccessAgent) Tick() bool {
	madeProgress := a.processRsp()

	if a.ReadLeft == 0 && a.WriteLeft == 0 {
		return madeProgress
	}

	if a.shouldRead() {
		madeProgress = a.issueRead() || madeProgress
	} else {
		madeProgress = a.issueWrite() || madeProgress
	}

	return madeProgress
}

// Done reports whether every access has been issued and answered.
func (a *MemAccessAgent) Done() bool {
	return a.ReadLeft == 0 && a.WriteLeft == 0 &&
		len(a.pendingReads) == 0 && len(a.pendingWrites) == 0
}

// PendingCount returns the number of requests that are in flight.
func (a *MemAccessAgent) PendingCount() int {
	return len(a.pendingReads) + len(a.pendingWrites)
}

// KnownValues returns the last value written to every address the agent has
// touched.
func (a *MemAccessAgent) KnownValues() map[uint64]uint32 {
	return a.writtenValues
}

func (a *MemAccessAgent) processRsp() bool {
	msg := a.memPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	switch rsp := msg.(type) {
	case *mem.WriteDoneRsp:
		if _, found := a.pendingWrites[rsp.RespondTo]; !found {
			log.Panicf("write done %s does not answer a pending write",
				rsp.ID)
		}

		delete(a.pendingWrites, rsp.RespondTo)
	case *mem.DataReadyRsp:
		read, found := a.pendingReads[rsp.RespondTo]
		if !found {
			log.Panicf("data ready %s does not answer a pending read",
				rsp.ID)
		}

		delete(a.pendingReads, rsp.RespondTo)
		a.checkReadResult(read, rsp)
	default:
		log.Panicf("cannot process message of type %s", reflect.TypeOf(msg))
	}

	return true
}

func (a *MemAccessAgent) checkReadResult(
	read *mem.ReadReq,
	rsp *mem.DataReadyRsp,
) {
	want := a.writtenValues[read.Address]
	got := binary.LittleEndian.Uint32(rsp.Data)

	if got != want {
		log.Panicf("read 0x%x returned 0x%08x, the last write was 0x%08x",
			read.Address, got, want)
	}
}

func (a *MemAccessAgent) shouldRead() bool {
	if len(a.writtenAddrs) == 0 {
		return false
	}

	if a.ReadLeft == 0 {
		return false
	}

	if a.WriteLeft == 0 {
		return true
	}

	return a.rand.Float64() > 0.5
}

func (a *MemAccessAgent) issueRead() bool {
	address := a.writtenAddrs[a.rand.Intn(len(a.writtenAddrs))]
	if a.addressHasPendingAccess(address) {
		return false
	}

	read := mem.ReadReqBuilder{}.
		WithSrc(a.memPort.AsRemote()).
		WithDst(a.lowModule).
		WithAddress(address).
		WithByteSize(4).
		Build()

	if a.memPort.Send(read) != nil {
		return false
	}

	a.pendingReads[read.ID] = read
	a.ReadLeft--

	return true
}

func (a *MemAccessAgent) issueWrite() bool {
	address := a.rand.Uint64() % (a.maxAddress / 4) * 4
	if a.addressHasPendingAccess(address) {
		return false
	}

	data := a.rand.Uint32()
	write := mem.WriteReqBuilder{}.
		WithSrc(a.memPort.AsRemote()).
		WithDst(a.lowModule).
		WithAddress(address).
		WithData(uint32ToBytes(data)).
		Build()

	if a.memPort.Send(write) != nil {
		return false
	}

	if _, written := a.writtenValues[address]; !written {
		a.writtenAddrs = append(a.writtenAddrs, address)
	}
	a.writtenValues[address] = data
	a.pendingWrites[write.ID] = write
	a.WriteLeft--

	return true
}

func (a *MemAccessAgent) addressHasPendingAccess(addr uint64) bool {
	for _, read := range a.pendingReads {
		if read.Address == addr {
			return true
		}
	}

	for _, write := range a.pendingWrites {
		if write.Address == addr {
			return true
		}
	}

	return false
}

func uint32ToBytes(data uint32) []byte {
	bytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(bytes, data)

	return bytes
}
