// Package blocking provides a cache model that serves one request at a
// time. A missing block is fetched from the memory below before the cache
// accepts any further request.
package blocking

import (
	"log"
	"reflect"

	"github.com/hachisim/hachi/mem"
	"github.com/hachisim/hachi/mem/cache/internal/tagging"
	"github.com/hachisim/hachi/sim"
)

type cacheState int

const (
	// stateIdle accepts the next request from a top port.
	stateIdle cacheState = iota

	// stateAwaitLatency holds an admitted request until the access latency
	// has elapsed and the tag lookup can run.
	stateAwaitLatency

	// stateAwaitBottom waits for the memory below to return the fetched
	// block.
	stateAwaitBottom

	// stateRespond holds a finished response until the top port accepts it.
	stateRespond
)

// A transaction is the single request the cache is serving, together with
// everything needed to answer it.
type transaction struct {
	req       mem.AccessReq
	channelID int
	fetch     *mem.ReadReq
	rsp       mem.AccessRsp
}

type lookupEvent struct {
	*sim.EventBase
}

func newLookupEvent(time sim.VTimeInSec, handler sim.Handler) *lookupEvent {
	return &lookupEvent{sim.NewEventBase(time, handler)}
}

// Comp is a blocking cache. It admits one request at a time from its top
// ports, looks the address up after a fixed latency, and misses are filled
// from the memory below before the response goes back up. Every evicted
// block is written back to the memory below.
type Comp struct {
	*sim.TickingComponent
	sim.MiddlewareHolder

	topPorts   []sim.Port
	bottomPort sim.Port

	bottomSender sim.BufferedSender

	tags         tagging.TagArray
	victimFinder tagging.VictimFinder
	storage      *mem.Storage

	blockSize int
	latency   int

	addressToPortMapper mem.AddressToPortMapper
	lowModule           mem.LowModule
	rangeListeners      []mem.AddressRangeListener

	state              cacheState
	trans              *transaction
	inflightWritebacks map[string]*mem.WriteReq
}

// Tick updates the component state.
func (c *Comp) Tick() bool {
	return c.MiddlewareHolder.Tick()
}

// SetAddressToPortMapper sets the mapper that tells which remote port
// serves the data at a certain address.
func (c *Comp) SetAddressToPortMapper(mapper mem.AddressToPortMapper) {
	c.addressToPortMapper = mapper
}

// SetLowModule sets the device that serves the cache's functional accesses
// and address-range queries.
func (c *Comp) SetLowModule(lowModule mem.LowModule) {
	c.lowModule = lowModule
}

// RegisterAddressRangeListener adds a listener that is notified when the
// address ranges served through this cache change.
func (c *Comp) RegisterAddressRangeListener(l mem.AddressRangeListener) {
	c.rangeListeners = append(c.rangeListeners, l)
}

// AddressRanges returns the ranges served by the memory below the cache.
func (c *Comp) AddressRanges() []mem.AddrRange {
	if c.lowModule == nil {
		return nil
	}

	return c.lowModule.AddressRanges()
}

// NotifyAddressRangesChanged passes a range change from the memory below on
// to every registered listener above the cache.
func (c *Comp) NotifyAddressRangesChanged(_ mem.LowModule) {
	for _, l := range c.rangeListeners {
		l.NotifyAddressRangesChanged(c)
	}
}

// AccessFunctional serves an access immediately, without modeling timing.
// A hit is served from cache storage. A miss is passed to the memory below
// unchanged and leaves the cache state untouched.
func (c *Comp) AccessFunctional(req mem.AccessReq) mem.AccessRsp {
	c.reqMustNotSpanBlocks(req)

	block, found := c.tags.Lookup(c.blockAligned(req.GetAddress()))
	if !found {
		return c.lowModule.AccessFunctional(req)
	}

	switch req := req.(type) {
	case *mem.ReadReq:
		return c.readFromBlock(block, req, req.Dst)
	case *mem.WriteReq:
		return c.writeToBlock(block, req, req.Dst)
	default:
		log.Panicf("cannot handle request of type %s", reflect.TypeOf(req))
	}

	return nil
}

func (c *Comp) blockAligned(addr uint64) uint64 {
	return addr / uint64(c.blockSize) * uint64(c.blockSize)
}

func (c *Comp) reqMustNotSpanBlocks(req mem.AccessReq) {
	addr := req.GetAddress()
	size := req.GetByteSize()

	if addr/uint64(c.blockSize) != (addr+size-1)/uint64(c.blockSize) {
		log.Panicf("request [%#x, %#x) spans multiple cache lines",
			addr, addr+size)
	}
}

// readFromBlock copies the requested bytes out of the block's storage and
// packages them as the response.
func (c *Comp) readFromBlock(
	block tagging.Block,
	read *mem.ReadReq,
	src sim.RemotePort,
) *mem.DataReadyRsp {
	offset := read.Address - c.blockAligned(read.Address)

	data, err := c.storage.Read(block.CacheAddress+offset, read.AccessByteSize)
	if err != nil {
		log.Panic(err)
	}

	return mem.DataReadyRspBuilder{}.
		WithSrc(src).
		WithDst(read.Src).
		WithRspTo(read.ID).
		WithData(data).
		Build()
}

// writeToBlock merges the written bytes into the block's storage and
// packages the acknowledgment.
func (c *Comp) writeToBlock(
	block tagging.Block,
	write *mem.WriteReq,
	src sim.RemotePort,
) *mem.WriteDoneRsp {
	offset := write.Address - c.blockAligned(write.Address)

	data, err := c.storage.Read(block.CacheAddress, uint64(c.blockSize))
	if err != nil {
		log.Panic(err)
	}

	for i := 0; i < len(write.Data); i++ {
		if write.DirtyMask == nil || write.DirtyMask[i] {
			data[offset+uint64(i)] = write.Data[i]
		}
	}

	err = c.storage.Write(block.CacheAddress, data)
	if err != nil {
		log.Panic(err)
	}

	return mem.WriteDoneRspBuilder{}.
		WithSrc(src).
		WithDst(write.Src).
		WithRspTo(write.ID).
		Build()
}
