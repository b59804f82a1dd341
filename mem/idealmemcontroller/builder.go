package idealmemcontroller

import (
	"github.com/hachisim/hachi/mem"
	"github.com/hachisim/hachi/sim"
)

// Builder can build ideal memory controllers.
type Builder struct {
	engine     sim.Engine
	freq       sim.Freq
	latency    int
	width      int
	capacity   uint64
	topBufSize int
	storage    *mem.Storage
	addrRange  mem.AddrRange
}

// MakeBuilder returns a new Builder with default configurations.
func MakeBuilder() Builder {
	return Builder{
		freq:       1 * sim.GHz,
		latency:    100,
		width:      1,
		capacity:   4 * mem.GB,
		topBufSize: 16,
	}
}

// WithEngine sets the event-driven simulation engine to use.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the memory controller.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithLatency sets the number of cycles the controller takes to respond.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// WithWidth sets the number of requests the controller accepts per cycle.
func (b Builder) WithWidth(width int) Builder {
	b.width = width
	return b
}

// WithNewStorage lets the controller create its own storage with the given
// capacity.
func (b Builder) WithNewStorage(capacity uint64) Builder {
	b.capacity = capacity
	b.storage = nil
	return b
}

// WithStorage sets the storage that the controller serves.
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// WithTopBufSize sets the size of the top port incoming buffer.
func (b Builder) WithTopBufSize(topBufSize int) Builder {
	b.topBufSize = topBufSize
	return b
}

// WithAddressRange sets the address range that the controller serves.
// Addresses are translated to storage offsets by subtracting the low bound.
func (b Builder) WithAddressRange(addrRange mem.AddrRange) Builder {
	b.addrRange = addrRange
	return b
}

// Build creates an ideal memory controller with the given name.
func (b Builder) Build(name string) *Comp {
	c := &Comp{
		Latency: b.latency,
		width:   b.width,
		state:   "enable",
	}

	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	if b.storage == nil {
		c.Storage = mem.NewStorage(b.capacity)
	} else {
		c.Storage = b.storage
	}

	c.addrRange = b.addrRange
	if c.addrRange.High == 0 {
		c.addrRange = mem.AddrRange{Low: 0, High: c.Storage.Capacity}
	}

	c.topPort = sim.NewPort(c, b.topBufSize, b.topBufSize, name+".TopPort")
	c.AddPort("Top", c.topPort)

	c.ctrlPort = sim.NewPort(c, 1, 1, name+".CtrlPort")
	c.AddPort("Ctrl", c.ctrlPort)

	c.AddMiddleware(&ctrlMiddleware{Comp: c})
	c.AddMiddleware(&memMiddleware{Comp: c})

	return c
}
