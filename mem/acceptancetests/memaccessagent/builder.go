package memaccessagent

import (
	"log"
	"math/rand"

	"github.com/hachisim/hachi/mem"
	"github.com/hachisim/hachi/sim"
)

// A Builder can build MemAccessAgents.
type Builder struct {
	engine     sim.Engine
	freq       sim.Freq
	maxAddress uint64
	numReads   int
	numWrites  int
	seed       int64
	lowModule  sim.RemotePort
}

// MakeBuilder returns a Builder that generates a thousand reads and a
// thousand writes over the first megabyte at 1 GHz.
func MakeBuilder() Builder {
	return Builder{
		freq:       1 * sim.GHz,
		maxAddress: 1 * mem.MB,
		numReads:   1000,
		numWrites:  1000,
	}
}

// WithEngine sets the event-driven simulation engine to use.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency the agent issues accesses at.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithMaxAddress sets the upper bound of the generated addresses.
func (b Builder) WithMaxAddress(maxAddress uint64) Builder {
	b.maxAddress = maxAddress
	return b
}

// WithNumReads sets the number of reads to generate.
func (b Builder) WithNumReads(numReads int) Builder {
	b.numReads = numReads
	return b
}

// WithNumWrites sets the number of writes to generate.
func (b Builder) WithNumWrites(numWrites int) Builder {
	b.numWrites = numWrites
	return b
}

// WithSeed sets the seed of the address and data generator, so that a run
// can be reproduced.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithLowModule sets the port that the generated accesses target.
func (b Builder) WithLowModule(lowModule sim.RemotePort) Builder {
	b.lowModule = lowModule
	return b
}

// Build creates a MemAccessAgent with the given name.
func (b Builder) Build(name string) *MemAccessAgent {
	if b.maxAddress < 4 {
		log.Panic("max address must cover at least one word")
	}

	a := &MemAccessAgent{
		lowModule:     b.lowModule,
		maxAddress:    b.maxAddress,
		rand:          rand.New(rand.NewSource(b.seed)),
		ReadLeft:      b.numReads,
		WriteLeft:     b.numWrites,
		writtenValues: make(map[uint64]uint32),
		pendingReads:  make(map[string]*mem.ReadReq),
		pendingWrites: make(map[string]*mem.WriteReq),
	}
	a.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, a)

	a.memPort = sim.NewPort(a, 1, 1, name+".MemPort")
	a.AddPort("Mem", a.memPort)

	return a
}
