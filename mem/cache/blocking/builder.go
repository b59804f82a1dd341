package blocking

import (
	"fmt"
	"log"

	"github.com/hachisim/hachi/mem"
	"github.com/hachisim/hachi/mem/cache/internal/tagging"
	"github.com/hachisim/hachi/sim"
)

// A Builder configures and builds blocking caches.
type Builder struct {
	engine              sim.Engine
	freq                sim.Freq
	capacity            uint64
	blockSize           int
	latency             int
	setSize             int
	policy              string
	seed                int64
	numChannels         int
	addressToPortMapper mem.AddressToPortMapper
	lowModule           mem.LowModule
}

// MakeBuilder returns a Builder with default parameters: a 4 KB
// direct-mapped cache with 64-byte blocks and one upstream channel.
func MakeBuilder() Builder {
	return Builder{
		freq:        1 * sim.GHz,
		capacity:    4 * mem.KB,
		blockSize:   64,
		latency:     1,
		setSize:     1,
		policy:      "lru",
		numChannels: 1,
	}
}

// WithEngine sets the event engine that drives the cache.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the clock frequency of the cache.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithCapacity sets the number of bytes the cache can hold.
func (b Builder) WithCapacity(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithBlockSize sets the number of bytes in each cache block.
func (b Builder) WithBlockSize(blockSize int) Builder {
	b.blockSize = blockSize
	return b
}

// WithLatency sets the number of cycles between admitting a request and
// looking its address up.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// WithSetSize sets the number of blocks per set. A set size of 1 builds a
// direct-mapped cache; capacity/blockSize builds a fully-associative one.
func (b Builder) WithSetSize(setSize int) Builder {
	b.setSize = setSize
	return b
}

// WithEvictionPolicy selects how victims are picked within a full set:
// "lru", "random", or "priority".
func (b Builder) WithEvictionPolicy(policy string) Builder {
	b.policy = policy
	return b
}

// WithSeed sets the seed of the random eviction policy.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithNumChannels sets the number of top ports requests can arrive on.
func (b Builder) WithNumChannels(numChannels int) Builder {
	b.numChannels = numChannels
	return b
}

// WithAddressToPortMapper sets the mapper that tells which remote port
// serves the data at a certain address.
func (b Builder) WithAddressToPortMapper(
	mapper mem.AddressToPortMapper,
) Builder {
	b.addressToPortMapper = mapper
	return b
}

// WithLowModule sets the device that serves the cache's functional
// accesses and address-range queries.
func (b Builder) WithLowModule(lowModule mem.LowModule) Builder {
	b.lowModule = lowModule
	return b
}

// Build creates a blocking cache with the given name.
func (b Builder) Build(name string) *Comp {
	b.geometryMustBeValid()

	c := &Comp{
		blockSize:           b.blockSize,
		latency:             b.latency,
		addressToPortMapper: b.addressToPortMapper,
		lowModule:           b.lowModule,
		inflightWritebacks:  make(map[string]*mem.WriteReq),
	}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	numSets := int(b.capacity) / b.blockSize / b.setSize
	c.tags = tagging.NewTagArray(numSets, b.setSize, b.blockSize)
	c.victimFinder = b.victimFinder()
	c.storage = mem.NewStorage(b.capacity)

	for i := 0; i < b.numChannels; i++ {
		port := sim.NewPort(c, 1, 1,
			sim.BuildNameWithIndex(name, "TopPort", i))
		c.topPorts = append(c.topPorts, port)
		c.AddPort(fmt.Sprintf("Top[%d]", i), port)
	}

	c.bottomPort = sim.NewPort(c, 1, 1, name+".BottomPort")
	c.AddPort("Bottom", c.bottomPort)

	c.bottomSender = sim.NewBufferedSender(
		c.bottomPort, sim.NewBuffer(name+".BottomSendBuf", 2))

	c.AddMiddleware(&middleware{Comp: c})

	return c
}

func (b Builder) geometryMustBeValid() {
	if b.capacity == 0 || b.blockSize <= 0 {
		log.Panic("cache capacity and block size must be positive")
	}

	if b.setSize <= 0 {
		log.Panic("set size must be positive")
	}

	if b.capacity%uint64(b.blockSize*b.setSize) != 0 {
		log.Panicf(
			"capacity %d is not divisible into sets of %d blocks of %d bytes",
			b.capacity, b.setSize, b.blockSize)
	}

	if b.numChannels <= 0 {
		log.Panic("cache must have at least one channel")
	}
}

func (b Builder) victimFinder() tagging.VictimFinder {
	switch b.policy {
	case "lru":
		return tagging.NewLRUVictimFinder()
	case "random":
		return tagging.NewRandomVictimFinder(b.seed)
	case "priority":
		return tagging.NewPriorityVictimFinder()
	default:
		log.Panicf("unknown eviction policy %q", b.policy)
	}

	return nil
}
