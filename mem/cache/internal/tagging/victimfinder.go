package tagging

import "math/rand"

// A VictimFinder decides which block should be evicted to make room for a
// new block. Empty slots are always used up before any resident block is
// evicted, so a victim can always be found.
type VictimFinder interface {
	FindVictim(tags TagArray, address uint64) Block
}

// LRUVictimFinder evicts the least recently used block.
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed LRU victim finder.
func NewLRUVictimFinder() *LRUVictimFinder {
	return &LRUVictimFinder{}
}

// FindVictim returns the least recently used block in the set that serves
// the address.
func (e *LRUVictimFinder) FindVictim(tags TagArray, address uint64) Block {
	set, _ := tags.GetSet(address)

	// First try evicting an empty block
	for _, wayID := range set.LRUQueue {
		block := set.Blocks[wayID]

		if !block.IsValid {
			return block
		}
	}

	return set.Blocks[set.LRUQueue[0]]
}

// RandomVictimFinder evicts a uniformly selected resident block. It owns its
// own randomness source so that a fixed seed reproduces the same victim
// sequence.
type RandomVictimFinder struct {
	rand *rand.Rand
}

// NewRandomVictimFinder returns a victim finder that picks victims using a
// generator seeded with the given seed.
func NewRandomVictimFinder(seed int64) *RandomVictimFinder {
	return &RandomVictimFinder{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// FindVictim returns an empty block if the set has one, and a uniformly
// selected resident block otherwise.
func (e *RandomVictimFinder) FindVictim(
	tags TagArray,
	address uint64,
) Block {
	set, _ := tags.GetSet(address)

	for _, wayID := range set.LRUQueue {
		block := set.Blocks[wayID]

		if !block.IsValid {
			return block
		}
	}

	return set.Blocks[e.rand.Intn(len(set.Blocks))]
}

// PriorityVictimFinder evicts the block that has served the fewest reads,
// breaking ties in favor of the least recently used block.
type PriorityVictimFinder struct {
}

// NewPriorityVictimFinder returns a newly constructed priority victim
// finder.
func NewPriorityVictimFinder() *PriorityVictimFinder {
	return &PriorityVictimFinder{}
}

// FindVictim returns an empty block if the set has one, and the block with
// the lowest read count otherwise.
func (e *PriorityVictimFinder) FindVictim(
	tags TagArray,
	address uint64,
) Block {
	set, _ := tags.GetSet(address)

	for _, wayID := range set.LRUQueue {
		block := set.Blocks[wayID]

		if !block.IsValid {
			return block
		}
	}

	victim := set.Blocks[set.LRUQueue[0]]
	for _, wayID := range set.LRUQueue {
		block := set.Blocks[wayID]
		if block.ReadCount < victim.ReadCount {
			victim = block
		}
	}

	return victim
}
