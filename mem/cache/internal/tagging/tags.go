// Package tagging tracks which blocks are resident in a cache.
package tagging

// A Block of a cache is the information that is associated with a cache line.
type Block struct {
	Tag          uint64
	WayID        int
	SetID        int
	CacheAddress uint64
	IsValid      bool
	ReadCount    int
}

// A Set is a list of blocks where a certain piece of memory can be stored.
type Set struct {
	Blocks   []Block
	LRUQueue []int
}

// A TagArray keeps the metadata of the blocks in a cache.
type TagArray interface {
	Lookup(reqAddr uint64) (Block, bool)
	Update(block Block)
	Visit(block Block)
	GetSet(reqAddr uint64) (set *Set, setID int)
	Reset()
}

// NewTagArray creates a TagArray with all blocks invalid.
func NewTagArray(
	numSets int,
	numWays int,
	blockSize int,
) TagArray {
	t := &tagArrayImpl{
		NumSets:   numSets,
		NumWays:   numWays,
		BlockSize: blockSize,
		Sets:      []Set{},
	}

	t.Reset()

	return t
}

type tagArrayImpl struct {
	NumSets   int
	NumWays   int
	BlockSize int
	Sets      []Set
}

// TotalSize returns the maximum number of bytes that can be stored in the
// cache.
func (t *tagArrayImpl) TotalSize() uint64 {
	return uint64(t.NumSets) * uint64(t.NumWays) * uint64(t.BlockSize)
}

// GetSet returns the set that a certain address must be stored at.
func (t *tagArrayImpl) GetSet(reqAddr uint64) (set *Set, setID int) {
	setID = int(reqAddr / uint64(t.BlockSize) % uint64(t.NumSets))
	set = &t.Sets[setID]

	return
}

// Lookup finds the block that holds the given address. The address must be
// block aligned.
func (t *tagArrayImpl) Lookup(reqAddr uint64) (Block, bool) {
	set, _ := t.GetSet(reqAddr)
	for _, block := range set.Blocks {
		if block.IsValid && block.Tag == reqAddr {
			return block, true
		}
	}

	return Block{}, false
}

// Update overwrites the metadata of the block at the slot the given block
// names.
func (t *tagArrayImpl) Update(block Block) {
	t.Sets[block.SetID].Blocks[block.WayID] = block
}

// Visit moves the block to the most recently used end of the LRU queue.
func (t *tagArrayImpl) Visit(block Block) {
	set := &t.Sets[block.SetID]
	newLRUQueue := make([]int, 0, len(set.LRUQueue))

	for _, wayID := range set.LRUQueue {
		if wayID != block.WayID {
			newLRUQueue = append(newLRUQueue, wayID)
		}
	}

	newLRUQueue = append(newLRUQueue, block.WayID)

	set.LRUQueue = newLRUQueue
}

// Reset marks all the blocks in the tag array invalid. Each slot keeps a
// fixed cache-internal storage address.
func (t *tagArrayImpl) Reset() {
	t.Sets = make([]Set, t.NumSets)
	for i := 0; i < t.NumSets; i++ {
		for j := 0; j < t.NumWays; j++ {
			block := Block{
				IsValid: false,
				SetID:   i,
				WayID:   j,
				CacheAddress: uint64(i)*uint64(t.NumWays*t.BlockSize) +
					uint64(j)*uint64(t.BlockSize),
			}

			t.Sets[i].Blocks = append(t.Sets[i].Blocks, block)
			t.Sets[i].LRUQueue = append(t.Sets[i].LRUQueue, j)
		}
	}
}
