package tagging

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("TagArray", func() {
	var (
		tags *tagArrayImpl
	)

	BeforeEach(func() {
		tags = &tagArrayImpl{
			NumSets:   1024,
			NumWays:   4,
			BlockSize: 64,
			Sets:      []Set{},
		}
		tags.Reset()
	})

	It("should be able to get total size", func() {
		Expect(tags.TotalSize()).To(Equal(uint64(262144)))
	})

	It("should assign each slot a fixed cache address", func() {
		set, _ := tags.GetSet(0x40)

		Expect(set.Blocks[0].CacheAddress).To(Equal(uint64(0x100)))
		Expect(set.Blocks[1].CacheAddress).To(Equal(uint64(0x140)))
		Expect(set.Blocks[2].CacheAddress).To(Equal(uint64(0x180)))
		Expect(set.Blocks[3].CacheAddress).To(Equal(uint64(0x1C0)))
	})

	It("should lookup", func() {
		block := Block{
			Tag:     0x100,
			IsValid: true,
		}
		set, _ := tags.GetSet(0x100)
		set.Blocks[0] = block

		found, ok := tags.Lookup(0x100)
		Expect(ok).To(BeTrue())
		Expect(found).To(Equal(block))
	})

	It("should fail to lookup a block that was never inserted", func() {
		block, ok := tags.Lookup(0x100)
		Expect(ok).To(BeFalse())
		Expect(block).To(BeZero())
	})

	It("should fail to lookup an invalid block", func() {
		block := Block{
			Tag:     0x100,
			IsValid: false,
		}
		set, _ := tags.GetSet(0x100)
		set.Blocks[0] = block

		found, ok := tags.Lookup(0x100)
		Expect(ok).To(BeFalse())
		Expect(found).To(BeZero())
	})

	It("should map addresses of the same set index to the same set", func() {
		_, setID1 := tags.GetSet(0x100)
		_, setID2 := tags.GetSet(0x100 + 1024*64)

		Expect(setID1).To(Equal(setID2))
	})

	It("should update LRU queue when visiting a block", func() {
		set, _ := tags.GetSet(0x100)

		tags.Visit(set.Blocks[1])

		Expect(set.LRUQueue).To(Equal([]int{0, 2, 3, 1}))
	})
})
