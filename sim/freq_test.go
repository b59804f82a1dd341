package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Freq", func() {
	It("should get period", func() {
		f := 1 * GHz
		Expect(f.Period()).To(BeNumerically("==", 1e-9))
	})

	It("should panic on zero frequency", func() {
		f := 0 * Hz
		Expect(func() { f.Period() }).To(Panic())
	})

	It("should get this tick", func() {
		f := 1 * Hz
		Expect(f.ThisTick(1)).To(BeNumerically("~", 1, 1e-12))
	})

	It("should get the next tick", func() {
		f := 1 * GHz
		Expect(f.NextTick(102.000000001)).
			To(BeNumerically("~", 102.000000002, 1e-12))
	})

	It("should get the next tick near zero", func() {
		f := 1 * GHz
		Expect(f.NextTick(0.000000031)).
			To(BeNumerically("~", 0.000000032, 1e-12))
	})

	It("should get the next tick at a large whole number", func() {
		f := 1 * GHz
		Expect(f.NextTick(16)).To(BeNumerically("~", 16.000000001, 1e-12))
	})

	It("should get the next tick, if now is not on a tick", func() {
		f := 1 * GHz
		Expect(f.NextTick(102.0000000011)).
			To(BeNumerically("~", 102.000000002, 1e-12))
	})

	It("should get n cycles later", func() {
		f := 1 * GHz
		Expect(f.NCyclesLater(12, 102.000000001)).
			To(BeNumerically("~", 102.000000013, 1e-12))
	})

	It("should get n cycles later, if now is not on a tick", func() {
		f := 1 * GHz
		Expect(f.NCyclesLater(12, 102.0000000011)).
			To(BeNumerically("~", 102.000000014, 1e-12))
	})

	It("should get the no-earlier-than time, on tick", func() {
		f := 1 * GHz
		Expect(f.NoEarlierThan(102.00)).To(BeNumerically("~", 102.00, 1e-12))
	})

	It("should get the no-earlier-than time, off tick", func() {
		f := 1 * GHz
		Expect(f.NoEarlierThan(102.0000000011)).
			To(BeNumerically("~", 102.000000002, 1e-12))
	})

	It("should count cycles", func() {
		f := 1 * GHz
		Expect(f.Cycle(0.000000013)).To(Equal(uint64(13)))
	})
})
