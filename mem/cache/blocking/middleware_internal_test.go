package blocking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/hachisim/hachi/mem"
	"github.com/hachisim/hachi/sim"
)

func cacheLineData(first byte) []byte {
	data := make([]byte, 64)
	for i := range data {
		data[i] = first + byte(i)
	}

	return data
}

var _ = Describe("Blocking Cache Middleware", func() {
	var (
		mockCtrl   *gomock.Controller
		engine     *MockEngine
		topPort    *MockPort
		bottomPort *MockPort
		cache      *Comp
		cacheMW    *middleware
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewMockEngine(mockCtrl)
		topPort = NewMockPort(mockCtrl)
		bottomPort = NewMockPort(mockCtrl)

		engine.EXPECT().
			CurrentTime().
			Return(sim.VTimeInSec(10)).
			AnyTimes()
		topPort.EXPECT().
			AsRemote().
			Return(sim.RemotePort("Cache.TopPort[0]")).
			AnyTimes()
		bottomPort.EXPECT().
			AsRemote().
			Return(sim.RemotePort("Cache.BottomPort")).
			AnyTimes()

		cache = MakeBuilder().
			WithEngine(engine).
			WithFreq(1 * sim.GHz).
			WithCapacity(256).
			WithBlockSize(64).
			WithLatency(8).
			WithAddressToPortMapper(
				&mem.SinglePortMapper{Port: "MemCtrl.TopPort"}).
			Build("Cache")
		cache.topPorts = []sim.Port{topPort}
		cache.bottomPort = bottomPort
		cache.bottomSender = sim.NewBufferedSender(
			bottomPort, sim.NewBuffer("Cache.BottomSendBuf", 2))

		cacheMW = &middleware{Comp: cache}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should do nothing when there is nothing to do", func() {
		bottomPort.EXPECT().PeekIncoming().Return(nil)
		topPort.EXPECT().PeekIncoming().Return(nil)

		madeProgress := cacheMW.Tick()

		Expect(madeProgress).To(BeFalse())
	})

	It("should admit a request and schedule the lookup", func() {
		read := mem.ReadReqBuilder{}.
			WithSrc("Agent.Port").
			WithDst(topPort.AsRemote()).
			WithAddress(0x44).
			WithByteSize(4).
			Build()

		bottomPort.EXPECT().PeekIncoming().Return(nil)
		topPort.EXPECT().PeekIncoming().Return(read)
		topPort.EXPECT().RetrieveIncoming().Return(read)
		engine.EXPECT().
			Schedule(gomock.AssignableToTypeOf(&lookupEvent{})).
			Do(func(e sim.Event) {
				Expect(e.Time()).To(BeNumerically("~", 10+8e-9, 1e-12))
			})

		madeProgress := cacheMW.Tick()

		Expect(madeProgress).To(BeTrue())
		Expect(cache.state).To(Equal(stateAwaitLatency))
		Expect(cache.trans.req).To(BeIdenticalTo(read))
		Expect(cache.trans.channelID).To(Equal(0))
	})

	It("should not poll the top ports while serving a request", func() {
		cache.state = stateAwaitBottom
		cache.trans = &transaction{}

		bottomPort.EXPECT().PeekIncoming().Return(nil)

		madeProgress := cacheMW.Tick()

		Expect(madeProgress).To(BeFalse())
	})

	It("should serve a read hit from the resident block", func() {
		cacheMW.installBlock(0x40, cacheLineData(0))

		read := mem.ReadReqBuilder{}.
			WithSrc("Agent.Port").
			WithDst(topPort.AsRemote()).
			WithAddress(0x44).
			WithByteSize(4).
			Build()
		cache.state = stateAwaitLatency
		cache.trans = &transaction{req: read, channelID: 0}

		engine.EXPECT().Schedule(gomock.AssignableToTypeOf(sim.TickEvent{}))

		cacheMW.Handle(newLookupEvent(10, cacheMW))

		Expect(cache.state).To(Equal(stateRespond))

		rsp := cache.trans.rsp.(*mem.DataReadyRsp)
		Expect(rsp.Data).To(Equal([]byte{4, 5, 6, 7}))
		Expect(rsp.RespondTo).To(Equal(read.ID))
		Expect(rsp.Dst).To(Equal(read.Src))

		block, found := cache.tags.Lookup(0x40)
		Expect(found).To(BeTrue())
		Expect(block.ReadCount).To(Equal(1))
	})

	It("should merge a write hit into the resident block", func() {
		cacheMW.installBlock(0x40, cacheLineData(0))

		write := mem.WriteReqBuilder{}.
			WithSrc("Agent.Port").
			WithDst(topPort.AsRemote()).
			WithAddress(0x44).
			WithData([]byte{9, 9, 9, 9}).
			Build()
		cache.state = stateAwaitLatency
		cache.trans = &transaction{req: write, channelID: 0}

		engine.EXPECT().Schedule(gomock.AssignableToTypeOf(sim.TickEvent{}))

		cacheMW.Handle(newLookupEvent(10, cacheMW))

		Expect(cache.state).To(Equal(stateRespond))

		rsp := cache.trans.rsp.(*mem.WriteDoneRsp)
		Expect(rsp.RespondTo).To(Equal(write.ID))

		block, _ := cache.tags.Lookup(0x40)
		data, err := cache.storage.Read(block.CacheAddress, 8)
		Expect(err).To(BeNil())
		Expect(data).To(Equal([]byte{0, 1, 2, 3, 9, 9, 9, 9}))
	})

	It("should fetch the whole block from below on a miss", func() {
		read := mem.ReadReqBuilder{}.
			WithSrc("Agent.Port").
			WithDst(topPort.AsRemote()).
			WithAddress(0x44).
			WithByteSize(4).
			Build()
		cache.state = stateAwaitLatency
		cache.trans = &transaction{req: read, channelID: 0}

		engine.EXPECT().Schedule(gomock.AssignableToTypeOf(sim.TickEvent{}))

		cacheMW.Handle(newLookupEvent(10, cacheMW))

		Expect(cache.state).To(Equal(stateAwaitBottom))

		fetch := cache.trans.fetch
		Expect(fetch.Address).To(Equal(uint64(0x40)))
		Expect(fetch.AccessByteSize).To(Equal(uint64(64)))
		Expect(fetch.Dst).To(Equal(sim.RemotePort("MemCtrl.TopPort")))
		Expect(cache.bottomSender.CanSend(2)).To(BeFalse())
	})

	It("should send the queued fetch through the bottom port", func() {
		fetch := mem.ReadReqBuilder{}.
			WithSrc(bottomPort.AsRemote()).
			WithDst("MemCtrl.TopPort").
			WithAddress(0x40).
			WithByteSize(64).
			Build()
		cache.state = stateAwaitBottom
		cache.trans = &transaction{fetch: fetch}
		cacheMW.sendToBottom(fetch)

		bottomPort.EXPECT().PeekIncoming().Return(nil)
		bottomPort.EXPECT().Send(fetch).Return(nil)

		madeProgress := cacheMW.Tick()

		Expect(madeProgress).To(BeTrue())
		Expect(cache.bottomSender.CanSend(2)).To(BeTrue())
	})

	It("should keep the fetch queued when the bottom connection is busy",
		func() {
			fetch := mem.ReadReqBuilder{}.
				WithSrc(bottomPort.AsRemote()).
				WithDst("MemCtrl.TopPort").
				WithAddress(0x40).
				WithByteSize(64).
				Build()
			cache.state = stateAwaitBottom
			cache.trans = &transaction{fetch: fetch}
			cacheMW.sendToBottom(fetch)

			bottomPort.EXPECT().PeekIncoming().Return(nil)
			bottomPort.EXPECT().Send(fetch).Return(&sim.SendError{})

			madeProgress := cacheMW.Tick()

			Expect(madeProgress).To(BeFalse())
			Expect(cache.bottomSender.CanSend(2)).To(BeFalse())
		})

	It("should install the fill and answer the original request", func() {
		read := mem.ReadReqBuilder{}.
			WithSrc("Agent.Port").
			WithDst(topPort.AsRemote()).
			WithAddress(0x44).
			WithByteSize(4).
			Build()
		fetch := mem.ReadReqBuilder{}.
			WithSrc(bottomPort.AsRemote()).
			WithDst("MemCtrl.TopPort").
			WithAddress(0x40).
			WithByteSize(64).
			Build()
		cache.state = stateAwaitBottom
		cache.trans = &transaction{req: read, channelID: 0, fetch: fetch}

		dataReady := mem.DataReadyRspBuilder{}.
			WithSrc("MemCtrl.TopPort").
			WithDst(bottomPort.AsRemote()).
			WithRspTo(fetch.ID).
			WithData(cacheLineData(0)).
			Build()

		bottomPort.EXPECT().PeekIncoming().Return(dataReady)
		bottomPort.EXPECT().RetrieveIncoming().Return(dataReady)

		madeProgress := cacheMW.Tick()

		Expect(madeProgress).To(BeTrue())
		Expect(cache.state).To(Equal(stateRespond))

		rsp := cache.trans.rsp.(*mem.DataReadyRsp)
		Expect(rsp.Data).To(Equal([]byte{4, 5, 6, 7}))
		Expect(rsp.RespondTo).To(Equal(read.ID))

		_, found := cache.tags.Lookup(0x40)
		Expect(found).To(BeTrue())
	})

	It("should write back the victim before reusing its slot", func() {
		cacheMW.installBlock(0x40, cacheLineData(0))

		read := mem.ReadReqBuilder{}.
			WithSrc("Agent.Port").
			WithDst(topPort.AsRemote()).
			WithAddress(0x144).
			WithByteSize(4).
			Build()
		fetch := mem.ReadReqBuilder{}.
			WithSrc(bottomPort.AsRemote()).
			WithDst("MemCtrl.TopPort").
			WithAddress(0x140).
			WithByteSize(64).
			Build()
		cache.state = stateAwaitBottom
		cache.trans = &transaction{req: read, channelID: 0, fetch: fetch}

		dataReady := mem.DataReadyRspBuilder{}.
			WithSrc("MemCtrl.TopPort").
			WithDst(bottomPort.AsRemote()).
			WithRspTo(fetch.ID).
			WithData(cacheLineData(100)).
			Build()

		var writeBack *mem.WriteReq
		bottomPort.EXPECT().PeekIncoming().Return(dataReady)
		bottomPort.EXPECT().RetrieveIncoming().Return(dataReady)
		bottomPort.EXPECT().
			Send(gomock.AssignableToTypeOf(&mem.WriteReq{})).
			Do(func(msg sim.Msg) { writeBack = msg.(*mem.WriteReq) }).
			Return(nil)

		madeProgress := cacheMW.Tick()

		Expect(madeProgress).To(BeTrue())

		Expect(writeBack.Address).To(Equal(uint64(0x40)))
		Expect(writeBack.Data).To(Equal(cacheLineData(0)))
		Expect(cache.inflightWritebacks).To(HaveKey(writeBack.ID))

		_, oldResident := cache.tags.Lookup(0x40)
		Expect(oldResident).To(BeFalse())
		_, newResident := cache.tags.Lookup(0x140)
		Expect(newResident).To(BeTrue())

		Expect(cache.state).To(Equal(stateRespond))
		rsp := cache.trans.rsp.(*mem.DataReadyRsp)
		Expect(rsp.Data).To(Equal([]byte{104, 105, 106, 107}))
	})

	It("should retire a finished writeback", func() {
		writeBack := mem.WriteReqBuilder{}.
			WithSrc(bottomPort.AsRemote()).
			WithDst("MemCtrl.TopPort").
			WithAddress(0x40).
			WithData(cacheLineData(0)).
			Build()
		cache.inflightWritebacks[writeBack.ID] = writeBack

		done := mem.WriteDoneRspBuilder{}.
			WithSrc("MemCtrl.TopPort").
			WithDst(bottomPort.AsRemote()).
			WithRspTo(writeBack.ID).
			Build()

		bottomPort.EXPECT().PeekIncoming().Return(done)
		bottomPort.EXPECT().RetrieveIncoming().Return(done)
		topPort.EXPECT().PeekIncoming().Return(nil)

		madeProgress := cacheMW.Tick()

		Expect(madeProgress).To(BeTrue())
		Expect(cache.inflightWritebacks).To(BeEmpty())
	})

	It("should deliver the response and admit the next request in the same cycle",
		func() {
			readA := mem.ReadReqBuilder{}.
				WithSrc("Agent.Port").
				WithDst(topPort.AsRemote()).
				WithAddress(0x44).
				WithByteSize(4).
				Build()
			rspA := mem.DataReadyRspBuilder{}.
				WithSrc(topPort.AsRemote()).
				WithDst(readA.Src).
				WithRspTo(readA.ID).
				WithData([]byte{4, 5, 6, 7}).
				Build()
			readB := mem.ReadReqBuilder{}.
				WithSrc("Agent.Port").
				WithDst(topPort.AsRemote()).
				WithAddress(0x84).
				WithByteSize(4).
				Build()
			cache.state = stateRespond
			cache.trans = &transaction{req: readA, channelID: 0, rsp: rspA}

			topPort.EXPECT().Send(rspA).Return(nil)
			bottomPort.EXPECT().PeekIncoming().Return(nil)
			topPort.EXPECT().PeekIncoming().Return(readB)
			topPort.EXPECT().RetrieveIncoming().Return(readB)
			engine.EXPECT().
				Schedule(gomock.AssignableToTypeOf(&lookupEvent{}))

			madeProgress := cacheMW.Tick()

			Expect(madeProgress).To(BeTrue())
			Expect(cache.state).To(Equal(stateAwaitLatency))
			Expect(cache.trans.req).To(BeIdenticalTo(readB))
		})

	It("should stay blocked until the top port takes the response", func() {
		read := mem.ReadReqBuilder{}.
			WithSrc("Agent.Port").
			WithDst(topPort.AsRemote()).
			WithAddress(0x44).
			WithByteSize(4).
			Build()
		rsp := mem.DataReadyRspBuilder{}.
			WithSrc(topPort.AsRemote()).
			WithDst(read.Src).
			WithRspTo(read.ID).
			WithData([]byte{4, 5, 6, 7}).
			Build()
		cache.state = stateRespond
		cache.trans = &transaction{req: read, channelID: 0, rsp: rsp}

		topPort.EXPECT().Send(rsp).Return(&sim.SendError{})
		bottomPort.EXPECT().PeekIncoming().Return(nil)

		madeProgress := cacheMW.Tick()

		Expect(madeProgress).To(BeFalse())
		Expect(cache.state).To(Equal(stateRespond))
		Expect(cache.trans.rsp).To(BeIdenticalTo(rsp))
	})

	Context("with two channels", func() {
		var topPort2 *MockPort

		BeforeEach(func() {
			topPort2 = NewMockPort(mockCtrl)
			topPort2.EXPECT().
				AsRemote().
				Return(sim.RemotePort("Cache.TopPort[1]")).
				AnyTimes()

			cache.topPorts = []sim.Port{topPort, topPort2}
		})

		It("should admit from the lowest-numbered waiting channel", func() {
			read := mem.ReadReqBuilder{}.
				WithSrc("Agent0.Port").
				WithDst(topPort.AsRemote()).
				WithAddress(0x44).
				WithByteSize(4).
				Build()

			bottomPort.EXPECT().PeekIncoming().Return(nil)
			topPort.EXPECT().PeekIncoming().Return(read)
			topPort.EXPECT().RetrieveIncoming().Return(read)
			engine.EXPECT().
				Schedule(gomock.AssignableToTypeOf(&lookupEvent{}))

			madeProgress := cacheMW.Tick()

			Expect(madeProgress).To(BeTrue())
			Expect(cache.trans.channelID).To(Equal(0))
		})

		It("should serve a higher channel when the lower ones are empty",
			func() {
				read := mem.ReadReqBuilder{}.
					WithSrc("Agent1.Port").
					WithDst(topPort2.AsRemote()).
					WithAddress(0x44).
					WithByteSize(4).
					Build()

				bottomPort.EXPECT().PeekIncoming().Return(nil)
				topPort.EXPECT().PeekIncoming().Return(nil)
				topPort2.EXPECT().PeekIncoming().Return(read)
				topPort2.EXPECT().RetrieveIncoming().Return(read)
				engine.EXPECT().
					Schedule(gomock.AssignableToTypeOf(&lookupEvent{}))

				madeProgress := cacheMW.Tick()

				Expect(madeProgress).To(BeTrue())
				Expect(cache.trans.channelID).To(Equal(1))
			})
	})

	It("should panic on a request that spans blocks", func() {
		read := mem.ReadReqBuilder{}.
			WithSrc("Agent.Port").
			WithDst(topPort.AsRemote()).
			WithAddress(0x3C).
			WithByteSize(8).
			Build()

		Expect(func() { cacheMW.admitReq(read, 0) }).To(Panic())
	})

	It("should panic when admitting during an in-service request", func() {
		cache.trans = &transaction{}
		read := mem.ReadReqBuilder{}.
			WithSrc("Agent.Port").
			WithDst(topPort.AsRemote()).
			WithAddress(0x44).
			WithByteSize(4).
			Build()

		Expect(func() { cacheMW.admitReq(read, 0) }).To(Panic())
	})

	It("should panic on a message that is not an access request", func() {
		ctrlMsg := mem.ControlMsgBuilder{}.
			WithSrc("Agent.Port").
			WithDst(topPort.AsRemote()).
			ToNotifyDone().
			Build()

		bottomPort.EXPECT().PeekIncoming().Return(nil)
		topPort.EXPECT().PeekIncoming().Return(ctrlMsg)

		Expect(func() { cacheMW.Tick() }).To(Panic())
	})

	It("should panic when the lookup fires in the wrong state", func() {
		Expect(func() { cacheMW.handleLookupEvent() }).To(Panic())
	})

	It("should panic on a data ready that does not answer the fetch", func() {
		fetch := mem.ReadReqBuilder{}.
			WithSrc(bottomPort.AsRemote()).
			WithDst("MemCtrl.TopPort").
			WithAddress(0x40).
			WithByteSize(64).
			Build()
		cache.state = stateAwaitBottom
		cache.trans = &transaction{fetch: fetch}

		stray := mem.DataReadyRspBuilder{}.
			WithSrc("MemCtrl.TopPort").
			WithDst(bottomPort.AsRemote()).
			WithRspTo("not-the-fetch").
			WithData(cacheLineData(0)).
			Build()

		bottomPort.EXPECT().PeekIncoming().Return(stray)

		Expect(func() { cacheMW.Tick() }).To(Panic())
	})

	It("should panic on a write done that matches no writeback", func() {
		done := mem.WriteDoneRspBuilder{}.
			WithSrc("MemCtrl.TopPort").
			WithDst(bottomPort.AsRemote()).
			WithRspTo("not-a-writeback").
			Build()

		bottomPort.EXPECT().PeekIncoming().Return(done)

		Expect(func() { cacheMW.Tick() }).To(Panic())
	})

	It("should panic when the fill does not serve the request", func() {
		read := mem.ReadReqBuilder{}.
			WithSrc("Agent.Port").
			WithDst(topPort.AsRemote()).
			WithAddress(0x44).
			WithByteSize(4).
			Build()
		fetch := mem.ReadReqBuilder{}.
			WithSrc(bottomPort.AsRemote()).
			WithDst("MemCtrl.TopPort").
			WithAddress(0x80).
			WithByteSize(64).
			Build()
		cache.state = stateAwaitBottom
		cache.trans = &transaction{req: read, channelID: 0, fetch: fetch}

		dataReady := mem.DataReadyRspBuilder{}.
			WithSrc("MemCtrl.TopPort").
			WithDst(bottomPort.AsRemote()).
			WithRspTo(fetch.ID).
			WithData(cacheLineData(0)).
			Build()

		bottomPort.EXPECT().PeekIncoming().Return(dataReady)
		bottomPort.EXPECT().RetrieveIncoming().Return(dataReady)

		Expect(func() { cacheMW.Tick() }).To(Panic())
	})

	It("should panic on a fill that is not block sized", func() {
		Expect(func() {
			cacheMW.installBlock(0x40, make([]byte, 32))
		}).To(Panic())
	})

	It("should panic on a fill that is not block aligned", func() {
		Expect(func() {
			cacheMW.installBlock(0x44, make([]byte, 64))
		}).To(Panic())
	})

	It("should panic on a fill for a block that is already resident", func() {
		cacheMW.installBlock(0x40, cacheLineData(0))

		Expect(func() {
			cacheMW.installBlock(0x40, cacheLineData(0))
		}).To(Panic())
	})

	It("should panic when the downstream queue overflows", func() {
		writeBack := mem.WriteReqBuilder{}.
			WithSrc(bottomPort.AsRemote()).
			WithDst("MemCtrl.TopPort").
			WithAddress(0x40).
			WithData(cacheLineData(0)).
			Build()
		fetch := mem.ReadReqBuilder{}.
			WithSrc(bottomPort.AsRemote()).
			WithDst("MemCtrl.TopPort").
			WithAddress(0x80).
			WithByteSize(64).
			Build()
		extra := mem.ReadReqBuilder{}.
			WithSrc(bottomPort.AsRemote()).
			WithDst("MemCtrl.TopPort").
			WithAddress(0xC0).
			WithByteSize(64).
			Build()

		cacheMW.sendToBottom(writeBack)
		cacheMW.sendToBottom(fetch)

		Expect(func() { cacheMW.sendToBottom(extra) }).To(Panic())
	})
})
