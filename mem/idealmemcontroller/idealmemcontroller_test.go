package idealmemcontroller

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/hachisim/hachi/mem"
	"github.com/hachisim/hachi/sim"
)

var _ = Describe("Ideal Memory Controller", func() {
	var (
		mockCtrl      *gomock.Controller
		engine        *MockEngine
		topPort       *MockPort
		memController *Comp
		memMW         *memMiddleware
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewMockEngine(mockCtrl)
		topPort = NewMockPort(mockCtrl)
		topPort.EXPECT().
			AsRemote().
			Return(sim.RemotePort("MemCtrl.TopPort")).
			AnyTimes()

		memController = MakeBuilder().
			WithEngine(engine).
			WithNewStorage(1 * mem.MB).
			Build("MemCtrl")
		memController.Freq = 1000 * sim.MHz
		memController.Latency = 10
		memController.topPort = topPort

		memMW = &memMiddleware{Comp: memController}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should handle read respond event", func() {
		memController.Storage.Write(0, []byte{1, 2, 3, 4})

		readReq := mem.ReadReqBuilder{}.
			WithSrc(sim.RemotePort("Agent.Port")).
			WithDst(topPort.AsRemote()).
			WithAddress(0).
			WithByteSize(4).
			Build()
		event := newReadRespondEvent(11, memMW, readReq)

		topPort.EXPECT().
			Send(gomock.AssignableToTypeOf(&mem.DataReadyRsp{})).
			Do(func(rsp sim.Msg) {
				dataReady := rsp.(*mem.DataReadyRsp)
				Expect(dataReady.Data).To(Equal([]byte{1, 2, 3, 4}))
				Expect(dataReady.RespondTo).To(Equal(readReq.ID))
			}).
			Return(nil)
		engine.EXPECT().CurrentTime().Return(sim.VTimeInSec(11))
		engine.EXPECT().Schedule(gomock.Any())

		memMW.Handle(event)
	})

	It("should retry read if send DataReady failed", func() {
		memController.Storage.Write(0, []byte{1, 2, 3, 4})

		readReq := mem.ReadReqBuilder{}.
			WithSrc(sim.RemotePort("Agent.Port")).
			WithDst(topPort.AsRemote()).
			WithAddress(0).
			WithByteSize(4).
			Build()
		event := newReadRespondEvent(11, memMW, readReq)

		topPort.EXPECT().
			Send(gomock.AssignableToTypeOf(&mem.DataReadyRsp{})).
			Return(&sim.SendError{})
		engine.EXPECT().
			Schedule(gomock.AssignableToTypeOf(&readRespondEvent{}))

		memMW.Handle(event)
	})

	It("should handle write respond event without write mask", func() {
		writeReq := mem.WriteReqBuilder{}.
			WithSrc(sim.RemotePort("Agent.Port")).
			WithDst(topPort.AsRemote()).
			WithAddress(0).
			WithData([]byte{1, 2, 3, 4}).
			Build()
		event := newWriteRespondEvent(11, memMW, writeReq)

		topPort.EXPECT().
			Send(gomock.AssignableToTypeOf(&mem.WriteDoneRsp{})).
			Return(nil)
		engine.EXPECT().CurrentTime().Return(sim.VTimeInSec(11))
		engine.EXPECT().Schedule(gomock.Any())

		memMW.Handle(event)

		retData, _ := memController.Storage.Read(0, 4)
		Expect(retData).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("should handle write respond event with write mask", func() {
		memController.Storage.Write(0, []byte{9, 9, 9, 9})

		writeReq := mem.WriteReqBuilder{}.
			WithSrc(sim.RemotePort("Agent.Port")).
			WithDst(topPort.AsRemote()).
			WithAddress(0).
			WithData([]byte{1, 2, 3, 4}).
			WithDirtyMask([]bool{false, true, false, false}).
			Build()
		event := newWriteRespondEvent(11, memMW, writeReq)

		topPort.EXPECT().
			Send(gomock.AssignableToTypeOf(&mem.WriteDoneRsp{})).
			Return(nil)
		engine.EXPECT().CurrentTime().Return(sim.VTimeInSec(11))
		engine.EXPECT().Schedule(gomock.Any())

		memMW.Handle(event)

		retData, _ := memController.Storage.Read(0, 4)
		Expect(retData).To(Equal([]byte{9, 2, 9, 9}))
	})

	It("should retry write if send WriteDone failed", func() {
		writeReq := mem.WriteReqBuilder{}.
			WithSrc(sim.RemotePort("Agent.Port")).
			WithDst(topPort.AsRemote()).
			WithAddress(0).
			WithData([]byte{1, 2, 3, 4}).
			Build()
		event := newWriteRespondEvent(11, memMW, writeReq)

		topPort.EXPECT().
			Send(gomock.AssignableToTypeOf(&mem.WriteDoneRsp{})).
			Return(&sim.SendError{})
		engine.EXPECT().
			Schedule(gomock.AssignableToTypeOf(&writeRespondEvent{}))

		memMW.Handle(event)

		retData, _ := memController.Storage.Read(0, 4)
		Expect(retData).To(Equal([]byte{0, 0, 0, 0}))
	})

	It("should serve functional reads", func() {
		memController.Storage.Write(0x40, []byte{5, 6, 7, 8})

		readReq := mem.ReadReqBuilder{}.
			WithSrc(sim.RemotePort("Agent.Port")).
			WithDst(topPort.AsRemote()).
			WithAddress(0x40).
			WithByteSize(4).
			Build()

		rsp := memController.AccessFunctional(readReq)

		dataReady := rsp.(*mem.DataReadyRsp)
		Expect(dataReady.Data).To(Equal([]byte{5, 6, 7, 8}))
		Expect(dataReady.RespondTo).To(Equal(readReq.ID))
	})

	It("should serve functional writes with a dirty mask", func() {
		memController.Storage.Write(0x40, []byte{9, 9, 9, 9})

		writeReq := mem.WriteReqBuilder{}.
			WithSrc(sim.RemotePort("Agent.Port")).
			WithDst(topPort.AsRemote()).
			WithAddress(0x40).
			WithData([]byte{1, 2, 3, 4}).
			WithDirtyMask([]bool{true, false, false, true}).
			Build()

		rsp := memController.AccessFunctional(writeReq)

		writeDone := rsp.(*mem.WriteDoneRsp)
		Expect(writeDone.RespondTo).To(Equal(writeReq.ID))
		retData, _ := memController.Storage.Read(0x40, 4)
		Expect(retData).To(Equal([]byte{1, 9, 9, 4}))
	})

	It("should report the address range it serves", func() {
		Expect(memController.AddressRanges()).To(Equal(
			[]mem.AddrRange{{Low: 0, High: 1 * mem.MB}},
		))
	})

	It("should translate addresses by the range low bound", func() {
		offsetCtrl := MakeBuilder().
			WithEngine(engine).
			WithNewStorage(1 * mem.MB).
			WithAddressRange(mem.AddrRange{
				Low:  0x100000,
				High: 0x100000 + 1*mem.MB,
			}).
			Build("OffsetMemCtrl")
		offsetCtrl.Storage.Write(0, []byte{1, 2, 3, 4})

		readReq := mem.ReadReqBuilder{}.
			WithSrc(sim.RemotePort("Agent.Port")).
			WithDst(sim.RemotePort("OffsetMemCtrl.TopPort")).
			WithAddress(0x100000).
			WithByteSize(4).
			Build()

		rsp := offsetCtrl.AccessFunctional(readReq)

		dataReady := rsp.(*mem.DataReadyRsp)
		Expect(dataReady.Data).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("should panic on an out-of-range access", func() {
		readReq := mem.ReadReqBuilder{}.
			WithSrc(sim.RemotePort("Agent.Port")).
			WithDst(topPort.AsRemote()).
			WithAddress(2 * mem.MB).
			WithByteSize(4).
			Build()

		Expect(func() {
			memController.AccessFunctional(readReq)
		}).To(Panic())
	})
})
