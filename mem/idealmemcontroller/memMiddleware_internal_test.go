package idealmemcontroller

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/hachisim/hachi/mem"
	"github.com/hachisim/hachi/sim"
)

var _ = Describe("MemMiddleware", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *MockEngine
		topPort  *MockPort
		ctrlPort *MockPort
		comp     *Comp
		memMW    *memMiddleware
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())

		engine = NewMockEngine(mockCtrl)
		topPort = NewMockPort(mockCtrl)
		ctrlPort = NewMockPort(mockCtrl)
		topPort.EXPECT().
			AsRemote().
			Return(sim.RemotePort("MemCtrl.TopPort")).
			AnyTimes()
		ctrlPort.EXPECT().
			AsRemote().
			Return(sim.RemotePort("MemCtrl.CtrlPort")).
			AnyTimes()

		comp = MakeBuilder().
			WithEngine(engine).
			WithNewStorage(1 * mem.MB).
			Build("MemCtrl")
		comp.Freq = 1000 * sim.MHz
		comp.Latency = 10
		comp.topPort = topPort
		comp.ctrlPort = ctrlPort

		memMW = &memMiddleware{Comp: comp}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should do nothing if there is no request", func() {
		topPort.EXPECT().RetrieveIncoming().Return(nil)

		madeProgress := memMW.Tick()

		Expect(madeProgress).To(BeFalse())
	})

	It("should schedule a respond event for a read request", func() {
		readReq := mem.ReadReqBuilder{}.
			WithDst(topPort.AsRemote()).
			WithAddress(0).
			WithByteSize(4).
			Build()
		topPort.EXPECT().RetrieveIncoming().Return(readReq)
		engine.EXPECT().CurrentTime().Return(sim.VTimeInSec(10))

		engine.EXPECT().
			Schedule(gomock.AssignableToTypeOf(&readRespondEvent{}))

		madeProgress := memMW.Tick()

		Expect(madeProgress).To(BeTrue())
	})

	It("should schedule a respond event for a write request", func() {
		writeReq := mem.WriteReqBuilder{}.
			WithDst(topPort.AsRemote()).
			WithAddress(0).
			WithData([]byte{0, 1, 2, 3}).
			WithDirtyMask([]bool{false, false, true, false}).
			Build()
		topPort.EXPECT().RetrieveIncoming().Return(writeReq)
		engine.EXPECT().CurrentTime().Return(sim.VTimeInSec(10))

		engine.EXPECT().
			Schedule(gomock.AssignableToTypeOf(&writeRespondEvent{}))

		madeProgress := memMW.Tick()

		Expect(madeProgress).To(BeTrue())
	})

	It("should not take requests while paused", func() {
		comp.state = "pause"

		madeProgress := memMW.Tick()

		Expect(madeProgress).To(BeFalse())
	})

	It("should acknowledge a drain once nothing is inflight", func() {
		drainReq := mem.ControlMsgBuilder{}.
			WithDst(ctrlPort.AsRemote()).
			WithDrain(true).
			Build()
		comp.state = "drain"
		comp.drainReq = drainReq

		topPort.EXPECT().PeekIncoming().Return(nil)
		ctrlPort.EXPECT().
			Send(gomock.AssignableToTypeOf(&sim.GeneralRsp{})).
			Return(nil)

		madeProgress := memMW.Tick()

		Expect(madeProgress).To(BeTrue())
		Expect(comp.state).To(Equal("pause"))
		Expect(comp.drainReq).To(BeNil())
	})
})
