package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("EventBase", func() {
	var (
		mockCtrl *gomock.Controller
		handler  *MockHandler
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		handler = NewMockHandler(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should carry the time and the handler", func() {
		e := NewEventBase(10.5, handler)

		Expect(e.Time()).To(Equal(VTimeInSec(10.5)))
		Expect(e.Handler()).To(BeIdenticalTo(handler))
		Expect(e.IsSecondary()).To(BeFalse())
	})

	It("should assign each event a unique ID", func() {
		e1 := NewEventBase(1, handler)
		e2 := NewEventBase(1, handler)

		Expect(e1.ID).NotTo(BeEmpty())
		Expect(e1.ID).NotTo(Equal(e2.ID))
	})
})
