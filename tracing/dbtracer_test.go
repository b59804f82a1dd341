package tracing

import (
	"context"
	"database/sql"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/hachisim/hachi/datarecording"
	"github.com/hachisim/hachi/sim"
)

var _ = Describe("DBTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		db         *sql.DB
		recorder   datarecording.DataRecorder
		reader     datarecording.DataReader
		t          *DBTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)

		var err error
		db, err = sql.Open("sqlite3", ":memory:")
		Expect(err).NotTo(HaveOccurred())

		recorder = datarecording.NewWithDB(db)
		reader = datarecording.NewReaderWithDB(db)
		reader.MapTable("trace", taskTableEntry{})

		t = NewDBTracer(timeTeller, recorder)
	})

	AfterEach(func() {
		db.Close()
		mockCtrl.Finish()
	})

	queryAll := func() []any {
		recorder.Flush()
		results, _, err := reader.Query(
			context.Background(), "trace", datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		return results
	}

	It("should record a completed task", func() {
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1))
		t.StartTask(Task{
			ID:    "1",
			Kind:  "req_in",
			What:  "*mem.ReadReq",
			Where: "Cache",
		})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(2))
		t.EndTask(Task{ID: "1"})

		results := queryAll()
		Expect(results).To(HaveLen(1))

		entry := results[0].(*taskTableEntry)
		Expect(entry.ID).To(Equal("1"))
		Expect(entry.Kind).To(Equal("req_in"))
		Expect(entry.StartTime).To(Equal(1.0))
		Expect(entry.EndTime).To(Equal(2.0))
	})

	It("should drop tasks outside the time range", func() {
		t.SetTimeRange(10, 20)

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1))
		t.StartTask(Task{ID: "1", Kind: "k", What: "w", Where: "l"})
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(2))
		t.EndTask(Task{ID: "1"})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(21))
		t.StartTask(Task{ID: "2", Kind: "k", What: "w", Where: "l"})

		Expect(queryAll()).To(BeEmpty())
	})

	It("should write inflight tasks on terminate", func() {
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1))
		t.StartTask(Task{ID: "1", Kind: "k", What: "w", Where: "l"})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(5))
		t.Terminate()

		results := queryAll()
		Expect(results).To(HaveLen(1))

		entry := results[0].(*taskTableEntry)
		Expect(entry.EndTime).To(Equal(5.0))
	})

	It("should panic on tasks without required fields", func() {
		Expect(func() {
			t.StartTask(Task{ID: "1"})
		}).To(Panic())
	})
})
