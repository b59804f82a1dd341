// Package trace records memory system tasks, either as text lines or into a
// database.
package trace

import (
	"log"

	"github.com/hachisim/hachi/datarecording"
	"github.com/hachisim/hachi/mem"
	"github.com/hachisim/hachi/sim"
	"github.com/hachisim/hachi/tracing"
)

// A tracer writes one line per task event to a logger.
type tracer struct {
	timeTeller sim.TimeTeller
	logger     *log.Logger
}

// NewTracer creates a tracer that writes text lines to the given logger.
func NewTracer(logger *log.Logger, timeTeller sim.TimeTeller) tracing.Tracer {
	return &tracer{
		timeTeller: timeTeller,
		logger:     logger,
	}
}

// StartTask logs the start of a memory transaction. Tasks that do not carry
// an access request are ignored.
func (t *tracer) StartTask(task tracing.Task) {
	task.StartTime = t.timeTeller.CurrentTime()

	req, ok := task.Detail.(mem.AccessReq)
	if !ok {
		return
	}

	t.logger.Printf("start, %.12f, %s, %s, %s, 0x%x, %d\n",
		task.StartTime,
		task.Where,
		task.ID,
		task.What,
		req.GetAddress(),
		req.GetByteSize(),
	)
}

// StepTask logs a milestone of a memory transaction.
func (t *tracer) StepTask(task tracing.Task) {
	t.logger.Printf("step, %.12f, %s, %s\n",
		t.timeTeller.CurrentTime(),
		task.ID,
		task.Steps[0].What,
	)
}

// EndTask logs the end of a memory transaction.
func (t *tracer) EndTask(task tracing.Task) {
	t.logger.Printf("end, %.12f, %s\n",
		t.timeTeller.CurrentTime(),
		task.ID,
	)
}

// memoryTransactionEntry is one recorded memory transaction.
type memoryTransactionEntry struct {
	ID        string
	Location  string
	What      string
	StartTime float64
	EndTime   float64
	Address   uint64
	ByteSize  uint64
}

// memoryStepEntry is one recorded milestone of a transaction.
type memoryStepEntry struct {
	TaskID string
	Time   float64
	What   string
}

// A dbTracer records memory transactions through a DataRecorder.
type dbTracer struct {
	timeTeller          sim.TimeTeller
	dataRecorder        datarecording.DataRecorder
	pendingTransactions map[string]*memoryTransactionEntry
}

// NewDBTracer creates a tracer that records memory transactions into the
// tables "memory_transactions" and "memory_steps".
func NewDBTracer(
	dataRecorder datarecording.DataRecorder,
	timeTeller sim.TimeTeller,
) tracing.Tracer {
	t := &dbTracer{
		timeTeller:          timeTeller,
		dataRecorder:        dataRecorder,
		pendingTransactions: make(map[string]*memoryTransactionEntry),
	}

	t.dataRecorder.CreateTable("memory_transactions", memoryTransactionEntry{})
	t.dataRecorder.CreateTable("memory_steps", memoryStepEntry{})

	return t
}

// StartTask starts recording a memory transaction. Tasks that do not carry
// an access request are ignored.
func (t *dbTracer) StartTask(task tracing.Task) {
	req, ok := task.Detail.(mem.AccessReq)
	if !ok {
		return
	}

	t.pendingTransactions[task.ID] = &memoryTransactionEntry{
		ID:        task.ID,
		Location:  task.Where,
		What:      task.What,
		StartTime: float64(t.timeTeller.CurrentTime()),
		Address:   req.GetAddress(),
		ByteSize:  req.GetByteSize(),
	}
}

// StepTask records a milestone of a transaction being recorded.
func (t *dbTracer) StepTask(task tracing.Task) {
	if _, found := t.pendingTransactions[task.ID]; !found {
		return
	}

	t.dataRecorder.InsertData("memory_steps", memoryStepEntry{
		TaskID: task.ID,
		Time:   float64(t.timeTeller.CurrentTime()),
		What:   task.Steps[0].What,
	})
}

// EndTask completes a transaction and writes it out.
func (t *dbTracer) EndTask(task tracing.Task) {
	entry, found := t.pendingTransactions[task.ID]
	if !found {
		return
	}
	delete(t.pendingTransactions, task.ID)

	entry.EndTime = float64(t.timeTeller.CurrentTime())
	t.dataRecorder.InsertData("memory_transactions", *entry)
}
