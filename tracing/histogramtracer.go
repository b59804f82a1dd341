package tracing

import (
	"sync"

	"github.com/hachisim/hachi/sim"
)

const histogramBucketCount = 16

// HistogramTracer collects the distribution of the time of completing a
// certain type of task. The distribution is stored in a fixed number of
// equal-width buckets. When a task takes longer than the current range can
// hold, the bucket width doubles and neighboring buckets merge, so the
// memory use stays constant no matter how the task times spread.
type HistogramTracer struct {
	timeTeller    sim.TimeTeller
	filter        TaskFilter
	lock          sync.Mutex
	inflightTasks map[string]Task

	buckets     []uint64
	bucketWidth sim.VTimeInSec
	taskCount   uint64
	minTime     sim.VTimeInSec
	maxTime     sim.VTimeInSec
}

// NewHistogramTracer creates a new HistogramTracer.
func NewHistogramTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *HistogramTracer {
	t := &HistogramTracer{
		timeTeller:    timeTeller,
		filter:        filter,
		inflightTasks: make(map[string]Task),
		buckets:       make([]uint64, histogramBucketCount),
	}

	return t
}

// TotalCount returns the number of completed tasks.
func (t *HistogramTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.taskCount
}

// BucketWidth returns the width of each bucket. Bucket i covers
// [i*width, (i+1)*width).
func (t *HistogramTracer) BucketWidth() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.bucketWidth
}

// Buckets returns a copy of the bucket counters.
func (t *HistogramTracer) Buckets() []uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	buckets := make([]uint64, len(t.buckets))
	copy(buckets, t.buckets)

	return buckets
}

// MinTime returns the shortest recorded task time.
func (t *HistogramTracer) MinTime() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.minTime
}

// MaxTime returns the longest recorded task time.
func (t *HistogramTracer) MaxTime() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.maxTime
}

// StartTask records the task start time.
func (t *HistogramTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.CurrentTime()

	if t.filter != nil && !t.filter(task) {
		return
	}

	t.lock.Lock()
	t.inflightTasks[task.ID] = task
	t.lock.Unlock()
}

// StepTask does nothing.
func (t *HistogramTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask records the task time into the distribution.
func (t *HistogramTracer) EndTask(task Task) {
	task.EndTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}
	delete(t.inflightTasks, task.ID)

	taskTime := task.EndTime - originalTask.StartTime
	t.recordSample(taskTime)
}

func (t *HistogramTracer) recordSample(taskTime sim.VTimeInSec) {
	if t.taskCount == 0 || taskTime < t.minTime {
		t.minTime = taskTime
	}
	if taskTime > t.maxTime {
		t.maxTime = taskTime
	}
	t.taskCount++

	if t.bucketWidth == 0 {
		if taskTime == 0 {
			t.buckets[0]++
			return
		}

		// Aim the first sample at the middle of the range so that a
		// moderate spread fits without folding.
		t.bucketWidth = taskTime / (histogramBucketCount / 2)
	}

	for taskTime >= t.bucketWidth*histogramBucketCount {
		t.foldBuckets()
	}

	index := int(taskTime / t.bucketWidth)
	t.buckets[index]++
}

// foldBuckets doubles the bucket width and merges neighboring buckets.
func (t *HistogramTracer) foldBuckets() {
	t.bucketWidth *= 2

	for i := 0; i < histogramBucketCount/2; i++ {
		t.buckets[i] = t.buckets[2*i] + t.buckets[2*i+1]
	}

	for i := histogramBucketCount / 2; i < histogramBucketCount; i++ {
		t.buckets[i] = 0
	}
}
