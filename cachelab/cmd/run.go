package cmd

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hachisim/hachi/datarecording"
	"github.com/hachisim/hachi/mem"
	"github.com/hachisim/hachi/mem/acceptancetests/memaccessagent"
	"github.com/hachisim/hachi/mem/cache/blocking"
	"github.com/hachisim/hachi/mem/idealmemcontroller"
	"github.com/hachisim/hachi/mem/trace"
	"github.com/hachisim/hachi/monitoring"
	"github.com/hachisim/hachi/sim"
	"github.com/hachisim/hachi/sim/directconnection"
	"github.com/hachisim/hachi/simulation"
	"github.com/hachisim/hachi/tracing"
)

var runCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run random traffic through the cache and report statistics.",
	PreRun: applyEnvDefaults,
	Run:    runExperiment,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Uint64("capacity", 16*mem.KB,
		"cache capacity in bytes")
	runCmd.Flags().Int("block-size", 64,
		"cache block size in bytes")
	runCmd.Flags().Int("latency", 4,
		"cache lookup latency in cycles")
	runCmd.Flags().Int("set-size", 4,
		"number of blocks per set")
	runCmd.Flags().String("policy", "lru",
		"eviction policy, one of lru, random, and priority")
	runCmd.Flags().Int64("seed", 0,
		"random seed, 0 derives one from the clock")
	runCmd.Flags().Int("num-access", 10000,
		"number of reads and number of writes to issue")
	runCmd.Flags().Int("channels", 1,
		"number of top channels on the cache")
	runCmd.Flags().String("trace", "",
		"record memory tasks into this SQLite database")
	runCmd.Flags().Bool("monitor", false,
		"serve the monitoring dashboard during the run")
}

type experiment struct {
	seed      int64
	numAccess int

	sim     *simulation.Simulation
	engine  sim.Engine
	cache   *blocking.Comp
	memCtrl *idealmemcontroller.Comp
	agent   *memaccessagent.MemAccessAgent

	stepCounts   *tracing.StepCountTracer
	missLatency  *tracing.HistogramTracer
	execRecorder *datarecording.ExecRecorder
}

func runExperiment(cmd *cobra.Command, _ []string) {
	e := buildExperiment(cmd)

	e.agent.TickLater()

	err := e.engine.Run()
	if err != nil {
		log.Fatal(err)
	}

	if e.execRecorder != nil {
		e.execRecorder.End()
	}
	e.sim.Terminate()

	if !e.agent.Done() {
		log.Fatal("not all accesses completed")
	}

	e.printReport()
}

func buildExperiment(cmd *cobra.Command) *experiment {
	capacity, _ := cmd.Flags().GetUint64("capacity")
	blockSize, _ := cmd.Flags().GetInt("block-size")
	latency, _ := cmd.Flags().GetInt("latency")
	setSize, _ := cmd.Flags().GetInt("set-size")
	policy, _ := cmd.Flags().GetString("policy")
	seed, _ := cmd.Flags().GetInt64("seed")
	numAccess, _ := cmd.Flags().GetInt("num-access")
	channels, _ := cmd.Flags().GetInt("channels")
	traceDB, _ := cmd.Flags().GetString("trace")
	monitorOn, _ := cmd.Flags().GetBool("monitor")

	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	e := &experiment{
		seed:      seed,
		numAccess: numAccess,
	}

	builder := simulation.MakeBuilder()

	if traceDB == "" {
		builder = builder.WithoutDataRecording()
	} else {
		builder = builder.WithOutputFileName(traceDB)
	}

	if monitorOn {
		builder = builder.WithAutoOpenMonitor()
	} else {
		builder = builder.WithoutMonitoring()
	}

	e.sim = builder.Build()
	e.engine = e.sim.GetEngine()

	e.memCtrl = idealmemcontroller.MakeBuilder().
		WithEngine(e.engine).
		WithNewStorage(4 * mem.GB).
		WithLatency(100).
		Build("MemCtrl")
	e.sim.RegisterComponent(e.memCtrl)

	e.cache = blocking.MakeBuilder().
		WithEngine(e.engine).
		WithCapacity(capacity).
		WithBlockSize(blockSize).
		WithLatency(latency).
		WithSetSize(setSize).
		WithEvictionPolicy(policy).
		WithSeed(seed).
		WithNumChannels(channels).
		WithAddressToPortMapper(&mem.SinglePortMapper{
			Port: e.memCtrl.GetPortByName("Top").AsRemote(),
		}).
		WithLowModule(e.memCtrl).
		Build("Cache")
	e.sim.RegisterComponent(e.cache)

	e.agent = memaccessagent.MakeBuilder().
		WithEngine(e.engine).
		WithMaxAddress(e.addressBound()).
		WithNumReads(numAccess).
		WithNumWrites(numAccess).
		WithSeed(seed).
		WithLowModule(e.cache.GetPortByName("Top[0]").AsRemote()).
		Build("Agent")
	e.sim.RegisterComponent(e.agent)

	conn := directconnection.MakeBuilder().
		WithEngine(e.engine).
		WithFreq(1 * sim.GHz).
		Build("Conn")
	conn.PlugIn(e.agent.GetPortByName("Mem"))
	for _, port := range e.cache.Ports() {
		conn.PlugIn(port)
	}
	conn.PlugIn(e.memCtrl.GetPortByName("Top"))

	e.collectStatistics()
	e.collectTrace()
	e.setupProgressBar()

	return e
}

// addressBound clips the one-megabyte traffic footprint to what the memory
// below the cache actually serves.
func (e *experiment) addressBound() uint64 {
	bound := uint64(1 * mem.MB)
	for _, r := range e.cache.AddressRanges() {
		if r.High < bound {
			bound = r.High
		}
	}

	return bound
}

func (e *experiment) collectStatistics() {
	e.stepCounts = tracing.NewStepCountTracer(
		func(t tracing.Task) bool { return t.Kind == "req_in" })
	tracing.CollectTrace(e.cache, e.stepCounts)

	e.missLatency = tracing.NewHistogramTracer(e.engine,
		func(t tracing.Task) bool {
			return t.Kind == "req_out" && t.What == "*mem.ReadReq"
		})
	tracing.CollectTrace(e.cache, e.missLatency)
}

func (e *experiment) collectTrace() {
	recorder := e.sim.GetDataRecorder()
	if recorder == nil {
		return
	}

	e.execRecorder = datarecording.NewExecRecorder(recorder)
	e.execRecorder.Start()

	tracer := trace.NewDBTracer(recorder, e.engine)
	tracing.CollectTrace(e.cache, tracer)
	tracing.CollectTrace(e.memCtrl, tracer)
}

func (e *experiment) setupProgressBar() {
	monitor := e.sim.GetMonitor()
	if monitor == nil {
		return
	}

	total := uint64(2 * e.numAccess)
	bar := monitor.CreateProgressBar("accesses", total)
	e.engine.AcceptHook(progressHook{bar: bar, agent: e.agent, total: total})
}

// progressHook refreshes the access progress bar as the simulation advances.
type progressHook struct {
	bar   *monitoring.ProgressBar
	agent *memaccessagent.MemAccessAgent
	total uint64
}

func (h progressHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosAfterEvent {
		return
	}

	toIssue := uint64(h.agent.ReadLeft + h.agent.WriteLeft)
	inFlight := uint64(h.agent.PendingCount())

	h.bar.Lock()
	h.bar.Finished = h.total - toIssue - inFlight
	h.bar.InProgress = inFlight
	h.bar.Unlock()
}

func (e *experiment) printReport() {
	hits := e.stepCounts.GetStepCount("cache_hit")
	misses := e.stepCounts.GetStepCount("cache_miss")
	total := hits + misses

	ratio := 0.0
	if total > 0 {
		ratio = float64(hits) / float64(total) * 100
	}

	fmt.Printf("seed       %d\n", e.seed)
	fmt.Printf("accesses   %d\n", total)
	fmt.Printf("hits       %d\n", hits)
	fmt.Printf("misses     %d\n", misses)
	fmt.Printf("hit ratio  %.2f%%\n", ratio)

	e.printMissLatency()
}

func (e *experiment) printMissLatency() {
	if e.missLatency.TotalCount() == 0 {
		fmt.Println("no fetches recorded")
		return
	}

	fmt.Printf("fetch latency  min %.2f ns, max %.2f ns\n",
		float64(e.missLatency.MinTime())*1e9,
		float64(e.missLatency.MaxTime())*1e9)

	buckets := e.missLatency.Buckets()
	width := e.missLatency.BucketWidth()

	lastUsed := 0
	var maxCount uint64
	for i, count := range buckets {
		if count > 0 {
			lastUsed = i
		}
		if count > maxCount {
			maxCount = count
		}
	}

	for i := 0; i <= lastUsed; i++ {
		lo := float64(width) * float64(i) * 1e9
		hi := float64(width) * float64(i+1) * 1e9
		bar := strings.Repeat("#", int(buckets[i]*40/maxCount))
		fmt.Printf("%10.1f - %10.1f ns %8d %s\n", lo, hi, buckets[i], bar)
	}
}
