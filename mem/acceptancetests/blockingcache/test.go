package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hachisim/hachi/datarecording"
	"github.com/hachisim/hachi/mem"
	"github.com/hachisim/hachi/mem/acceptancetests/memaccessagent"
	"github.com/hachisim/hachi/mem/cache/blocking"
	"github.com/hachisim/hachi/mem/idealmemcontroller"
	"github.com/hachisim/hachi/mem/trace"
	"github.com/hachisim/hachi/sim"
	"github.com/hachisim/hachi/sim/directconnection"
	"github.com/hachisim/hachi/simulation"
	"github.com/hachisim/hachi/tracing"
)

var seedFlag = flag.Int64("seed", 0, "Random seed")
var numAccessFlag = flag.Int("num-access", 100000,
	"Number of accesses to generate")
var maxAddressFlag = flag.Uint64("max-address", 1*mem.MB,
	"Address range to use")
var traceDBFlag = flag.String("trace-db", "",
	"SQLite database to record the trace into")
var parallelFlag = flag.Bool("parallel", false,
	"Test with the parallel engine")

var s *simulation.Simulation
var engine sim.Engine
var cache *blocking.Comp
var memCtrl *idealmemcontroller.Comp
var agent *memaccessagent.MemAccessAgent
var execRecorder *datarecording.ExecRecorder

func main() {
	flag.Parse()

	seed := initSeed()
	buildEnvironment(seed)
	runSimulation()
	flushTrace()
	allAccessesMustComplete()
	finalMemoryMustMatch()
}

func initSeed() int64 {
	seed := *seedFlag
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	fmt.Fprintf(os.Stderr, "seed %d\n", seed)

	return seed
}

func buildEnvironment(seed int64) {
	builder := simulation.MakeBuilder().WithoutMonitoring()

	if *traceDBFlag == "" {
		builder = builder.WithoutDataRecording()
	} else {
		builder = builder.WithOutputFileName(*traceDBFlag)
	}

	if *parallelFlag {
		sim.UseParallelIDGenerator()
		builder = builder.WithParallelEngine()
	}

	s = builder.Build()
	engine = s.GetEngine()

	memCtrl = idealmemcontroller.MakeBuilder().
		WithEngine(engine).
		WithNewStorage(4 * mem.GB).
		Build("MemCtrl")
	s.RegisterComponent(memCtrl)

	cache = blocking.MakeBuilder().
		WithEngine(engine).
		WithCapacity(16 * mem.KB).
		WithSetSize(4).
		WithLatency(4).
		WithEvictionPolicy("random").
		WithSeed(seed).
		WithAddressToPortMapper(&mem.SinglePortMapper{
			Port: memCtrl.GetPortByName("Top").AsRemote(),
		}).
		WithLowModule(memCtrl).
		Build("Cache")
	s.RegisterComponent(cache)

	agent = memaccessagent.MakeBuilder().
		WithEngine(engine).
		WithMaxAddress(addressBound()).
		WithNumReads(*numAccessFlag).
		WithNumWrites(*numAccessFlag).
		WithSeed(seed).
		WithLowModule(cache.GetPortByName("Top[0]").AsRemote()).
		Build("Agent")
	s.RegisterComponent(agent)

	conn := directconnection.MakeBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		Build("Conn")
	conn.PlugIn(agent.GetPortByName("Mem"))
	conn.PlugIn(cache.GetPortByName("Top[0]"))
	conn.PlugIn(cache.GetPortByName("Bottom"))
	conn.PlugIn(memCtrl.GetPortByName("Top"))

	collectTrace()

	agent.TickLater()
}

// addressBound clips the requested address range to what the memory below
// the cache actually serves.
func addressBound() uint64 {
	bound := *maxAddressFlag
	for _, r := range cache.AddressRanges() {
		if r.High < bound {
			bound = r.High
		}
	}

	return bound
}

func collectTrace() {
	recorder := s.GetDataRecorder()
	if recorder == nil {
		return
	}

	execRecorder = datarecording.NewExecRecorder(recorder)
	execRecorder.Start()

	tracer := trace.NewDBTracer(recorder, engine)
	tracing.CollectTrace(cache, tracer)
	tracing.CollectTrace(memCtrl, tracer)
}

func runSimulation() {
	err := engine.Run()
	if err != nil {
		panic(err)
	}
}

func flushTrace() {
	if execRecorder != nil {
		execRecorder.End()
	}

	s.Terminate()
}

func allAccessesMustComplete() {
	if !agent.Done() {
		panic("not all accesses completed")
	}
}

// finalMemoryMustMatch sweeps every written address through the functional
// path and compares against the last write the agent issued.
func finalMemoryMustMatch() {
	for addr, want := range agent.KnownValues() {
		read := mem.ReadReqBuilder{}.
			WithAddress(addr).
			WithByteSize(4).
			Build()

		rsp := cache.AccessFunctional(read).(*mem.DataReadyRsp)
		got := binary.LittleEndian.Uint32(rsp.Data)

		if got != want {
			panic(fmt.Sprintf(
				"address 0x%x holds 0x%08x, the last write was 0x%08x",
				addr, got, want))
		}
	}
}
