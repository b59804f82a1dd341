package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hachisim/hachi/datarecording"
	"github.com/hachisim/hachi/mem"
	"github.com/hachisim/hachi/mem/acceptancetests/memaccessagent"
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
var traceFileFlag = flag.String("trace", "",
	"File to write the trace into as text")
var traceDBFlag = flag.String("trace-db", "",
	"SQLite database to record the trace into")
var logEventsFlag = flag.Bool("log-events", false,
	"Log every event to stderr")
var logMsgsFlag = flag.Bool("log-msgs", false,
	"Log the messages moving through the ports to stderr")
var parallelFlag = flag.Bool("parallel", false,
	"Test with the parallel engine")

var s *simulation.Simulation
var engine sim.Engine
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
		WithLatency(100).
		Build("MemCtrl")
	s.RegisterComponent(memCtrl)

	agent = memaccessagent.MakeBuilder().
		WithEngine(engine).
		WithMaxAddress(*maxAddressFlag).
		WithNumReads(*numAccessFlag).
		WithNumWrites(*numAccessFlag).
		WithSeed(seed).
		WithLowModule(memCtrl.GetPortByName("Top").AsRemote()).
		Build("Agent")
	s.RegisterComponent(agent)

	conn := directconnection.MakeBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		Build("Conn")
	conn.PlugIn(agent.GetPortByName("Mem"))
	conn.PlugIn(memCtrl.GetPortByName("Top"))

	attachLoggers()
	collectTrace()

	agent.TickLater()
}

func attachLoggers() {
	if *logEventsFlag {
		engine.AcceptHook(sim.NewEventLogger(log.New(os.Stderr, "", 0)))
	}

	if *logMsgsFlag {
		logger := sim.NewPortMsgLogger(log.New(os.Stderr, "", 0), engine)
		agent.GetPortByName("Mem").AcceptHook(logger)
		memCtrl.GetPortByName("Top").AcceptHook(logger)
	}
}

func collectTrace() {
	if *traceFileFlag != "" {
		traceFile, err := os.Create(*traceFileFlag)
		if err != nil {
			panic(err)
		}

		tracer := trace.NewTracer(log.New(traceFile, "", 0), engine)
		tracing.CollectTrace(memCtrl, tracer)
	}

	if recorder := s.GetDataRecorder(); recorder != nil {
		execRecorder = datarecording.NewExecRecorder(recorder)
		execRecorder.Start()

		tracer := trace.NewDBTracer(recorder, engine)
		tracing.CollectTrace(memCtrl, tracer)
	}
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

// finalMemoryMustMatch sweeps every written address and compares the storage
// content against the last write the agent issued.
func finalMemoryMustMatch() {
	for addr, want := range agent.KnownValues() {
		data, err := memCtrl.Storage.Read(addr, 4)
		if err != nil {
			panic(err)
		}

		got := binary.LittleEndian.Uint32(data)
		if got != want {
			panic(fmt.Sprintf(
				"address 0x%x holds 0x%08x, the last write was 0x%08x",
				addr, got, want))
		}
	}
}
