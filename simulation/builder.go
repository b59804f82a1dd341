package simulation

import (
	"github.com/rs/xid"

	"github.com/hachisim/hachi/datarecording"
	"github.com/hachisim/hachi/monitoring"
	"github.com/hachisim/hachi/sim"
)

// A Builder builds simulations.
type Builder struct {
	parallelEngine  bool
	dataRecordingOn bool
	outputFileName  string
	monitorOn       bool
	monitorPort     int
	autoOpenMonitor bool
}

// MakeBuilder creates a Builder with the default configuration: a serial
// engine, data recording into a generated file name, and the monitoring
// server on a random port.
func MakeBuilder() Builder {
	return Builder{
		dataRecordingOn: true,
		monitorOn:       true,
	}
}

// WithParallelEngine makes the simulation use a parallel engine.
func (b Builder) WithParallelEngine() Builder {
	b.parallelEngine = true
	return b
}

// WithoutDataRecording disables data recording.
func (b Builder) WithoutDataRecording() Builder {
	b.dataRecordingOn = false
	return b
}

// WithOutputFileName sets the file the data recorder writes into, without
// the extension.
func (b Builder) WithOutputFileName(name string) Builder {
	b.outputFileName = name
	return b
}

// WithoutMonitoring disables the monitoring server.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort makes the monitoring server listen on the given port.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithAutoOpenMonitor opens the dashboard in a browser when the simulation
// is built.
func (b Builder) WithAutoOpenMonitor() Builder {
	b.autoOpenMonitor = true
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if !b.monitorOn && b.autoOpenMonitor {
		panic("cannot auto-open the monitor when monitoring is disabled")
	}

	if !b.dataRecordingOn && b.outputFileName != "" {
		panic("output file name cannot be set when data recording is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:            xid.New().String(),
		compNameIndex: make(map[string]int),
		portNameIndex: make(map[string]int),
	}

	s.engine = sim.NewSerialEngine()
	if b.parallelEngine {
		s.engine = sim.NewParallelEngine()
	}

	if b.dataRecordingOn {
		outputPath := b.outputFileName
		if outputPath == "" {
			outputPath = "hachi_sim_" + s.id
		}

		s.dataRecorder = datarecording.New(outputPath)
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}
		if b.autoOpenMonitor {
			s.monitor.WithAutoOpen()
		}

		s.monitor.RegisterEngine(s.engine)
		s.monitor.StartServer()
	}

	return s
}
