// Package simulation bundles the services that one simulated system needs:
// the event engine, the data recorder, the monitor, and a registry of all
// components and ports keyed by name.
package simulation

import (
	"github.com/hachisim/hachi/datarecording"
	"github.com/hachisim/hachi/monitoring"
	"github.com/hachisim/hachi/sim"
)

// A Simulation owns the engine, the data recorder, and the monitor of one
// simulated system, and keeps a registry of its components and ports.
type Simulation struct {
	id string

	engine       sim.Engine
	dataRecorder datarecording.DataRecorder
	monitor      *monitoring.Monitor

	components    []sim.Component
	compNameIndex map[string]int
	ports         []sim.Port
	portNameIndex map[string]int
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetEngine returns the engine of the simulation.
func (s *Simulation) GetEngine() sim.Engine {
	return s.engine
}

// GetDataRecorder returns the data recorder of the simulation, or nil if
// data recording is disabled.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor of the simulation, or nil if monitoring is
// disabled.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// RegisterComponent adds a component and all its ports to the registry.
// When monitoring is enabled, the component also becomes visible on the
// dashboard.
func (s *Simulation) RegisterComponent(c sim.Component) {
	compName := c.Name()
	if _, found := s.compNameIndex[compName]; found {
		panic("component " + compName + " already registered")
	}

	s.components = append(s.components, c)
	s.compNameIndex[compName] = len(s.components) - 1

	for _, p := range c.Ports() {
		s.registerPort(p)
	}

	if s.monitor != nil {
		s.monitor.RegisterComponent(c)
	}
}

func (s *Simulation) registerPort(p sim.Port) {
	portName := p.Name()
	if _, found := s.portNameIndex[portName]; found {
		panic("port " + portName + " already registered")
	}

	s.ports = append(s.ports, p)
	s.portNameIndex[portName] = len(s.ports) - 1
}

// Components returns all registered components.
func (s *Simulation) Components() []sim.Component {
	return s.components
}

// GetComponentByName returns the component registered under the given name,
// panicking if there is none.
func (s *Simulation) GetComponentByName(name string) sim.Component {
	index, found := s.compNameIndex[name]
	if !found {
		panic("component " + name + " is not registered")
	}

	return s.components[index]
}

// GetPortByName returns the port registered under the given name, panicking
// if there is none.
func (s *Simulation) GetPortByName(name string) sim.Port {
	index, found := s.portNameIndex[name]
	if !found {
		panic("port " + name + " is not registered")
	}

	return s.ports[index]
}

// Terminate releases the services of the simulation, flushing all recorded
// data.
func (s *Simulation) Terminate() {
	if s.dataRecorder != nil {
		s.dataRecorder.Flush()
	}
}
