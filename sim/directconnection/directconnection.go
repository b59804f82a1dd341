// Package directconnection connects ports without latency.
package directconnection

import "github.com/hachisim/hachi/sim"

type portRegistry struct {
	ports   []sim.Port
	portMap map[sim.RemotePort]int
}

func (r *portRegistry) add(port sim.Port) {
	r.ports = append(r.ports, port)
	r.portMap[port.AsRemote()] = len(r.ports) - 1
}

func (r *portRegistry) at(index int) sim.Port {
	return r.ports[index]
}

func (r *portRegistry) byRemote(name sim.RemotePort) sim.Port {
	return r.ports[r.portMap[name]]
}

func (r *portRegistry) list() []sim.Port {
	return r.ports
}

func (r *portRegistry) len() int {
	return len(r.ports)
}

// Comp is a connection that delivers messages in the cycle after they are
// sent, regardless of how many ports are plugged in.
type Comp struct {
	*sim.TickingComponent
	sim.MiddlewareHolder

	ports      portRegistry
	nextPortID int
}

// PlugIn attaches a port to this connection.
func (c *Comp) PlugIn(port sim.Port) {
	c.Lock()
	defer c.Unlock()

	c.ports.add(port)

	port.SetConnection(c)
}

// Unplug detaches a port.
func (c *Comp) Unplug(_ sim.Port) {
	panic("not implemented")
}

// NotifyAvailable is called by a port to notify that the connection can
// deliver to the port again.
func (c *Comp) NotifyAvailable(p sim.Port) {
	for _, port := range c.ports.list() {
		if port == p {
			continue
		}

		port.NotifyAvailable()
	}

	c.TickNow()
}

// NotifySend is called by a port to notify that the connection has outgoing
// messages to pick up.
func (c *Comp) NotifySend() {
	c.TickNow()
}

func (c *Comp) Tick() bool {
	return c.MiddlewareHolder.Tick()
}

type middleware struct {
	*Comp
}

// Tick moves messages from the outgoing buffers of the plugged-in ports to
// the incoming buffers of their destinations. Ports take turns going first.
func (m *middleware) Tick() bool {
	madeProgress := false

	for i := range m.ports.len() {
		portID := (i + m.nextPortID) % m.ports.len()
		port := m.ports.at(portID)
		madeProgress = m.forwardMany(port) || madeProgress
	}

	m.nextPortID = (m.nextPortID + 1) % m.ports.len()

	return madeProgress
}

func (m *middleware) forwardMany(port sim.Port) bool {
	madeProgress := false

	for {
		head := port.PeekOutgoing()
		if head == nil {
			break
		}

		dst := head.Meta().Dst
		dstPort := m.ports.byRemote(dst)

		err := dstPort.Deliver(head)
		if err != nil {
			break
		}

		madeProgress = true

		port.RetrieveOutgoing()
	}

	return madeProgress
}
