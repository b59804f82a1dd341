package sim

// SendError marks a failed send or receive.
type SendError struct{}

// NewSendError creates a SendError.
func NewSendError() *SendError {
	return &SendError{}
}

// A Connection delivers messages between the ports plugged into it.
type Connection interface {
	Named
	Hookable

	// PlugIn attaches a port to the connection.
	PlugIn(port Port)

	// Unplug detaches a port.
	Unplug(port Port)

	// NotifyAvailable tells the connection that the port can receive again,
	// so that stalled deliveries can be retried.
	NotifyAvailable(port Port)

	// NotifySend tells the connection that a port has buffered outgoing
	// messages to pick up.
	NotifySend()
}

// HookPosConnStartSend marks that a connection accepted a message to send.
var HookPosConnStartSend = &HookPos{Name: "Conn Start Send"}

// HookPosConnStartTrans marks that a connection started transmitting.
var HookPosConnStartTrans = &HookPos{Name: "Conn Start Trans"}

// HookPosConnDoneTrans marks that a connection finished transmitting.
var HookPosConnDoneTrans = &HookPos{Name: "Conn Done Trans"}

// HookPosConnDeliver marks that a connection delivered a message.
var HookPosConnDeliver = &HookPos{Name: "Conn Deliver"}
