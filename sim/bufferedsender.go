package sim

import (
	"log"
)

// A BufferedSender queues messages and sends them out of a port one at a
// time. Components use it to decouple message generation from the port's
// availability: a stage can produce a message whenever it likes, and the
// sender retries on later ticks until the port accepts it.
type BufferedSender interface {
	// CanSend checks if the buffer has room for count more messages.
	CanSend(count int) bool

	// Send queues a message to be sent on a later Tick.
	Send(msg Msg)

	// Clear drops all queued messages.
	Clear()

	// Tick tries to send one queued message. It returns true on success.
	Tick() bool
}

// NewBufferedSender creates a BufferedSender that sends through the given
// port, holding pending messages in the given buffer.
func NewBufferedSender(port Port, buffer Buffer) BufferedSender {
	return &bufferedSenderImpl{
		port:   port,
		buffer: buffer,
	}
}

type bufferedSenderImpl struct {
	port   Port
	buffer Buffer
}

func (s *bufferedSenderImpl) CanSend(count int) bool {
	if count > s.buffer.Capacity() {
		log.Panic("trying to send number of messages exceeding capacity")
	}

	return count+s.buffer.Size() <= s.buffer.Capacity()
}

func (s *bufferedSenderImpl) Send(msg Msg) {
	s.buffer.Push(msg)
}

func (s *bufferedSenderImpl) Clear() {
	s.buffer.Clear()
}

func (s *bufferedSenderImpl) Tick() bool {
	item := s.buffer.Peek()
	if item == nil {
		return false
	}

	msg := item.(Msg)
	if err := s.port.Send(msg); err != nil {
		return false
	}

	s.buffer.Pop()

	return true
}
