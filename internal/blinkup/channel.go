package blinkup

import (
	"encoding/json"
	"sync"
)

type CommandStatus string

const (
	StatusOK    CommandStatus = "OK"
	StatusError CommandStatus = "ERROR"
)

// Message is one delivery on a callback channel.
type Message struct {
	CallbackID   string          `json:"callbackId"`
	Status       CommandStatus   `json:"status"`
	KeepCallback bool            `json:"keepCallback"`
	Payload      json.RawMessage `json:"payload"`
}

// Channel carries results back to the caller of a command. Close ends the
// conversation; nothing is sent after it.
type Channel interface {
	Send(msg Message)
	Close()
}

// An attempt sends at most a Started message and a terminal one.
const streamBuffer = 4

// StreamChannel is a Channel backed by a Go channel, for transports that
// forward messages as they arrive.
type StreamChannel struct {
	ch     chan Message
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

func NewStreamChannel() *StreamChannel {
	return &StreamChannel{ch: make(chan Message, streamBuffer)}
}

func (s *StreamChannel) Send(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- msg:
	default:
		// the reader went away and the buffer is full
	}
}

func (s *StreamChannel) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

// Messages yields deliveries until the channel is closed.
func (s *StreamChannel) Messages() <-chan Message {
	return s.ch
}

var encodePayload = json.Marshal

func newMessage(callbackID string, result Result) (Message, error) {
	payload, err := encodePayload(result)
	if err != nil {
		return Message{}, err
	}
	return Message{
		CallbackID:   callbackID,
		Status:       result.CommandStatus(),
		KeepCallback: !result.Terminal(),
		Payload:      payload,
	}, nil
}
