package i3ipc

// Message is one frame as received from or sent to the peer.
// Payload is owned by the Message and is never reused by the decoder.
type Message struct {
	Type    MessageType
	Payload []byte
}

// Length returns the length of the message payload.
func (m Message) Length() int {
	return len(m.Payload)
}

// Body returns the raw payload bytes.
func (m Message) Body() []byte {
	return m.Payload
}
