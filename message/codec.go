package message

import (
	"fmt"

	"github.com/shamaton/msgpack/v2"
)

// wireMessage is the on-the-wire shape. Types travel by name so that peers
// built from different revisions of the enum still agree.
type wireMessage struct {
	Type    string
	Source  string
	Target  int
	Payload string
	First   bool
}

// Encode returns the msgpack encoding of m.
func Encode(m Message) ([]byte, error) {
	return msgpack.Marshal(m.wire())
}

// Decode parses a message produced by Encode.
func Decode(data []byte) (Message, error) {
	var wm wireMessage
	if err := msgpack.Unmarshal(data, &wm); err != nil {
		return Message{}, fmt.Errorf("decoding message: %w", err)
	}
	var m Message
	err := m.fromWire(wm)
	return m, err
}

func (m Message) wire() wireMessage {
	return wireMessage{
		Type:    m.Type.String(),
		Source:  m.Source,
		Target:  m.Target,
		Payload: m.Payload,
		First:   m.First,
	}
}

func (m *Message) fromWire(wm wireMessage) error {
	t, err := ParseType(wm.Type)
	if err != nil {
		return err
	}
	*m = Message{
		Type:    t,
		Source:  wm.Source,
		Target:  wm.Target,
		Payload: wm.Payload,
		First:   wm.First,
	}
	return nil
}
