package signalserver

import (
	"github.com/BioHazard786/Warpmeet/internal/signaling"
)

// inbound is a message read from a client, tagged with its sender.
type inbound struct {
	client *Client
	msg    *signaling.Message
}

// outbound builds a server message. Payloads are plain structs, so encoding
// cannot fail.
func outbound(msgType string, payload any) *signaling.Message {
	msg, err := signaling.NewMessage(msgType, payload)
	if err != nil {
		return &signaling.Message{Type: signaling.MessageTypeError}
	}
	return msg
}

func errorMessage(text string) *signaling.Message {
	return outbound(signaling.MessageTypeError, signaling.ErrorPayload{Error: text})
}
