package oob

import (
	"github.com/anderbubble/prrte/pkg/procid"
	"github.com/anderbubble/prrte/pkg/rml"
)

// SendRequest is owned by the transport from submission until completion.
// Exactly one of rmlMsg (borrowed) or relayBytes (owned) is non-nil.
type SendRequest struct {
	Hdr     procid.Header
	hdrBuf  []byte
	hdrSent bool

	rmlMsg     *rml.Message
	relayBytes []byte

	hdrCursor     int
	payloadCursor int

	// Activate mirrors §4.2: whether submission should drive connection
	// or event activation.
	Activate bool
}

// NewRMLSendRequest wraps an RML-owned message: payload bytes are borrowed
// and must never be freed by this package.
func NewRMLSendRequest(hdr procid.Header, msg *rml.Message, activate bool) *SendRequest {
	return &SendRequest{
		Hdr:      hdr,
		hdrBuf:   hdr.MarshalBinary(),
		rmlMsg:   msg,
		Activate: activate,
	}
}

// NewRelaySendRequest wraps a relay-produced payload: the buffer is owned
// by this request and is not referenced again once sent.
func NewRelaySendRequest(hdr procid.Header, payload []byte, activate bool) *SendRequest {
	return &SendRequest{
		Hdr:        hdr,
		hdrBuf:     hdr.MarshalBinary(),
		relayBytes: payload,
		Activate:   activate,
	}
}

// IsRelay reports whether this request carries an owned relay buffer
// rather than a borrowed RML message.
func (sr *SendRequest) IsRelay() bool {
	return sr.rmlMsg == nil
}

// RMLMsg returns the borrowed RML message, or nil for a relay request.
func (sr *SendRequest) RMLMsg() *rml.Message {
	return sr.rmlMsg
}

func (sr *SendRequest) payload() []byte {
	if sr.rmlMsg != nil {
		return sr.rmlMsg.Payload
	}
	return sr.relayBytes
}

// done reports whether every header and payload byte has been written.
func (sr *SendRequest) done() bool {
	return sr.hdrSent && sr.payloadCursor >= len(sr.payload())
}
