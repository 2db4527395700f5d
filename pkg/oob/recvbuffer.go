package oob

import "github.com/anderbubble/prrte/pkg/procid"

// RecvBuffer is owned by the transport from the first byte of a frame
// until dispatch.
type RecvBuffer struct {
	hdrBuf    [procid.HeaderSize]byte
	hdrCursor int
	hdrRecvd  bool

	Hdr     procid.Header
	Payload []byte
	payloadCursor int
}

func newRecvBuffer() *RecvBuffer {
	return &RecvBuffer{}
}
