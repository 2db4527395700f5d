package procid

import (
	"encoding/binary"
	"fmt"
)

// FrameKind is the wire "type" byte of a Header. It plays the same role
// connpool's ControlCode plays for gRPC tunnel messages: a small closed set
// of frame purposes multiplexed over one connection.
type FrameKind uint8

const (
	// FrameData carries an RML payload between two ProcIds.
	FrameData FrameKind = iota
	// FrameHandshake is the connection-establishment exchange read during
	// CONNECT_ACK; it never reaches the RML.
	FrameHandshake
	// FrameRelay carries a payload this node is forwarding on behalf of
	// another ProcId rather than delivering locally.
	FrameRelay
)

func (k FrameKind) String() string {
	switch k {
	case FrameData:
		return "DATA"
	case FrameHandshake:
		return "HANDSHAKE"
	case FrameRelay:
		return "RELAY"
	default:
		return fmt.Sprintf("FrameKind(%d)", uint8(k))
	}
}

// HeaderSize is the fixed, 16-byte-aligned wire size of a Header.
const HeaderSize = 32

// Header is the fixed-layout frame header, always carried on the wire in
// big-endian ("network") byte order and converted to host order immediately
// after a full header has been read.
type Header struct {
	OriginJobID  uint32
	OriginVPID   uint32
	DstJobID     uint32
	DstVPID      uint32
	PayloadBytes uint32
	Tag          int32
	SeqNum       uint32
	Type         FrameKind
}

// Origin returns the header's origin as a ProcId.
func (h Header) Origin() ProcId {
	return ProcId{JobID: h.OriginJobID, VPID: h.OriginVPID}
}

// Dst returns the header's destination as a ProcId.
func (h Header) Dst() ProcId {
	return ProcId{JobID: h.DstJobID, VPID: h.DstVPID}
}

// NewHeader builds a Header from origin/dst ProcIds and the remaining
// frame fields.
func NewHeader(origin, dst ProcId, payloadBytes uint32, tag int32, seqNum uint32, kind FrameKind) Header {
	return Header{
		OriginJobID:  origin.JobID,
		OriginVPID:   origin.VPID,
		DstJobID:     dst.JobID,
		DstVPID:      dst.VPID,
		PayloadBytes: payloadBytes,
		Tag:          tag,
		SeqNum:       seqNum,
		Type:         kind,
	}
}

// MarshalBinary encodes h into its fixed, big-endian, HeaderSize-byte wire
// form.
func (h Header) MarshalBinary() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.OriginJobID)
	binary.BigEndian.PutUint32(buf[4:8], h.OriginVPID)
	binary.BigEndian.PutUint32(buf[8:12], h.DstJobID)
	binary.BigEndian.PutUint32(buf[12:16], h.DstVPID)
	binary.BigEndian.PutUint32(buf[16:20], h.PayloadBytes)
	binary.BigEndian.PutUint32(buf[20:24], uint32(h.Tag))
	binary.BigEndian.PutUint32(buf[24:28], h.SeqNum)
	buf[28] = byte(h.Type)
	// buf[29:32] is reserved padding, left zero.
	return buf
}

// UnmarshalHeader decodes a HeaderSize-byte big-endian buffer into a
// host-order Header.
func UnmarshalHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, fmt.Errorf("procid: short header: got %d bytes, want %d", len(buf), HeaderSize)
	}
	return Header{
		OriginJobID:  binary.BigEndian.Uint32(buf[0:4]),
		OriginVPID:   binary.BigEndian.Uint32(buf[4:8]),
		DstJobID:     binary.BigEndian.Uint32(buf[8:12]),
		DstVPID:      binary.BigEndian.Uint32(buf[12:16]),
		PayloadBytes: binary.BigEndian.Uint32(buf[16:20]),
		Tag:          int32(binary.BigEndian.Uint32(buf[20:24])),
		SeqNum:       binary.BigEndian.Uint32(buf[24:28]),
		Type:         FrameKind(buf[28]),
	}, nil
}
