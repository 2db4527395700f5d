package oob

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anderbubble/prrte/pkg/procid"
	"github.com/anderbubble/prrte/pkg/rml"
)

func TestWriteOnceFragmentedSend(t *testing.T) {
	tests := []struct {
		name       string
		payloadLen int
		writeLimit int
	}{
		{name: "zero-byte message", payloadLen: 0, writeLimit: 0},
		{name: "fragmented 4KB send, 1 byte per write", payloadLen: 4096, writeLimit: 1},
		{name: "fragmented 4KB send, 7 bytes per write", payloadLen: 4096, writeLimit: 7},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, tt.payloadLen)
			for i := range payload {
				payload[i] = byte(i)
			}
			hdr := procid.NewHeader(procid.ProcId{JobID: 1, VPID: 0}, procid.ProcId{JobID: 1, VPID: 1}, uint32(tt.payloadLen), 7, 1, procid.FrameData)
			sr := NewRMLSendRequest(hdr, &rml.Message{Payload: payload}, true)

			conn := newFakeConn()
			conn.writeLimit = tt.writeLimit

			iterations := 0
			for {
				status, err := writeOnce(conn, sr)
				require.NoError(t, err)
				iterations++
				require.Less(t, iterations, 100000, "writeOnce did not converge")
				if status == StatusDone {
					break
				}
				assert.Contains(t, []Status{StatusBusy, StatusWouldBlock}, status)
			}

			want := append(append([]byte{}, hdr.MarshalBinary()...), payload...)
			assert.True(t, bytes.Equal(want, conn.writeBuf.Bytes()))
		})
	}
}

func TestReadExactFragmented(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i * 3)
	}
	conn := newFakeConn()
	conn.readData = data
	conn.readLimit = 3

	buf := make([]byte, len(data))
	cursor := 0
	iterations := 0
	for {
		status, err := readExact(conn, buf, &cursor)
		require.NoError(t, err)
		iterations++
		require.Less(t, iterations, 100000, "readExact did not converge")
		if status == StatusDone {
			break
		}
		assert.Contains(t, []Status{StatusBusy, StatusWouldBlock}, status)
	}
	assert.True(t, bytes.Equal(data, buf))
}

func TestReadExactPeerClosed(t *testing.T) {
	conn := newFakeConn()
	conn.peerClosed = true

	buf := make([]byte, procid.HeaderSize)
	cursor := 0
	status, err := readExact(conn, buf, &cursor)
	require.NoError(t, err)
	assert.Equal(t, StatusPeerClosed, status)
}

func TestWriteOnceBusyRetryBound(t *testing.T) {
	conn := &blockingConn{blockErr: ErrAgain}
	hdr := procid.NewHeader(procid.ProcId{}, procid.ProcId{}, 0, 0, 0, procid.FrameData)
	sr := NewRMLSendRequest(hdr, &rml.Message{}, true)

	status, err := writeOnce(conn, sr)
	require.NoError(t, err)
	assert.Equal(t, StatusBusy, status)
	assert.Equal(t, maxRetries, conn.attempts)
}

func TestWriteOnceWouldBlockRetryBound(t *testing.T) {
	conn := &blockingConn{blockErr: ErrWouldBlock}
	hdr := procid.NewHeader(procid.ProcId{}, procid.ProcId{}, 0, 0, 0, procid.FrameData)
	sr := NewRMLSendRequest(hdr, &rml.Message{}, true)

	status, err := writeOnce(conn, sr)
	require.NoError(t, err)
	assert.Equal(t, StatusWouldBlock, status)
	assert.Equal(t, maxRetries, conn.attempts)
}

// blockingConn always returns blockErr, to exercise writeOnce's bounded
// in-loop retry (§4.4 MAX_RETRIES).
type blockingConn struct {
	blockErr error
	attempts int
}

func (c *blockingConn) Fd() int   { return -1 }
func (c *blockingConn) Close() error { return nil }
func (c *blockingConn) Read(p []byte) (int, error) { return 0, c.blockErr }
func (c *blockingConn) Write(iovs [][]byte) (int, error) {
	c.attempts++
	return 0, c.blockErr
}
