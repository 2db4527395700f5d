package oob

import "errors"

// maxRetries bounds the in-loop EAGAIN/EWOULDBLOCK retry before writeOnce
// gives back control to the event loop. This is a latency-reduction hack
// inherited from the source: callers must still tolerate the blocking
// status eventually. readExact does not retry; it returns on the first
// EAGAIN/EWOULDBLOCK.
const maxRetries = 3

// writeOnce drives one attempt at writing sr to conn, implementing the
// partial-write kernel from §4.4. It mutates sr's internal cursors and
// returns the interpreted status.
func writeOnce(conn Conn, sr *SendRequest) (Status, error) {
	payload := sr.payload()
	retries := 0

	for {
		headerRemaining := sr.hdrBuf[sr.hdrCursor:]
		var iovs [][]byte
		if len(headerRemaining) > 0 {
			iovs = append(iovs, headerRemaining)
		}
		if sr.payloadCursor < len(payload) {
			iovs = append(iovs, payload[sr.payloadCursor:])
		}

		total := 0
		for _, seg := range iovs {
			total += len(seg)
		}
		if total == 0 {
			sr.hdrSent = true
			return StatusDone, nil
		}

		n, err := conn.Write(iovs)
		if err == nil && n == total {
			sr.hdrCursor = len(sr.hdrBuf)
			sr.hdrSent = true
			sr.payloadCursor = len(payload)
			return StatusDone, nil
		}
		if err != nil {
			switch {
			case errors.Is(err, ErrInterrupted):
				continue
			case errors.Is(err, ErrAgain):
				retries++
				if retries < maxRetries {
					continue
				}
				return StatusBusy, nil
			case errors.Is(err, ErrWouldBlock):
				retries++
				if retries < maxRetries {
					continue
				}
				return StatusWouldBlock, nil
			default:
				return StatusFatal, err
			}
		}

		// Short write: update whichever cursor the write actually
		// advanced into.
		headerLen := len(headerRemaining)
		if n < headerLen {
			sr.hdrCursor += n
		} else {
			sr.hdrSent = true
			sr.hdrCursor = len(sr.hdrBuf)
			sr.payloadCursor += n - headerLen
		}
		return StatusBusy, nil
	}
}

// readExact drives one attempt at filling buf[*cursor:] from conn,
// implementing §4.6. A return of 0 bytes with no error is treated as
// peer-closed, matching a real socket read().
func readExact(conn Conn, buf []byte, cursor *int) (Status, error) {
	for *cursor < len(buf) {
		n, err := conn.Read(buf[*cursor:])
		if err != nil {
			switch {
			case errors.Is(err, ErrInterrupted):
				continue
			case errors.Is(err, ErrAgain):
				return StatusBusy, nil
			case errors.Is(err, ErrWouldBlock):
				return StatusWouldBlock, nil
			default:
				return StatusFatal, err
			}
		}
		if n == 0 {
			return StatusPeerClosed, nil
		}
		*cursor += n
	}
	return StatusDone, nil
}
