package main

import (
	"context"

	"github.com/datawire/dlib/dlog"

	"github.com/anderbubble/prrte/pkg/oob"
	"github.com/anderbubble/prrte/pkg/procid"
	"github.com/anderbubble/prrte/pkg/rml"
)

// logDeliverer is the demo RML stand-in this daemon runs against: it logs
// every delivery and completion instead of routing to a real messaging
// layer, and re-enters the table's Submit to honor SubmitOOB's forwarding
// contract so relayed frames still reach the wire.
type logDeliverer struct {
	table *oob.Table
}

func (d *logDeliverer) DeliverLocal(ctx context.Context, origin procid.ProcId, tag int32, seqNum uint32, payload []byte) {
	dlog.Infof(ctx, "deliver: from=%s tag=%d seq=%d bytes=%d", origin, tag, seqNum, len(payload))
}

func (d *logDeliverer) SendComplete(ctx context.Context, msg *rml.Message, status rml.Status) {
	dlog.Infof(ctx, "send complete: to=%s tag=%d seq=%d status=%s", msg.Dst, msg.Tag, msg.SeqNum, status)
}

func (d *logDeliverer) SignalJobState(ctx context.Context, state rml.JobState, peer procid.ProcId) {
	dlog.Warnf(ctx, "job state: peer=%s state=%s", peer, state)
}

func (d *logDeliverer) SubmitOOB(ctx context.Context, msg *rml.Message) error {
	hdr := procid.NewHeader(msg.Origin, msg.Dst, uint32(len(msg.Payload)), msg.Tag, msg.SeqNum, procid.FrameRelay)
	sr := oob.NewRelaySendRequest(hdr, msg.Payload, true)
	return d.table.Submit(ctx, msg.Dst, sr)
}

// identityHandshaker treats every handshake as immediately successful.
// The real handshake's wire format is out of scope for this module
// (SPEC_FULL.md §1), so the demo CLI skips straight to CONNECTED rather
// than inventing a protocol the spec deliberately leaves opaque.
type identityHandshaker struct{}

func (identityHandshaker) Handshake(conn oob.Conn) (oob.Status, error) {
	return oob.StatusDone, nil
}
