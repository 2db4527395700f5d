// Package rml defines the boundary between the OOB transport and the
// routed messaging layer that sits above it. The transport is the only
// consumer of this package's interfaces; nothing in this module implements
// JobState transitions beyond signaling COMM_FAILED.
package rml

import (
	"context"

	"github.com/anderbubble/prrte/pkg/procid"
)

// JobState is the subset of job-state-machine transitions the transport is
// allowed to signal upward. Everything else is out of scope.
type JobState int

const (
	// JobStateCommFailed signals that a peer suffered a fatal, non-UNREACH
	// error and the RML should treat that peer's job as failed.
	JobStateCommFailed JobState = iota
)

func (s JobState) String() string {
	switch s {
	case JobStateCommFailed:
		return "JOB_STATE_COMM_FAILED"
	default:
		return "JOB_STATE_UNKNOWN"
	}
}

// Status is the completion status of a SendRequest as reported to the RML.
type Status int

const (
	StatusOK Status = iota
	StatusCommFailure
)

func (s Status) String() string {
	if s == StatusOK {
		return "OK"
	}
	return "COMM_FAILURE"
}

// Message is an RML-owned send request: a frame destined for (or forwarded
// to) a remote ProcId, with payload bytes borrowed from the RML's own
// buffers (never freed by the transport).
type Message struct {
	Origin  procid.ProcId
	Dst     procid.ProcId
	Tag     int32
	SeqNum  uint32
	Payload []byte
}

// Deliverer is the upward-facing boundary the transport invokes. A
// production RML implements it; tests implement a small in-memory fake.
type Deliverer interface {
	// DeliverLocal hands a fully received frame addressed to this process
	// to the RML. Ownership of payload transfers to the callee.
	DeliverLocal(ctx context.Context, origin procid.ProcId, tag int32, seqNum uint32, payload []byte)

	// SendComplete fires exactly once per Message submitted through the
	// transport, reporting whether it reached the wire.
	SendComplete(ctx context.Context, msg *Message, status Status)

	// SignalJobState reports a fatal, peer-scoped transport condition.
	SignalJobState(ctx context.Context, state JobState, peer procid.ProcId)

	// SubmitOOB re-enters the transport's top-level send entry point for a
	// frame this node is forwarding rather than delivering locally.
	SubmitOOB(ctx context.Context, msg *Message) error
}
