// Package mapper implements the round-robin resource mapper: given a job's
// target process count, an ordered allocation of nodes, and a mapping
// policy, it assigns every process to a node and (where a topology is
// available) to a topology object, honoring oversubscription rules and
// per-node/per-socket density directives. See SPEC_FULL.md §4.8-§4.11.
package mapper

import (
	"github.com/anderbubble/prrte/pkg/procid"
)

// NodeFlags mirrors the PRRTE_NODE_FLAG_* bitmask from the source.
type NodeFlags uint8

const (
	NodeMapped NodeFlags = 1 << iota
	NodeOversubscribed
	NodeSlotsGiven
)

// Node is one allocation entry: a machine with a slot budget and,
// optionally, a hardware topology to map objects within.
type Node struct {
	Name       string
	Slots      uint32
	SlotsInuse uint32
	NumProcs   uint32
	Topology   Topology
	Flags      NodeFlags
}

func (n *Node) hasFlag(f NodeFlags) bool { return n.Flags&f != 0 }
func (n *Node) setFlag(f NodeFlags)      { n.Flags |= f }
func (n *Node) availableSlots() int      { return int(n.Slots) - int(n.SlotsInuse) }

// MarkSlotsGiven flags this node's slot count as operator-specified
// (rather than discovered/defaulted), which the permission gate in
// checkOversubscribePermission consults before allowing oversubscription.
func (n *Node) MarkSlotsGiven() { n.setFlag(NodeSlotsGiven) }

// IsOversubscribed reports whether the mapper flagged this node
// oversubscribed during the most recent mapping call.
func (n *Node) IsOversubscribed() bool { return n.hasFlag(NodeOversubscribed) }

// Proc is one mapped process: the output unit of every mapper variant.
type Proc struct {
	Node   *Node
	AppIdx int
	VPID   uint32
	Locale Obj
}

// JobMap is the accumulated mapping result for a Job.
type JobMap struct {
	Nodes    []*Node
	NumNodes int
	Mapping  MappingPolicy
	Procs    []*Proc
}

// Job is the mapping invocation's target: the spec's distillation of the
// global prrte_job_t down to what the round-robin mapper touches.
type Job struct {
	JobID          uint32
	Map            JobMap
	Originator     procid.ProcId
	BookmarkObj    uint32
	BookmarkNode   *Node
	Oversubscribed bool

	nextVPID uint32
}

// NewJob builds a Job with no comm_spawn originator, the common case for
// an initial job launch. Use Job{...} directly with an explicit
// Originator to model a comm_spawn mapping call (§4.10 step 4).
func NewJob(jobID uint32, policy MappingPolicy) *Job {
	return &Job{
		JobID:      jobID,
		Originator: procid.Invalid,
		Map:        JobMap{Mapping: policy},
	}
}

// markMapped adds node to the job's map exactly once.
func (j *Job) markMapped(node *Node) {
	if node.hasFlag(NodeMapped) {
		return
	}
	node.setFlag(NodeMapped)
	j.Map.Nodes = append(j.Map.Nodes, node)
	j.Map.NumNodes++
}

// setupProc allocates and records one proc on node, mirroring
// prrte_rmaps_base_setup_proc: it consumes one slot and assigns the next
// vpid in job order.
func (j *Job) setupProc(node *Node, appIdx int) *Proc {
	p := &Proc{Node: node, AppIdx: appIdx, VPID: j.nextVPID}
	j.nextVPID++
	j.Map.Procs = append(j.Map.Procs, p)
	node.NumProcs++
	node.SlotsInuse++
	return p
}

// markOversubscribedIfNeeded sets the OVERSUBSCRIBED flag on node and job
// once node.NumProcs exceeds node.Slots, matching the source's per-node
// (not per-call) oversubscription check.
func (j *Job) markOversubscribedIfNeeded(node *Node) {
	if node.Slots < node.NumProcs {
		node.setFlag(NodeOversubscribed)
		j.Oversubscribed = true
	}
}

// AppContext is one application entry within a job: the process count a
// single mapper invocation is trying to place.
type AppContext struct {
	Idx      int
	AppName  string
	NumProcs uint32
}

// PolicyKind selects which mapper variant MappingPolicy drives.
type PolicyKind int

const (
	PolicyBySlot PolicyKind = iota
	PolicyByNode
	PolicyByObject
)

// MappingPolicy is the explicit replacement for the source's process-wide
// mapping options and framework singleton (§9, "Global state"): every
// directive bit and density knob the mapper consults is passed in here
// rather than read from global state.
type MappingPolicy struct {
	Policy     PolicyKind
	ObjType    ObjType
	CacheLevel uint

	NoOversubscribe bool
	SubscribeGiven  bool
	Span            bool

	// Density knobs, highest priority first: PerNode, then NPerNode, then
	// NPerSocket. Zero/false means "not set".
	PerNode    bool
	NPerNode   int
	NPerSocket int

	CPUsPerRank int
}

// numProcsToAssign applies the density-knob priority shared by every
// mapper variant (§4.8 step 1, §4.10 step 2): pernode, then nPerNode, then
// nPerSocket, else the fallback the caller supplies.
func (p MappingPolicy) numProcsToAssign(node *Node, fallback int) int {
	switch {
	case p.PerNode:
		return 1
	case p.NPerNode > 0:
		return p.NPerNode
	case p.NPerSocket > 0:
		return p.NPerSocket * packageCount(node)
	default:
		return fallback
	}
}

func packageCount(node *Node) int {
	if node.Topology == nil {
		return 0
	}
	return node.Topology.CountObjs(ObjPackage, 0)
}
