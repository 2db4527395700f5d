// Package procid defines the process-identity and wire-header types shared
// by the OOB transport and the resource mapper.
package procid

import "fmt"

// ProcId names a single process within a job: the job that spawned it and
// its rank (vpid) within that job. It is a plain comparable value so it can
// be used directly as a map key, the way connpool.ConnID is used in the
// teacher's connection pool.
type ProcId struct {
	JobID uint32
	VPID  uint32
}

// Invalid is the sentinel ProcId. A zero-value ProcId is ambiguous with a
// legitimate job 0 / vpid 0, so Invalid uses the all-ones pattern instead.
var Invalid = ProcId{JobID: 0xffffffff, VPID: 0xffffffff}

// IsInvalid reports whether p is the sentinel.
func (p ProcId) IsInvalid() bool {
	return p == Invalid
}

func (p ProcId) String() string {
	if p.IsInvalid() {
		return "proc:INVALID"
	}
	return fmt.Sprintf("proc:[%d,%d]", p.JobID, p.VPID)
}
