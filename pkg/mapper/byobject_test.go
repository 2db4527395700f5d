package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anderbubble/prrte/pkg/procid"
)

func twoNodesTwoPackages() []*Node {
	return []*Node{
		{Name: "n0", Slots: 4, Topology: NewFakeTopology(2, 2, 1)},
		{Name: "n1", Slots: 4, Topology: NewFakeTopology(2, 2, 1)},
	}
}

func TestMapByObjectSpanScenario(t *testing.T) {
	nodes := twoNodesTwoPackages()
	job := NewJob(1, MappingPolicy{Policy: PolicyByObject, ObjType: ObjPackage, Span: true})
	app := &AppContext{Idx: 0, AppName: "a", NumProcs: 5}

	require.NoError(t, MapByObject(job, app, nodes, TotalSlots(nodes), ObjPackage, 0))

	var total uint32
	for _, n := range nodes {
		total += n.NumProcs
	}
	assert.Equal(t, app.NumProcs, total)

	counts := countsByObj(t, job)
	assert.Len(t, counts, 4, "all four packages should receive at least one proc")
	two, one := 0, 0
	for _, c := range counts {
		switch c {
		case 2:
			two++
		case 1:
			one++
		default:
			t.Fatalf("unexpected per-object proc count %d", c)
		}
	}
	assert.Equal(t, 1, two, "exactly one package should receive the extra proc (5 mod 4 == 1)")
	assert.Equal(t, 3, one)
	assert.Same(t, nodes[len(nodes)-1], job.BookmarkNode)
}

func TestMapByObjectNoSpanFrontLoads(t *testing.T) {
	nodes := twoNodesTwoPackages() // 4 slots/node, 2 packages/node
	job := NewJob(1, MappingPolicy{Policy: PolicyByObject, ObjType: ObjPackage})
	app := &AppContext{Idx: 0, AppName: "a", NumProcs: 4}

	require.NoError(t, MapByObject(job, app, nodes, TotalSlots(nodes), ObjPackage, 0))

	assert.Equal(t, uint32(4), nodes[0].NumProcs, "no-span fills the first node before moving on")
	assert.Equal(t, uint32(0), nodes[1].NumProcs)
}

func TestMapByObjectMissingTopologyIsSilentError(t *testing.T) {
	nodes := []*Node{{Name: "n0", Slots: 4}}
	job := NewJob(1, MappingPolicy{Policy: PolicyByObject, ObjType: ObjPackage})
	app := &AppContext{Idx: 0, AppName: "a", NumProcs: 2}

	err := MapByObject(job, app, nodes, TotalSlots(nodes), ObjPackage, 0)
	assert.ErrorIs(t, err, ErrSilent)
}

func TestMapByObjectSpawnStartsAfterBookmark(t *testing.T) {
	node := &Node{Name: "n0", Slots: 8, Topology: NewFakeTopology(4, 1, 1)}
	job := NewJob(1, MappingPolicy{Policy: PolicyByObject, ObjType: ObjPackage})
	job.Originator = procid.ProcId{JobID: 7, VPID: 0}
	job.BookmarkObj = 1 // parent last used package index 1; spawn should start at 2
	app := &AppContext{Idx: 0, AppName: "a", NumProcs: 1}

	require.NoError(t, MapByObject(job, app, []*Node{node}, TotalSlots([]*Node{node}), ObjPackage, 0))

	require.Len(t, job.Map.Procs, 1)
	want, ok := node.Topology.GetObj(ObjPackage, 0, 2)
	require.True(t, ok)
	assert.Equal(t, want, job.Map.Procs[0].Locale)
}

func countsByObj(t *testing.T, job *Job) map[Obj]int {
	t.Helper()
	counts := make(map[Obj]int)
	for _, p := range job.Map.Procs {
		counts[p.Locale]++
	}
	return counts
}
