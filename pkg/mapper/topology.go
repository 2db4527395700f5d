package mapper

// ObjType is the subset of hwloc_obj_type_t the round-robin mapper
// consults: the machine root and the by-object targets §4.10/§4.11 name.
type ObjType int

const (
	ObjMachine ObjType = iota
	ObjPackage
	ObjCore
	ObjPU
	ObjL3Cache
	ObjL2Cache
	ObjNUMANode
)

func (t ObjType) String() string {
	switch t {
	case ObjMachine:
		return "Machine"
	case ObjPackage:
		return "Package"
	case ObjCore:
		return "Core"
	case ObjPU:
		return "PU"
	case ObjL3Cache:
		return "L3Cache"
	case ObjL2Cache:
		return "L2Cache"
	case ObjNUMANode:
		return "NUMANode"
	default:
		return "Unknown"
	}
}

// Obj is an opaque handle to a topology object, attached to a Proc as its
// HWLOC_LOCALE. The zero value is a valid "no object" sentinel.
type Obj struct {
	id int
}

var noObj = Obj{}

// IsZero reports whether this Obj is the "no object" sentinel.
func (o Obj) IsZero() bool { return o == noObj }

// Topology answers the object-count and object-lookup queries the mapper
// needs (§6, "Mapper boundary (consumed)"). A real implementation wraps
// hwloc; FakeTopology below is the in-memory stand-in used by tests.
type Topology interface {
	CountObjs(objType ObjType, cacheLevel uint) int
	GetObj(objType ObjType, cacheLevel uint, index int) (Obj, bool)
	NPUs(obj Obj) int
	RootObj() Obj
}

// FakeTopology is a small in-memory Topology for tests: it models a node
// with a fixed package count, each with a fixed core count, and a uniform
// per-core PU count, without touching real hwloc.
type FakeTopology struct {
	packages    int
	coresPerPkg int
	pusPerCore  int
	serial      int
}

var fakeTopologySerial int

// NewFakeTopology builds a FakeTopology for a node with the given package
// and per-package core counts; each core reports pusPerCore PUs. Each
// call gets a distinct serial so Obj values from different nodes' fake
// topologies never collide, even when the nodes are configured alike.
func NewFakeTopology(packages, coresPerPkg, pusPerCore int) *FakeTopology {
	fakeTopologySerial++
	return &FakeTopology{packages: packages, coresPerPkg: coresPerPkg, pusPerCore: pusPerCore, serial: fakeTopologySerial}
}

func (f *FakeTopology) CountObjs(objType ObjType, cacheLevel uint) int {
	switch objType {
	case ObjMachine:
		return 1
	case ObjPackage:
		return f.packages
	case ObjCore:
		return f.packages * f.coresPerPkg
	case ObjPU:
		return f.packages * f.coresPerPkg * f.pusPerCore
	default:
		return 0
	}
}

func (f *FakeTopology) GetObj(objType ObjType, cacheLevel uint, index int) (Obj, bool) {
	n := f.CountObjs(objType, cacheLevel)
	if index < 0 || index >= n {
		return Obj{}, false
	}
	// Encode a stable, distinguishable id per (topology, type, index)
	// triple so tests can assert which object on which node a proc
	// landed on.
	return Obj{id: f.serial*1_000_000_000 + int(objType)*1_000_000 + index}, true
}

func (f *FakeTopology) NPUs(obj Obj) int {
	return f.pusPerCore
}

func (f *FakeTopology) RootObj() Obj {
	return Obj{id: f.serial*1_000_000_000 + int(ObjMachine)*1_000_000}
}
