// Package config loads the cluster allocation and mapping policy a
// prrted run maps against from a YAML file, using gopkg.in/yaml.v3 the
// way the rest of this module's ambient stack favors the teacher's
// dependency set over hand-rolled parsing.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/anderbubble/prrte/pkg/mapper"
)

// TopologyConfig describes one node's fake hardware topology: packages,
// cores per package, and PUs (hardware threads) per core.
type TopologyConfig struct {
	Packages    int `yaml:"packages"`
	CoresPerPkg int `yaml:"coresPerPackage"`
	PUsPerCore  int `yaml:"pusPerCore"`
}

// NodeConfig describes one allocation entry.
type NodeConfig struct {
	Name       string          `yaml:"name"`
	Slots      uint32          `yaml:"slots"`
	SlotsGiven bool            `yaml:"slotsGiven"`
	Topology   *TopologyConfig `yaml:"topology,omitempty"`
}

// PolicyConfig mirrors mapper.MappingPolicy in a YAML-friendly shape:
// string enums instead of mapper's int-backed PolicyKind/ObjType.
type PolicyConfig struct {
	Policy          string `yaml:"policy"` // "byslot" | "bynode" | "byobject"
	ObjType         string `yaml:"objType,omitempty"`
	CacheLevel      uint   `yaml:"cacheLevel,omitempty"`
	NoOversubscribe bool   `yaml:"noOversubscribe"`
	SubscribeGiven  bool   `yaml:"subscribeGiven"`
	Span            bool   `yaml:"span"`
	PerNode         bool   `yaml:"perNode"`
	NPerNode        int    `yaml:"nPerNode,omitempty"`
	NPerSocket      int    `yaml:"nPerSocket,omitempty"`
	CPUsPerRank     int    `yaml:"cpusPerRank,omitempty"`
}

// AppConfig describes one AppContext to map.
type AppConfig struct {
	Name     string `yaml:"name"`
	NumProcs uint32 `yaml:"numProcs"`
}

// Config is the top-level document: an allocation, a mapping policy, and
// the app contexts to map against it.
type Config struct {
	Nodes  []NodeConfig `yaml:"nodes"`
	Policy PolicyConfig `yaml:"policy"`
	Apps   []AppConfig  `yaml:"apps"`
}

// Load reads and parses a cluster/policy YAML document from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// MappingPolicy converts the YAML policy document into mapper.MappingPolicy.
func (c *Config) MappingPolicy() (mapper.MappingPolicy, error) {
	p := mapper.MappingPolicy{
		NoOversubscribe: c.Policy.NoOversubscribe,
		SubscribeGiven:  c.Policy.SubscribeGiven,
		Span:            c.Policy.Span,
		PerNode:         c.Policy.PerNode,
		NPerNode:        c.Policy.NPerNode,
		NPerSocket:      c.Policy.NPerSocket,
		CPUsPerRank:     c.Policy.CPUsPerRank,
		CacheLevel:      c.Policy.CacheLevel,
	}
	switch c.Policy.Policy {
	case "byslot", "":
		p.Policy = mapper.PolicyBySlot
	case "bynode":
		p.Policy = mapper.PolicyByNode
	case "byobject":
		p.Policy = mapper.PolicyByObject
		objType, err := parseObjType(c.Policy.ObjType)
		if err != nil {
			return mapper.MappingPolicy{}, err
		}
		p.ObjType = objType
	default:
		return mapper.MappingPolicy{}, fmt.Errorf("config: unknown policy %q", c.Policy.Policy)
	}
	return p, nil
}

func parseObjType(s string) (mapper.ObjType, error) {
	switch s {
	case "machine":
		return mapper.ObjMachine, nil
	case "package", "":
		return mapper.ObjPackage, nil
	case "core":
		return mapper.ObjCore, nil
	case "pu":
		return mapper.ObjPU, nil
	case "l3cache":
		return mapper.ObjL3Cache, nil
	case "l2cache":
		return mapper.ObjL2Cache, nil
	case "numanode":
		return mapper.ObjNUMANode, nil
	default:
		return 0, fmt.Errorf("config: unknown object type %q", s)
	}
}

// BuildNodes builds mapper.Node values from the config, attaching a
// FakeTopology to any node that declares one.
func (c *Config) BuildNodes() []*mapper.Node {
	nodes := make([]*mapper.Node, len(c.Nodes))
	for i, nc := range c.Nodes {
		n := &mapper.Node{Name: nc.Name, Slots: nc.Slots}
		if nc.SlotsGiven {
			n.MarkSlotsGiven()
		}
		if nc.Topology != nil {
			n.Topology = mapper.NewFakeTopology(nc.Topology.Packages, nc.Topology.CoresPerPkg, nc.Topology.PUsPerCore)
		}
		nodes[i] = n
	}
	return nodes
}

// AppContexts builds mapper.AppContext values from the config.
func (c *Config) AppContexts() []*mapper.AppContext {
	apps := make([]*mapper.AppContext, len(c.Apps))
	for i, ac := range c.Apps {
		apps[i] = &mapper.AppContext{Idx: i, AppName: ac.Name, NumProcs: ac.NumProcs}
	}
	return apps
}
