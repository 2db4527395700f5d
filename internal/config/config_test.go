package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anderbubble/prrte/pkg/mapper"
)

const sampleYAML = `
nodes:
  - name: node0
    slots: 4
    slotsGiven: true
  - name: node1
    slots: 4
    topology:
      packages: 2
      coresPerPackage: 4
      pusPerCore: 1
policy:
  policy: bynode
  noOversubscribe: false
apps:
  - name: app0
    numProcs: 6
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cluster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	return path
}

func TestLoadAndConvert(t *testing.T) {
	path := writeSample(t)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Nodes, 2)
	assert.Equal(t, "app0", cfg.Apps[0].Name)

	policy, err := cfg.MappingPolicy()
	require.NoError(t, err)
	assert.Equal(t, mapper.PolicyByNode, policy.Policy)

	nodes := cfg.BuildNodes()
	require.Len(t, nodes, 2)
	assert.True(t, nodes[0].IsOversubscribed() == false)
	assert.Nil(t, nodes[0].Topology)
	require.NotNil(t, nodes[1].Topology)
	assert.Equal(t, 2, nodes[1].Topology.CountObjs(mapper.ObjPackage, 0))

	apps := cfg.AppContexts()
	require.Len(t, apps, 1)
	assert.Equal(t, uint32(6), apps[0].NumProcs)
}

func TestMappingPolicyUnknownObjType(t *testing.T) {
	cfg := &Config{Policy: PolicyConfig{Policy: "byobject", ObjType: "nonsense"}}
	_, err := cfg.MappingPolicy()
	assert.Error(t, err)
}
