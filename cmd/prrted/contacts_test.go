package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anderbubble/prrte/pkg/procid"
)

const sampleContacts = `
peers:
  - jobId: 1
    vpid: 0
    addr: 10.0.0.1:7777
  - jobId: 1
    vpid: 1
    addr: 10.0.0.2:7777
`

func TestLoadContacts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contacts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleContacts), 0o644))

	addrs, err := loadContacts(path)
	require.NoError(t, err)

	require.Len(t, addrs, 2)
	assert.Equal(t, "10.0.0.1:7777", addrs[procid.ProcId{JobID: 1, VPID: 0}])
	assert.Equal(t, "10.0.0.2:7777", addrs[procid.ProcId{JobID: 1, VPID: 1}])
}

func TestLoadContactsMissingFile(t *testing.T) {
	_, err := loadContacts(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestJobIDFromUUID(t *testing.T) {
	id := uuid.New()
	got := jobIDFromUUID(id)
	want := binary.BigEndian.Uint32(id[:4])
	assert.Equal(t, want, got)
}
