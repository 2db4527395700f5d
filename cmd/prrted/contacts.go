package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/anderbubble/prrte/pkg/procid"
)

// contactsDoc is the on-disk shape of the static peer address book serve
// resolves outbound dials against. The OOB handshake that would normally
// let a node learn a peer's identity and contact info from the RML is out
// of scope for this module (SPEC_FULL.md §1), so this file stands in for
// that exchange in the demo.
type contactsDoc struct {
	Peers []struct {
		JobID uint32 `yaml:"jobId"`
		VPID  uint32 `yaml:"vpid"`
		Addr  string `yaml:"addr"`
	} `yaml:"peers"`
}

// loadContacts reads a contacts file into a ProcId->"host:port" lookup
// suitable for oob.NewRawDialer.
func loadContacts(path string) (map[procid.ProcId]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("contacts: read %s: %w", path, err)
	}
	var doc contactsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("contacts: parse %s: %w", path, err)
	}
	out := make(map[procid.ProcId]string, len(doc.Peers))
	for _, p := range doc.Peers {
		out[procid.ProcId{JobID: p.JobID, VPID: p.VPID}] = p.Addr
	}
	return out, nil
}
