package oob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anderbubble/prrte/pkg/procid"
)

func TestPeersSnapshot(t *testing.T) {
	deliverer := &fakeDeliverer{}
	loop := newFakeEventLoop()
	table := newTestTable(deliverer, &fakeDialer{}, &fakeHandshaker{status: StatusDone}, loop)

	a := procid.ProcId{JobID: 1, VPID: 1}
	b := procid.ProcId{JobID: 1, VPID: 2}
	table.getOrCreate(a)
	table.getOrCreate(b)

	peers := table.Peers()
	require.Len(t, peers, 2)
	names := map[procid.ProcId]bool{}
	for _, p := range peers {
		name, state := p.Snapshot()
		names[name] = true
		assert.Equal(t, PeerClosed, state)
	}
	assert.True(t, names[a])
	assert.True(t, names[b])
}

func TestSweepClosedDropsOnlyIdleClosedPeers(t *testing.T) {
	deliverer := &fakeDeliverer{}
	loop := newFakeEventLoop()
	table := newTestTable(deliverer, &fakeDialer{}, &fakeHandshaker{status: StatusDone}, loop)

	idle := table.getOrCreate(procid.ProcId{JobID: 1, VPID: 1})
	idle.State = PeerClosed

	busy := table.getOrCreate(procid.ProcId{JobID: 1, VPID: 2})
	busy.State = PeerClosed
	busy.sendQueue = []*SendRequest{{}}

	connected := table.getOrCreate(procid.ProcId{JobID: 1, VPID: 3})
	connected.State = PeerConnected

	dropped := table.SweepClosed()
	assert.Equal(t, 1, dropped)

	_, ok := table.Get(procid.ProcId{JobID: 1, VPID: 1})
	assert.False(t, ok)
	_, ok = table.Get(procid.ProcId{JobID: 1, VPID: 2})
	assert.True(t, ok)
	_, ok = table.Get(procid.ProcId{JobID: 1, VPID: 3})
	assert.True(t, ok)
}

func TestShutdownClosesLivePeers(t *testing.T) {
	ctx := context.Background()
	deliverer := &fakeDeliverer{}
	loop := newFakeEventLoop()
	table := newTestTable(deliverer, &fakeDialer{}, &fakeHandshaker{status: StatusDone}, loop)

	live := table.getOrCreate(procid.ProcId{JobID: 1, VPID: 1})
	live.State = PeerConnected
	live.Conn = newFakeConn()

	alreadyClosed := table.getOrCreate(procid.ProcId{JobID: 1, VPID: 2})
	alreadyClosed.State = PeerClosed

	err := table.Shutdown(ctx)
	assert.NoError(t, err)

	_, state := live.Snapshot()
	assert.Equal(t, PeerClosed, state)
}
