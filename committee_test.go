package quantas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRand struct {
	seq []float64
	i   int
}

func (f *fixedRand) Float64() float64 {
	if f.i >= len(f.seq) {
		return 1
	}
	v := f.seq[f.i]
	f.i++
	return v
}

func buildShardedNetwork(t *testing.T, n, groupSize int, cfg ShardedConfig) (*Network, map[PeerID]*ShardedPeer) {
	t.Helper()
	net := NewNetwork(DelayOne, 1, 1, 1, nil)
	net.InitNetwork(n, func(id PeerID, nw *Network) Peer {
		return NewShardedPeer(id, nw, cfg)
	})
	peers := make(map[PeerID]*ShardedPeer, n)
	for _, id := range net.Peers() {
		p := net.Peer(id).(*ShardedPeer)
		p.finalizeSetup()
		peers[id] = p
	}
	return net, peers
}

func TestFormGroupsPartitionsEvenly(t *testing.T) {
	_, peers := buildShardedNetwork(t, 8, 4, ShardedConfig{})
	groups := FormGroups(peers, sortedCopy(peerIDKeys(peers)), 4)

	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 4)
	assert.Len(t, groups[1], 4)
	for _, p := range peers {
		assert.Contains(t, []GroupID{0, 1}, p.GroupID())
	}
}

func peerIDKeys(m map[PeerID]*ShardedPeer) []PeerID {
	out := make([]PeerID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

func TestDeriveSecurityLevelsHalvesDownFromL5(t *testing.T) {
	levels := deriveSecurityLevels(16, 0, 0)
	assert.Equal(t, 16, levels[4])
	assert.Equal(t, 8, levels[3])
	assert.Equal(t, 4, levels[2])
	assert.Equal(t, 2, levels[1])
	assert.Equal(t, 1, levels[0])
}

func TestSampleSecurityLevelSaturatesAtL5OnAllTails(t *testing.T) {
	_, peers := buildShardedNetwork(t, 16, 4, ShardedConfig{})
	groups := FormGroups(peers, sortedCopy(peerIDKeys(peers)), 4)
	rc := NewReferenceCommittee(peers, groups, 4, 0, 0, &fixedRand{seq: []float64{0.9, 0.9, 0.9, 0.9}})

	level := rc.sampleSecurityLevel()
	assert.Equal(t, rc.levels[4], level)
}

func TestSampleSecurityLevelPicksL1OnImmediateHead(t *testing.T) {
	_, peers := buildShardedNetwork(t, 16, 4, ShardedConfig{})
	groups := FormGroups(peers, sortedCopy(peerIDKeys(peers)), 4)
	rc := NewReferenceCommittee(peers, groups, 4, 0, 0, &fixedRand{seq: []float64{0.1}})

	level := rc.sampleSecurityLevel()
	assert.Equal(t, rc.levels[0], level)
}

func TestMakeRequestFormsCommitteeWhenEnoughFreeGroups(t *testing.T) {
	_, peers := buildShardedNetwork(t, 16, 4, ShardedConfig{FaultTolerance: 0})
	groups := FormGroups(peers, sortedCopy(peerIDKeys(peers)), 4)
	rc := NewReferenceCommittee(peers, groups, 4, 0, 0, &fixedRand{seq: []float64{0.1}})

	rc.Submit(0)
	rc.MakeRequest(0)

	assert.Len(t, rc.CurrentCommittees(), 1)
	assert.Len(t, rc.FreeGroups(), len(rc.groupIDs)-1)
}

func TestMakeRequestStaysQueuedWhenNotEnoughFreeGroups(t *testing.T) {
	_, peers := buildShardedNetwork(t, 8, 4, ShardedConfig{})
	groups := FormGroups(peers, sortedCopy(peerIDKeys(peers)), 4)
	rc := NewReferenceCommittee(peers, groups, 4, 0, 0, &fixedRand{seq: []float64{0.9, 0.9}})

	// Only 2 groups exist; the first request's all-tails draw saturates at
	// L5 == 2 and takes both, leaving none free for the second request.
	rc.Submit(0)
	rc.MakeRequest(0)
	require.Len(t, rc.CurrentCommittees(), 1)

	rc.Submit(0)
	rc.MakeRequest(0)
	assert.Equal(t, 1, rc.QueueLen())
}

func TestUpdateBusyReturnsGroupsWhenCommitteeCleared(t *testing.T) {
	_, peers := buildShardedNetwork(t, 8, 4, ShardedConfig{})
	groups := FormGroups(peers, sortedCopy(peerIDKeys(peers)), 4)
	rc := NewReferenceCommittee(peers, groups, 4, 0, 0, &fixedRand{seq: []float64{0.1}})

	rc.Submit(0)
	rc.MakeRequest(0)
	require.Len(t, rc.BusyGroups(), 1)

	for _, p := range peers {
		p.ClearCommittee()
	}
	rc.UpdateBusy()

	assert.Empty(t, rc.BusyGroups())
	assert.Len(t, rc.FreeGroups(), len(rc.groupIDs))
}
