package quantas

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFlatNetwork(t *testing.T, n int, cfg PBFTConfig) (*Network, map[PeerID]*PBFTPeer) {
	t.Helper()
	net := NewNetwork(DelayOne, 1, 1, 1, rand.New(rand.NewSource(1)))
	net.InitNetwork(n, func(id PeerID, nw *Network) Peer {
		return NewPBFTPeer(id, nw, cfg)
	})
	peers := make(map[PeerID]*PBFTPeer, n)
	for _, id := range net.Peers() {
		p := net.Peer(id).(*PBFTPeer)
		p.finalizeSetup()
		peers[id] = p
	}
	SetPrimaryPBFT(peers, 0)
	return net, peers
}

func stepRounds(net *Network, rounds int) {
	for i := 0; i < rounds; i++ {
		net.round++
		net.tickChannels()
		net.receiveAll()
		net.performComputationAll()
		net.endOfRoundAll()
	}
}

func TestFlatPBFTAllCorrectPeersDecide(t *testing.T) {
	cfg := PBFTConfig{FaultTolerance: 0, RoundsToRequest: 1, RequestsPerRound: 1}
	net, peers := buildFlatNetwork(t, 4, cfg)

	stepRounds(net, 10)

	for id, p := range peers {
		assert.Greaterf(t, p.LedgerSize(), 0, "peer %d never decided", id)
	}
}

func TestFlatPBFTLedgerNeverShrinks(t *testing.T) {
	cfg := PBFTConfig{FaultTolerance: 0, RoundsToRequest: 1, RequestsPerRound: 1}
	net, peers := buildFlatNetwork(t, 4, cfg)

	last := 0
	for i := 0; i < 12; i++ {
		stepRounds(net, 1)
		size := peers[0].LedgerSize()
		require.GreaterOrEqual(t, size, last)
		last = size
	}
}

func TestByzantineCrashPeerNeverDecides(t *testing.T) {
	cfg := PBFTConfig{FaultTolerance: 0.2, RoundsToRequest: 1, RequestsPerRound: 1}
	net, peers := buildFlatNetwork(t, 7, cfg)

	bn := NewByzantineNetwork(net)
	bn.MakeByzantines(1, Infection(Crash))
	crashed := bn.Byzantine()
	require.Len(t, crashed, 1)

	stepRounds(net, 15)

	assert.Equal(t, 0, peers[crashed[0]].LedgerSize())

	for id, p := range peers {
		if id == crashed[0] {
			continue
		}
		assert.Greater(t, p.LedgerSize(), 0)
	}
}

func TestViewCounterResetsOnArrivalElseVotesChange(t *testing.T) {
	cfg := PBFTConfig{FaultTolerance: 0, RoundsToRequest: 1000000, RequestsPerRound: 1}
	net, peers := buildFlatNetwork(t, 4, cfg)

	stepRounds(net, 10)

	found := false
	for _, p := range peers {
		if p.VoteChange() {
			found = true
		}
	}
	assert.True(t, found, "expected at least one peer to vote for a view change when the primary never requests")
}
