package quantas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// P1: correct peers that both decided a message-id agree on its body.
func TestSafetyCorrectPeersAgreeOnDecidedBody(t *testing.T) {
	cfg := PBFTConfig{FaultTolerance: 0, RoundsToRequest: 1, RequestsPerRound: 1}
	net, peers := buildFlatNetwork(t, 4, cfg)
	stepRounds(net, 10)

	var reference *ConsensusMessage
	for _, p := range peers {
		for _, entry := range p.Ledger() {
			if reference == nil {
				b := entry.Body
				reference = &b
				continue
			}
			assert.True(t, reference.Equal(entry.Body))
		}
	}
	require.NotNil(t, reference)
}

// P2: across all correct peers, a given message-id has exactly one creator.
func TestOnePreprepareCreatorPerMessageID(t *testing.T) {
	cfg := PBFTConfig{FaultTolerance: 0, RoundsToRequest: 1, RequestsPerRound: 1}
	net, peers := buildFlatNetwork(t, 4, cfg)
	stepRounds(net, 10)

	creators := make(map[string]PeerID)
	for id, p := range peers {
		for msgID, entry := range p.Ledger() {
			if existing, ok := creators[msgID]; ok {
				assert.Equal(t, existing, entry.Body.CreatorID)
			} else {
				creators[msgID] = entry.Body.CreatorID
			}
			_ = id
		}
	}
}

// P5: free and busy groups always partition the full group set.
func TestGroupPartitionInvariantHolds(t *testing.T) {
	_, peers := buildShardedNetwork(t, 16, 4, ShardedConfig{FaultTolerance: 0})
	groups := FormGroups(peers, sortedCopy(peerIDKeys(peers)), 4)
	rc := NewReferenceCommittee(peers, groups, 4, 0, 0, &fixedRand{seq: []float64{0.9, 0.1, 0.9, 0.1}})

	for round := 0; round < 4; round++ {
		rc.Submit(round)
		rc.MakeRequest(round)
		rc.UpdateBusy()

		all := make(map[GroupID]bool)
		for _, gid := range rc.FreeGroups() {
			assert.False(t, all[gid], "group double counted")
			all[gid] = true
		}
		for _, gid := range rc.BusyGroups() {
			assert.False(t, all[gid], "group in both free and busy")
			all[gid] = true
		}
		assert.Len(t, all, len(rc.groupIDs))
	}
}

// Scenario 6: crashing the primary drives every correct peer's voteChange
// to true by round maxWait+1, with no ledger entries decided.
func TestScenarioSixPrimaryCrashTriggersViewChange(t *testing.T) {
	cfg := PBFTConfig{FaultTolerance: 0, RoundsToRequest: 1, RequestsPerRound: 1}
	net, peers := buildFlatNetwork(t, 4, cfg)

	bn := NewByzantineNetwork(net)
	bn.infectOne(0, Infection(Crash))

	maxWait := peers[1].maxWait
	stepRounds(net, maxWait+1)

	for id, p := range peers {
		if id == 0 {
			continue
		}
		assert.True(t, p.VoteChange(), "peer %d should have voted for a view change", id)
		assert.Equal(t, 0, p.LedgerSize())
	}
}

// Scenario 1: with no byzantine peers and roundsToRequest = 5 over 20
// rounds, the primary issues 4 requests (rounds 5, 10, 15, 20); every
// correct peer should have decided at least the first 3, since the one
// issued in round 20 cannot complete before the trial ends.
func TestScenarioOneDecisionCountLowerBound(t *testing.T) {
	cfg := PBFTConfig{FaultTolerance: 0.25, RoundsToRequest: 5, RequestsPerRound: 1}
	net, peers := buildFlatNetwork(t, 4, cfg)
	stepRounds(net, 20)

	for id, p := range peers {
		assert.GreaterOrEqualf(t, p.LedgerSize(), 3, "peer %d decided too few requests", id)
	}
}

// P6: equivocate100 (p=1.0, always multicast) is indistinguishable from
// default broadcast for a correct quorum's decided ledgers.
func TestEquivocate100MatchesDefaultBroadcastOutcome(t *testing.T) {
	baselineCfg := PBFTConfig{FaultTolerance: 0.2, RoundsToRequest: 1, RequestsPerRound: 1}
	baseNet, basePeers := buildFlatNetwork(t, 7, baselineCfg)
	stepRounds(baseNet, 15)

	infNet, infPeers := buildFlatNetwork(t, 7, baselineCfg)
	bn := NewByzantineNetwork(infNet)
	inf, ok := InfectionRegistry("equivocate100")
	require.True(t, ok)
	bn.infectOne(1, inf) // avoid the primary (peer 0): an infected primary never requests
	stepRounds(infNet, 15)

	for id, p := range basePeers {
		if id == PeerID(1) {
			continue
		}
		assert.Greater(t, p.LedgerSize(), 0)
		assert.Greater(t, infPeers[id].LedgerSize(), 0)
	}
}

// P4: liveness bound. A correct quorum with no byzantine peers must decide
// at least one request within maxWait + 3*max_delay rounds of the first
// preprepare.
func TestLivenessBoundHoldsForCorrectQuorum(t *testing.T) {
	cfg := PBFTConfig{FaultTolerance: 0, RoundsToRequest: 1, RequestsPerRound: 1}
	net, peers := buildFlatNetwork(t, 4, cfg)

	maxDelay := 1
	bound := peers[0].maxWait + 3*maxDelay
	stepRounds(net, bound)

	for id, p := range peers {
		assert.Greaterf(t, p.LedgerSize(), 0, "peer %d did not decide within the liveness bound", id)
	}
}

// Scenario 4: a request needing 3 groups arrives when only 2 are free;
// expect it to stay at the head of the queue until a running committee
// frees a group.
func TestScenarioFourBusyFreeCycleHoldsRequestAtQueueHead(t *testing.T) {
	_, peers := buildShardedNetwork(t, 20, 4, ShardedConfig{FaultTolerance: 0})
	groups := FormGroups(peers, sortedCopy(peerIDKeys(peers)), 4)
	rc := NewReferenceCommittee(peers, groups, 4, 3, 3, &fixedRand{seq: []float64{0.1, 0.1}})
	require.Len(t, rc.groupIDs, 5)

	rc.Submit(0)
	rc.MakeRequest(0)
	require.Len(t, rc.CurrentCommittees(), 1)
	require.Len(t, rc.FreeGroups(), 2)

	rc.Submit(0)
	rc.MakeRequest(0)
	assert.Equal(t, 1, rc.QueueLen(), "second request needs 3 groups but only 2 are free")
	assert.Len(t, rc.CurrentCommittees(), 1)

	for _, p := range peers {
		if p.CommitteeID() != noCommittee {
			p.ClearCommittee()
		}
	}
	rc.MakeRequest(0)
	assert.Equal(t, 0, rc.QueueLen(), "releasing the busy group should let the queued request form")
	assert.Len(t, rc.CurrentCommittees(), 1)
}
