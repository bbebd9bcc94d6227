package quantas

import "math/rand"

// Simulation drives one trial: a Network (flat PBFT) or a Network plus a
// ReferenceCommittee (sharded PBFT) through a fixed number of rounds,
// streaming one RoundRecord per round to the configured recorder and
// checking the invariants a careful reviewer of this protocol would check.
type Simulation struct {
	net       *ByzantineNetwork
	committee *ReferenceCommittee

	rounds       int
	sourcePool   int
	byzShuffle   int
	recorder     func(RoundRecord)

	submittedRequests int
}

// NewSimulation builds a flat-PBFT simulation: no controller, requests are
// emitted directly by each committee-less primary's own performComputation.
func NewSimulation(net *ByzantineNetwork, rounds int, byzShuffle int, recorder func(RoundRecord)) *Simulation {
	return &Simulation{net: net, rounds: rounds, byzShuffle: byzShuffle, recorder: recorder}
}

// NewShardedSimulation builds a sharded-PBFT simulation, additionally
// driven by a ReferenceCommittee controller that emits one new request per
// sourcePool rounds.
func NewShardedSimulation(net *ByzantineNetwork, committee *ReferenceCommittee, rounds, sourcePool, byzShuffle int, recorder func(RoundRecord)) *Simulation {
	return &Simulation{net: net, committee: committee, rounds: rounds, sourcePool: sourcePool, byzShuffle: byzShuffle, recorder: recorder}
}

// Run executes the full trial: for each round, advance the round counter,
// tick channels, receive, run performComputation on every peer, let the
// controller emit any pending request, run endOfRound, then record. This
// ordering follows the simulation loop description (round++, tick,
// receive, performComputation(all), controller, endOfRound, flush-log)
// rather than the network-topology description's ordering, since the
// controller needs every peer's post-round committee state before it can
// decide whether to form a new one.
func (s *Simulation) Run() (TrialResult, error) {
	result := TrialResult{}
	for round := 0; round < s.rounds; round++ {
		s.net.round++
		s.net.tickChannels()
		s.net.receiveAll()
		s.net.performComputationAll()

		if s.committee != nil {
			if s.sourcePool > 0 && round%s.sourcePool == 0 {
				s.committee.Submit(round)
			}
			s.committee.MakeRequest(round)
		}

		s.net.endOfRoundAll()

		if s.byzShuffle > 0 {
			s.net.ShuffleByzantines(s.byzShuffle)
		}

		rec := s.buildRoundRecord(round)
		if s.recorder != nil {
			s.recorder(rec)
		}

		if v := s.checkInvariants(round); v != nil {
			return result, v
		}

		if allVotedChange(s.net) {
			result.StuckEvents = append(result.StuckEvents, ProtocolStuck{Round: round})
		}
	}

	result.FinalLedgerSize = s.globalLedgerSize()
	return result, nil
}

func (s *Simulation) buildRoundRecord(round int) RoundRecord {
	rec := RoundRecord{Round: round}
	for _, id := range s.net.Peers() {
		pr := PeerRecord{ID: int(id), Byzantine: s.net.IsByzantine(id)}
		switch p := s.net.Peer(id).(type) {
		case *PBFTPeer:
			pr.LedgerSize = p.LedgerSize()
			pr.Phase = int(p.CurrentPhase())
			pr.VoteChange = p.VoteChange()
		case *ShardedPeer:
			pr.LedgerSize = p.LedgerSize()
			pr.Phase = int(p.CurrentPhase())
			pr.VoteChange = p.VoteChange()
		}
		rec.Peers = append(rec.Peers, pr)
	}
	if s.committee != nil {
		rec.FreeGroups = len(s.committee.FreeGroups())
		rec.BusyGroups = len(s.committee.BusyGroups())
		rec.QueueLen = s.committee.QueueLen()
		for _, cid := range s.committee.CurrentCommittees() {
			rec.Committees = append(rec.Committees, int(cid))
		}
	}
	return rec
}

// checkInvariants re-derives I1 (packet delay bounds) from every in-flight
// packet; the other invariants (I2..I6) are not checked here. A violation
// aborts only this trial.
func (s *Simulation) checkInvariants(round int) error {
	for _, from := range s.net.Peers() {
		for _, to := range s.net.Peers() {
			ch := s.net.channel(from, to)
			for _, pkt := range ch.inflight {
				if pkt.DelayRemaining < 0 || pkt.DelayRemaining > pkt.OriginalDelay {
					return &InvariantViolation{Tag: "I1", Round: round, State: pkt}
				}
			}
		}
	}
	return nil
}

func (s *Simulation) globalLedgerSize() int {
	if s.committee != nil {
		return s.committee.GlobalLedgerSize()
	}
	seen := make(map[string]bool)
	for _, id := range s.net.Peers() {
		if s.net.IsByzantine(id) {
			continue
		}
		if p, ok := s.net.Peer(id).(*PBFTPeer); ok {
			for msgID := range p.Ledger() {
				seen[msgID] = true
			}
		}
	}
	return len(seen)
}

// allVotedChange reports whether every correct peer's voteChange flag is
// simultaneously true, the ProtocolStuck condition.
func allVotedChange(net *ByzantineNetwork) bool {
	any := false
	for _, id := range net.Peers() {
		if net.IsByzantine(id) {
			continue
		}
		any = true
		switch p := net.Peer(id).(type) {
		case *PBFTPeer:
			if !p.VoteChange() {
				return false
			}
		case *ShardedPeer:
			if !p.VoteChange() {
				return false
			}
		}
	}
	return any
}

// newRand builds the private *rand.Rand each trial owns; no mutable RNG
// state is ever shared across trials.
func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
