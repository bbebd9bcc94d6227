package quantas

import "strconv"

// Phase names the PBFT peer's current position in the preprepare -> prepare
// -> commit -> reply pipeline for whatever message it is currently acting
// on.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePrePrepare
	PhasePrepare
	PhaseCommit
	PhaseReply
)

// ledgerEntry records the round at which a message-id was decided and the
// decided body, so Safety (P1) can be checked by comparing bodies across
// peers.
type ledgerEntry struct {
	Round int
	Body  ConsensusMessage
}

// PBFTPeer implements the flat-quorum PBFT state machine of spec section
// 4.6: every peer participates in a single, network-wide quorum.
type PBFTPeer struct {
	NetworkInterface
	Behavior

	byzantine bool
	isPrimary bool

	faultTolerance      float64
	roundsToRequest     int
	requestsPerRound    int
	remainingRounds     int
	maxWait             int
	normalizeThresholds bool

	viewCounter int
	voteChange  bool
	view        int
	phase       Phase
	localRound  int
	messageCounter int

	seenPrePrepare map[string]bool
	prepareSent    map[string]bool
	commitSent     map[string]bool
	replySent      map[string]bool
	recvCount      map[string]map[MessageType]int

	ledger map[string]ledgerEntry
}

// PBFTConfig carries the scenario-derived parameters for one PBFT peer.
type PBFTConfig struct {
	FaultTolerance      float64
	RoundsToRequest     int
	RequestsPerRound    int
	NormalizeThresholds bool
}

// NewPBFTPeer constructs a correct, non-primary peer with default behavior
// slots. Network.InitNetwork calls this once per id.
func NewPBFTPeer(id PeerID, net *Network, cfg PBFTConfig) *PBFTPeer {
	p := &PBFTPeer{
		NetworkInterface: newNetworkInterface(id, net),
		faultTolerance:   cfg.FaultTolerance,
		roundsToRequest:  cfg.RoundsToRequest,
		requestsPerRound: cfg.RequestsPerRound,
		normalizeThresholds: cfg.NormalizeThresholds,
		seenPrePrepare:   make(map[string]bool),
		prepareSent:      make(map[string]bool),
		commitSent:       make(map[string]bool),
		replySent:        make(map[string]bool),
		recvCount:        make(map[string]map[MessageType]int),
		ledger:           make(map[string]ledgerEntry),
	}
	if p.roundsToRequest <= 0 {
		p.roundsToRequest = 1
	}
	p.resetDefaultBehavior()
	return p
}

func (p *PBFTPeer) resetDefaultBehavior() {
	p.ComputeStep = p.defaultComputation
	p.SubmitTrans = func(tranID int) {}
	p.Send = p.defaultSend
}

// Behaviors implements Infectable.
func (p *PBFTPeer) Behaviors() *Behavior { return &p.Behavior }

// IsByzantine implements Infectable and Peer.
func (p *PBFTPeer) IsByzantine() bool { return p.byzantine }

// SetByzantine implements Infectable.
func (p *PBFTPeer) SetByzantine(v bool) { p.byzantine = v }

// finalizeSetup must be called once every neighbor has been added: it
// derives maxWait from the peer's own outgoing link delays.
func (p *PBFTPeer) finalizeSetup() {
	max := 0
	for _, d := range p.neighbors {
		if d > max {
			max = d
		}
	}
	p.maxWait = max + 1
}

// SetPrimaryPBFT marks exactly one peer in the given set as primary,
// clearing the flag on every other peer and resetting every peer's idle
// counter and pending view-change vote. The set is owned by the
// Network, not by any one peer, per the no-cyclic-ownership design note.
func SetPrimaryPBFT(peers map[PeerID]*PBFTPeer, primary PeerID) {
	for id, p := range peers {
		p.isPrimary = id == primary
		p.viewCounter = 0
		p.voteChange = false
	}
}

// IsPrimary reports whether this peer currently believes itself primary.
func (p *PBFTPeer) IsPrimary() bool { return p.isPrimary }

// VoteChange reports whether this peer has been idle long enough to have
// voted for a view change.
func (p *PBFTPeer) VoteChange() bool { return p.voteChange }

// CurrentPhase returns the peer's current protocol phase (for logging).
func (p *PBFTPeer) CurrentPhase() Phase { return p.phase }

// LedgerSize returns the number of decided entries.
func (p *PBFTPeer) LedgerSize() int { return len(p.ledger) }

// Ledger returns a copy of the decided message-id -> (round, body) map.
func (p *PBFTPeer) Ledger() map[string]ledgerEntry {
	out := make(map[string]ledgerEntry, len(p.ledger))
	for k, v := range p.ledger {
		out[k] = v
	}
	return out
}

func (p *PBFTPeer) quorumSize() int {
	return len(p.neighborOrder) + 1
}

// PerformComputation implements Peer: one round of the state machine.
func (p *PBFTPeer) PerformComputation() {
	p.ComputeStep()
}

// defaultComputation is the state machine described in spec 4.6, grounded
// on original_source/BlockGuard/MarkPBFT_peer.cpp's makeRequest.
func (p *PBFTPeer) defaultComputation() {
	p.localRound++

	if p.byzantine {
		p.filterByzantineInbound()
	}

	if p.isPrimary && !p.byzantine {
		p.remainingRounds++
		if p.remainingRounds >= p.roundsToRequest {
			for i := 0; i < p.requestsPerRound; i++ {
				p.emitPrePrepare()
			}
			p.remainingRounds = 0
		}
	}

	hadArrival := len(p.inbound) > 0
	for len(p.inbound) > 0 {
		pkt := p.inbound[0]
		p.inbound = p.inbound[1:]
		if p.handlePacket(pkt) {
			break
		}
	}

	if !p.byzantine {
		if hadArrival {
			p.viewCounter = 0
		} else {
			p.viewCounter++
			if p.viewCounter >= p.maxWait {
				p.voteChange = true
			}
		}
	}

	p.Transmit()
}

// filterByzantineInbound keeps only reply packets: a byzantine peer is
// modelled as an adversary acting as client, still observing honest
// replies but dropping everything else.
func (p *PBFTPeer) filterByzantineInbound() {
	kept := p.inbound[:0]
	for _, pkt := range p.inbound {
		if pkt.Body.Type == Reply {
			kept = append(kept, pkt)
		}
	}
	p.inbound = kept
}

func (p *PBFTPeer) emitPrePrepare() {
	p.messageCounter++
	msgID := strconv.Itoa(int(p.id)) + strconv.Itoa(p.messageCounter)
	msg := ConsensusMessage{ClientID: p.id, CreatorID: p.id, View: p.view, Type: PrePrepare}
	p.Send(msg, msgID, p.neighborOrder)
	p.seenPrePrepare[msgID] = true
	p.phase = PhasePrePrepare
}

func (p *PBFTPeer) defaultSend(msg ConsensusMessage, msgID string, targets []PeerID) {
	p.Multicast(msg, msgID, targets)
}

func (p *PBFTPeer) handlePacket(pkt Packet) bool {
	switch pkt.Body.Type {
	case PrePrepare:
		return p.onPrePrepare(pkt)
	case Prepare:
		return p.onPrepare(pkt)
	case Commit:
		return p.onCommit(pkt)
	case Reply:
		return p.onReply(pkt)
	}
	return false
}

func (p *PBFTPeer) incr(msgID string, t MessageType) int {
	m := p.recvCount[msgID]
	if m == nil {
		m = make(map[MessageType]int)
		p.recvCount[msgID] = m
	}
	m[t]++
	return m[t]
}

// onPrePrepare: the first arrival of a given message-id broadcasts prepare
// and halts the round; subsequent duplicates are no-ops.
func (p *PBFTPeer) onPrePrepare(pkt Packet) bool {
	if p.seenPrePrepare[pkt.MsgID] {
		return false
	}
	p.seenPrePrepare[pkt.MsgID] = true

	msg := ConsensusMessage{ClientID: p.id, CreatorID: p.id, View: p.view, Type: Prepare}
	p.Send(msg, pkt.MsgID, p.neighborOrder)
	p.SendSelf(msg, pkt.MsgID, 1)
	p.prepareSent[pkt.MsgID] = true
	p.phase = PhasePrepare
	return true
}

func (p *PBFTPeer) onPrepare(pkt Packet) bool {
	if p.commitSent[pkt.MsgID] {
		return false
	}
	count := p.incr(pkt.MsgID, Prepare)
	threshold := 2*p.faultTolerance*float64(p.quorumSize()) + 1
	if float64(count) > threshold {
		p.phase = PhaseCommit
		msg := ConsensusMessage{ClientID: p.id, CreatorID: p.id, View: p.view, Type: Commit}
		p.Send(msg, pkt.MsgID, p.neighborOrder)
		p.commitSent[pkt.MsgID] = true
		return true
	}
	return false
}

func (p *PBFTPeer) onCommit(pkt Packet) bool {
	if p.replySent[pkt.MsgID] {
		return false
	}
	count := p.incr(pkt.MsgID, Commit)
	threshold := 2*p.faultTolerance*float64(p.quorumSize()) + 1
	if float64(count) > threshold {
		p.phase = PhaseReply
		msg := ConsensusMessage{ClientID: p.id, CreatorID: p.id, View: p.view, Type: Reply}
		if p.isPrimary {
			p.SendSelf(msg, pkt.MsgID, 1)
		} else {
			p.Send(msg, pkt.MsgID, p.primaryTargets())
		}
		p.replySent[pkt.MsgID] = true
		return true
	}
	return false
}

// primaryTargets is a placeholder seam: the flat PBFT network has no
// single designated "primary neighbor" view from a replica's perspective
// other than the one set by SetPrimaryPBFT at the Network level. Replicas
// therefore multicast the reply to every neighbor, and every receiving
// peer (primary or replica) counts it in onReply toward its own ledger.
func (p *PBFTPeer) primaryTargets() []PeerID {
	return p.neighborOrder
}

func (p *PBFTPeer) onReply(pkt Packet) bool {
	if _, decided := p.ledger[pkt.MsgID]; decided {
		return false
	}
	count := p.incr(pkt.MsgID, Reply)
	threshold := 2 * p.faultTolerance * float64(p.quorumSize())
	if !p.normalizeThresholds {
		if float64(count) > threshold {
			p.ledger[pkt.MsgID] = ledgerEntry{Round: p.localRound, Body: pkt.Body}
		}
		return false
	}
	if float64(count) > threshold+1 {
		p.ledger[pkt.MsgID] = ledgerEntry{Round: p.localRound, Body: pkt.Body}
	}
	return false
}

// EndOfRound implements Peer; the flat PBFT peer collects no cross-peer
// metrics of its own (the simulation loop's logger does that).
func (p *PBFTPeer) EndOfRound(all []Peer) {}
