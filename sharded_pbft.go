package quantas

import "strconv"

// GroupID identifies a fixed group of peers formed once at network init.
type GroupID int

// CommitteeID identifies a committee assembled by the reference-committee
// controller from some number of free groups. -1 means "no committee".
type CommitteeID int

const noCommittee CommitteeID = -1

// ShardedPeer runs the same preprepare/prepare/commit/reply pipeline as
// PBFTPeer, but scoped to whatever committee the controller has currently
// assigned it to, rather than to the whole network.
type ShardedPeer struct {
	NetworkInterface
	Behavior

	byzantine bool
	isPrimary bool

	faultTolerance      float64
	normalizeThresholds bool
	maxWait             int

	groupID          GroupID
	groupMembers     []PeerID
	committeeID      CommitteeID
	committeeMembers []PeerID

	viewCounter int
	voteChange  bool
	view        int
	phase       Phase
	localRound  int

	seenPrePrepare map[string]bool
	prepareSent    map[string]bool
	commitSent     map[string]bool
	replySent      map[string]bool
	recvCount      map[string]map[MessageType]int

	ledger map[string]ledgerEntry
}

// ShardedConfig carries the scenario-derived parameters for one sharded
// PBFT peer.
type ShardedConfig struct {
	FaultTolerance      float64
	NormalizeThresholds bool
}

// NewShardedPeer constructs a correct peer with no group/committee
// assignment yet; InitGroups and the controller populate those afterward.
func NewShardedPeer(id PeerID, net *Network, cfg ShardedConfig) *ShardedPeer {
	p := &ShardedPeer{
		NetworkInterface:    newNetworkInterface(id, net),
		faultTolerance:      cfg.FaultTolerance,
		normalizeThresholds: cfg.NormalizeThresholds,
		committeeID:         noCommittee,
		seenPrePrepare:      make(map[string]bool),
		prepareSent:         make(map[string]bool),
		commitSent:          make(map[string]bool),
		replySent:           make(map[string]bool),
		recvCount:           make(map[string]map[MessageType]int),
		ledger:              make(map[string]ledgerEntry),
	}
	p.resetDefaultBehavior()
	return p
}

func (p *ShardedPeer) resetDefaultBehavior() {
	p.ComputeStep = p.defaultComputation
	p.SubmitTrans = func(tranID int) {}
	p.Send = p.defaultSend
}

// finalizeSetup must be called once every neighbor has been added: it
// derives maxWait from the peer's own outgoing link delays, mirroring the
// flat PBFT peer's finalizeSetup (pbft.go) so view-change timing tracks
// actual network delay rather than committee size.
func (p *ShardedPeer) finalizeSetup() {
	max := 0
	for _, d := range p.neighbors {
		if d > max {
			max = d
		}
	}
	p.maxWait = max + 1
}

// Behaviors implements Infectable.
func (p *ShardedPeer) Behaviors() *Behavior { return &p.Behavior }

// IsByzantine implements Infectable and Peer.
func (p *ShardedPeer) IsByzantine() bool { return p.byzantine }

// SetByzantine implements Infectable.
func (p *ShardedPeer) SetByzantine(v bool) { p.byzantine = v }

// SetGroup assigns the one-shot, permanent group membership determined at
// network initialization.
func (p *ShardedPeer) SetGroup(gid GroupID, members []PeerID) {
	p.groupID = gid
	p.groupMembers = members
}

// GroupID returns the peer's fixed group assignment.
func (p *ShardedPeer) GroupID() GroupID { return p.groupID }

// CommitteeID returns the peer's current committee assignment, or
// noCommittee if unassigned.
func (p *ShardedPeer) CommitteeID() CommitteeID { return p.committeeID }

// SetCommittee assigns the peer to a committee with the given member list
// (the full cross-group roster, ascending by peer id), invoked by the
// controller when forming a new committee.
func (p *ShardedPeer) SetCommittee(cid CommitteeID, members []PeerID) {
	p.committeeID = cid
	p.committeeMembers = members
	p.resetCommitteeState()
}

// ClearCommittee drops the peer's committee assignment and resets its
// per-committee protocol counters, per spec 4.7.
func (p *ShardedPeer) ClearCommittee() {
	p.committeeID = noCommittee
	p.committeeMembers = nil
	p.isPrimary = false
	p.resetCommitteeState()
}

func (p *ShardedPeer) resetCommitteeState() {
	p.seenPrePrepare = make(map[string]bool)
	p.prepareSent = make(map[string]bool)
	p.commitSent = make(map[string]bool)
	p.replySent = make(map[string]bool)
	p.recvCount = make(map[string]map[MessageType]int)
	p.phase = PhaseIdle
	p.viewCounter = 0
	p.voteChange = false
}

// InitPrimary elects the lowest peer-id among the committee members as
// primary, clearing the flag on every other member. Called once per
// committee formation by the controller.
func InitPrimary(peers map[PeerID]*ShardedPeer, members []PeerID) {
	if len(members) == 0 {
		return
	}
	lowest := members[0]
	for _, id := range members {
		if id < lowest {
			lowest = id
		}
	}
	for _, id := range members {
		if p, ok := peers[id]; ok {
			p.isPrimary = id == lowest
		}
	}
}

// IsPrimary reports whether this peer currently believes itself primary of
// its committee.
func (p *ShardedPeer) IsPrimary() bool { return p.isPrimary }

// VoteChange reports whether this peer has been idle long enough within
// its committee to have voted for a view change.
func (p *ShardedPeer) VoteChange() bool { return p.voteChange }

// CurrentPhase returns the peer's current protocol phase (for logging).
func (p *ShardedPeer) CurrentPhase() Phase { return p.phase }

// LedgerSize returns the number of decided entries.
func (p *ShardedPeer) LedgerSize() int { return len(p.ledger) }

// Ledger returns a copy of the decided message-id -> (round, body) map.
func (p *ShardedPeer) Ledger() map[string]ledgerEntry {
	out := make(map[string]ledgerEntry, len(p.ledger))
	for k, v := range p.ledger {
		out[k] = v
	}
	return out
}

func (p *ShardedPeer) quorumSize() int {
	return len(p.committeeMembers)
}

// MakeRequest is primary-only: it emits a fresh preprepare addressed to
// every committee member using the controller-supplied sequence number as
// the message-id suffix.
func (p *ShardedPeer) MakeRequest(seq int) {
	if !p.isPrimary || p.committeeID == noCommittee {
		return
	}
	msgID := strconv.Itoa(int(p.committeeID)) + "-" + strconv.Itoa(seq)
	msg := ConsensusMessage{ClientID: p.id, CreatorID: p.id, View: p.view, Type: PrePrepare}
	p.Send(msg, msgID, p.committeeTargets())
	p.seenPrePrepare[msgID] = true
	p.phase = PhasePrePrepare
}

func (p *ShardedPeer) committeeTargets() []PeerID {
	targets := make([]PeerID, 0, len(p.committeeMembers))
	for _, id := range p.committeeMembers {
		if id != p.id {
			targets = append(targets, id)
		}
	}
	return targets
}

// PerformComputation implements Peer.
func (p *ShardedPeer) PerformComputation() {
	p.ComputeStep()
}

func (p *ShardedPeer) defaultComputation() {
	p.localRound++

	if p.committeeID == noCommittee {
		p.inbound = nil
		return
	}

	if p.byzantine {
		p.filterByzantineInbound()
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

func (p *ShardedPeer) filterByzantineInbound() {
	kept := p.inbound[:0]
	for _, pkt := range p.inbound {
		if pkt.Body.Type == Reply {
			kept = append(kept, pkt)
		}
	}
	p.inbound = kept
}

func (p *ShardedPeer) defaultSend(msg ConsensusMessage, msgID string, targets []PeerID) {
	p.Multicast(msg, msgID, targets)
}

func (p *ShardedPeer) handlePacket(pkt Packet) bool {
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

func (p *ShardedPeer) incr(msgID string, t MessageType) int {
	m := p.recvCount[msgID]
	if m == nil {
		m = make(map[MessageType]int)
		p.recvCount[msgID] = m
	}
	m[t]++
	return m[t]
}

func (p *ShardedPeer) onPrePrepare(pkt Packet) bool {
	if p.seenPrePrepare[pkt.MsgID] {
		return false
	}
	p.seenPrePrepare[pkt.MsgID] = true

	msg := ConsensusMessage{ClientID: p.id, CreatorID: p.id, View: p.view, Type: Prepare}
	p.Send(msg, pkt.MsgID, p.committeeTargets())
	p.SendSelf(msg, pkt.MsgID, 1)
	p.prepareSent[pkt.MsgID] = true
	p.phase = PhasePrepare
	return true
}

func (p *ShardedPeer) onPrepare(pkt Packet) bool {
	if p.commitSent[pkt.MsgID] {
		return false
	}
	count := p.incr(pkt.MsgID, Prepare)
	threshold := 2*p.faultTolerance*float64(p.quorumSize()) + 1
	if float64(count) > threshold {
		p.phase = PhaseCommit
		msg := ConsensusMessage{ClientID: p.id, CreatorID: p.id, View: p.view, Type: Commit}
		p.Send(msg, pkt.MsgID, p.committeeTargets())
		p.commitSent[pkt.MsgID] = true
		return true
	}
	return false
}

func (p *ShardedPeer) onCommit(pkt Packet) bool {
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
			p.Send(msg, pkt.MsgID, p.committeeTargets())
		}
		p.replySent[pkt.MsgID] = true
		return true
	}
	return false
}

func (p *ShardedPeer) onReply(pkt Packet) bool {
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

// EndOfRound implements Peer; committee-level metrics are collected by the
// controller and the simulation loop, not the peer itself.
func (p *ShardedPeer) EndOfRound(all []Peer) {}
