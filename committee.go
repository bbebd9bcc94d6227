package quantas

import "sort"

// request is one queued item awaiting committee assignment: a stable id,
// the round it was submitted, and (once sampled) the security level it
// was tagged with.
type request struct {
	id            int
	submittedAt   int
	securityLevel int
	sampled       bool
}

// ReferenceCommittee is the sharded variant's controller: it owns the
// request queue, the free/busy group partition, and the committee and
// sequence-number counters. It never touches peer internals directly,
// only through the ShardedPeer operations exposed for this purpose.
type ReferenceCommittee struct {
	peers    map[PeerID]*ShardedPeer
	groups   map[GroupID][]PeerID
	groupIDs []GroupID

	freeGroups []GroupID
	busyGroups []GroupID

	committees map[CommitteeID][]GroupID
	nextCommitteeID CommitteeID
	nextSequenceNumber int

	queue []*request
	nextRequestID int

	groupSize              int
	levels                 [5]int
	rng                    randSource
}

// randSource is the minimal surface ReferenceCommittee needs from a random
// generator: a single coin flip per call, so the controller never depends
// on *rand.Rand directly and stays easy to seed deterministically in
// tests.
type randSource interface {
	Float64() float64
}

// NewReferenceCommittee builds a controller over the given groups (formed
// once, at network init) with security levels derived from groupCount and
// clamped to [setMin, setMax].
func NewReferenceCommittee(peers map[PeerID]*ShardedPeer, groups map[GroupID][]PeerID, groupSize, setMin, setMax int, rng randSource) *ReferenceCommittee {
	ids := make([]GroupID, 0, len(groups))
	for gid := range groups {
		ids = append(ids, gid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rc := &ReferenceCommittee{
		peers:      peers,
		groups:     groups,
		groupIDs:   ids,
		freeGroups: append([]GroupID(nil), ids...),
		committees: make(map[CommitteeID][]GroupID),
		groupSize:  groupSize,
		rng:        rng,
	}
	rc.levels = deriveSecurityLevels(len(ids), setMin, setMax)
	return rc
}

// deriveSecurityLevels computes L1..L5 with L5 = groupCount, each prior
// level half the next, clamped to [setMin, setMax] and never below 1.
func deriveSecurityLevels(groupCount, setMin, setMax int) [5]int {
	l5 := groupCount
	if setMax > 0 && l5 > setMax {
		l5 = setMax
	}
	if l5 < 1 {
		l5 = 1
	}
	var levels [5]int
	levels[4] = l5
	for i := 3; i >= 0; i-- {
		v := levels[i+1] / 2
		if v < 1 {
			v = 1
		}
		levels[i] = v
	}
	if setMin > 0 {
		for i := range levels {
			if levels[i] < setMin {
				levels[i] = setMin
			}
		}
	}
	return levels
}

// sampleSecurityLevel flips a fair coin repeatedly; k tails before the
// first head selects L[k+1], saturating at L5 so Pr[Li] = 2^-i.
func (rc *ReferenceCommittee) sampleSecurityLevel() int {
	k := 0
	for k < 4 {
		if rc.rng.Float64() < 0.5 {
			break
		}
		k++
	}
	return rc.levels[k]
}

// Submit enqueues a fresh request, returning its id. Security level is
// sampled lazily, the first time MakeRequest considers it, matching the
// "generate-or-take the front request" step of spec 4.8.
func (rc *ReferenceCommittee) Submit(round int) int {
	rc.nextRequestID++
	rc.queue = append(rc.queue, &request{id: rc.nextRequestID, submittedAt: round})
	return rc.nextRequestID
}

// QueueLen reports the number of requests still waiting for a committee.
func (rc *ReferenceCommittee) QueueLen() int { return len(rc.queue) }

// FreeGroups returns the ids of groups currently unassigned to any live
// committee, ascending.
func (rc *ReferenceCommittee) FreeGroups() []GroupID {
	out := make([]GroupID, len(rc.freeGroups))
	copy(out, rc.freeGroups)
	return out
}

// BusyGroups returns the ids of groups currently assigned to a live
// committee, ascending.
func (rc *ReferenceCommittee) BusyGroups() []GroupID {
	out := make([]GroupID, len(rc.busyGroups))
	copy(out, rc.busyGroups)
	return out
}

// CurrentCommittees returns the sorted, unique set of committee ids that
// are still alive (at least one member peer still reports them).
func (rc *ReferenceCommittee) CurrentCommittees() []CommitteeID {
	out := make([]CommitteeID, 0, len(rc.committees))
	for cid := range rc.committees {
		out = append(out, cid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UpdateBusy reclassifies every busy group as free once none of its
// members still report a committee id, and recomputes which committees
// are alive. MakeRequest calls it whenever the queue is non-empty, after
// sampling the head request's security level.
func (rc *ReferenceCommittee) UpdateBusy() {
	var stillBusy []GroupID
	aliveCommittees := make(map[CommitteeID]bool)

	for _, gid := range rc.busyGroups {
		alive := false
		for _, pid := range rc.groups[gid] {
			if p, ok := rc.peers[pid]; ok && p.CommitteeID() != noCommittee {
				alive = true
				aliveCommittees[p.CommitteeID()] = true
			}
		}
		if alive {
			stillBusy = append(stillBusy, gid)
		} else {
			rc.freeGroups = append(rc.freeGroups, gid)
		}
	}
	rc.busyGroups = stillBusy
	sort.Slice(rc.freeGroups, func(i, j int) bool { return rc.freeGroups[i] < rc.freeGroups[j] })

	for cid := range rc.committees {
		if !aliveCommittees[cid] {
			delete(rc.committees, cid)
		}
	}
}

// MakeRequest implements spec 4.8's request-submission algorithm: take the
// head of the queue, sample its security level if not already sampled,
// reconcile busy/free groups, and either form a fresh committee (enough
// free groups) or leave the request queued.
func (rc *ReferenceCommittee) MakeRequest(round int) {
	if len(rc.queue) == 0 {
		return
	}
	head := rc.queue[0]
	if !head.sampled {
		head.securityLevel = rc.sampleSecurityLevel()
		head.sampled = true
	}

	rc.UpdateBusy()

	g := head.securityLevel
	if len(rc.freeGroups) < g {
		return
	}

	rc.queue = rc.queue[1:]

	taken := rc.freeGroups[len(rc.freeGroups)-g:]
	assigned := make([]GroupID, len(taken))
	copy(assigned, taken)
	rc.freeGroups = rc.freeGroups[:len(rc.freeGroups)-g]

	cid := rc.nextCommitteeID
	rc.nextCommitteeID++
	rc.committees[cid] = assigned
	rc.busyGroups = append(rc.busyGroups, assigned...)
	sort.Slice(rc.busyGroups, func(i, j int) bool { return rc.busyGroups[i] < rc.busyGroups[j] })

	members := rc.committeeMembers(assigned)
	for _, pid := range members {
		if p, ok := rc.peers[pid]; ok {
			p.SetCommittee(cid, members)
		}
	}
	InitPrimary(rc.peers, members)

	primaryID := members[0]
	for _, pid := range members {
		if p, ok := rc.peers[pid]; ok && p.IsPrimary() {
			primaryID = pid
			break
		}
	}
	rc.nextSequenceNumber++
	if p, ok := rc.peers[primaryID]; ok {
		p.MakeRequest(rc.nextSequenceNumber)
	}
}

func (rc *ReferenceCommittee) committeeMembers(groupIDs []GroupID) []PeerID {
	var members []PeerID
	for _, gid := range groupIDs {
		members = append(members, rc.groups[gid]...)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return members
}

// GlobalLedgerSize unions every committee peer's ledger, de-duplicated by
// message-id, and returns its size. Safety (P1) guarantees correct peers
// never disagree on the body for a shared message-id.
func (rc *ReferenceCommittee) GlobalLedgerSize() int {
	seen := make(map[string]bool)
	for _, id := range sortedPeerIDs(rc.peers) {
		p := rc.peers[id]
		if p.IsByzantine() {
			continue
		}
		for msgID := range p.Ledger() {
			seen[msgID] = true
		}
	}
	return len(seen)
}

func sortedPeerIDs(m map[PeerID]*ShardedPeer) []PeerID {
	out := make([]PeerID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FormGroups partitions the given peer ids (already sorted ascending)
// into fixed groups of groupSize, assigning each peer its permanent
// GroupID. The last group may be smaller if peers doesn't divide evenly.
func FormGroups(peers map[PeerID]*ShardedPeer, ids []PeerID, groupSize int) map[GroupID][]PeerID {
	groups := make(map[GroupID][]PeerID)
	gid := GroupID(0)
	for i := 0; i < len(ids); i += groupSize {
		end := i + groupSize
		if end > len(ids) {
			end = len(ids)
		}
		members := append([]PeerID(nil), ids[i:end]...)
		groups[gid] = members
		for _, pid := range members {
			if p, ok := peers[pid]; ok {
				p.SetGroup(gid, members)
			}
		}
		gid++
	}
	return groups
}
