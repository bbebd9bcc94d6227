package quantas

// ByzantineNetwork extends Network with a correct/byzantine partition over
// the peer set and the ability to shuffle which peers are byzantine
// mid-trial.
type ByzantineNetwork struct {
	*Network
	byzantine map[PeerID]bool
}

// NewByzantineNetwork wraps an already-initialized Network.
func NewByzantineNetwork(net *Network) *ByzantineNetwork {
	return &ByzantineNetwork{Network: net, byzantine: make(map[PeerID]bool)}
}

func (b *ByzantineNetwork) infectable(id PeerID) Infectable {
	switch p := b.peers[id].(type) {
	case *PBFTPeer:
		return p
	case *ShardedPeer:
		return p
	default:
		return nil
	}
}

// MakeByzantines marks k distinct peers byzantine, applying the default
// byzantine infection plus, if given, an additional named behavior-slot
// infection (e.g. "crash", "equivocate50").
func (b *ByzantineNetwork) MakeByzantines(k int, named Infection) {
	made := 0
	for _, id := range b.peerOrder {
		if made >= k {
			break
		}
		if b.byzantine[id] {
			continue
		}
		b.infectOne(id, named)
		made++
	}
}

func (b *ByzantineNetwork) infectOne(id PeerID, named Infection) {
	inf := b.infectable(id)
	if inf == nil {
		return
	}
	DefaultByzantineInfection(inf)
	if named != nil {
		named(inf)
	}
	b.byzantine[id] = true
}

// MakeCorrect reverses byzantine status for k peers, restoring their
// default behavior slots.
func (b *ByzantineNetwork) MakeCorrect(k int) {
	made := 0
	for _, id := range b.peerOrder {
		if made >= k {
			break
		}
		if !b.byzantine[id] {
			continue
		}
		b.correctOne(id)
		made++
	}
}

func (b *ByzantineNetwork) correctOne(id PeerID) {
	switch p := b.peers[id].(type) {
	case *PBFTPeer:
		p.SetByzantine(false)
		p.resetDefaultBehavior()
	case *ShardedPeer:
		p.SetByzantine(false)
		p.resetDefaultBehavior()
	}
	delete(b.byzantine, id)
}

// ShuffleByzantines performs n swap operations: each unmarks one byzantine
// peer and marks one correct peer byzantine (applying the default
// infection, no named infection carried over).
func (b *ByzantineNetwork) ShuffleByzantines(n int) {
	for i := 0; i < n; i++ {
		var fromByzantine, toCorrect PeerID
		foundByzantine, foundCorrect := false, false
		for _, id := range b.peerOrder {
			if b.byzantine[id] && !foundByzantine {
				fromByzantine = id
				foundByzantine = true
			}
			if !b.byzantine[id] && !foundCorrect {
				toCorrect = id
				foundCorrect = true
			}
			if foundByzantine && foundCorrect {
				break
			}
		}
		if !foundByzantine || !foundCorrect {
			return
		}
		b.correctOne(fromByzantine)
		b.infectOne(toCorrect, nil)
	}
}

// IsByzantine reports whether the given peer is currently classified
// byzantine.
func (b *ByzantineNetwork) IsByzantine(id PeerID) bool {
	return b.byzantine[id]
}

// Correct returns the ids of peers currently classified correct, ascending.
func (b *ByzantineNetwork) Correct() []PeerID {
	var out []PeerID
	for _, id := range b.peerOrder {
		if !b.byzantine[id] {
			out = append(out, id)
		}
	}
	return out
}

// Byzantine returns the ids of peers currently classified byzantine, ascending.
func (b *ByzantineNetwork) Byzantine() []PeerID {
	var out []PeerID
	for _, id := range b.peerOrder {
		if b.byzantine[id] {
			out = append(out, id)
		}
	}
	return out
}
