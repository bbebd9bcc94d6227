package quantas

import (
	"math"
	"math/rand"
	"sort"
)

// DelayModel names the three link-delay distributions the topology can
// draw from at network initialization.
type DelayModel int

const (
	DelayOne DelayModel = iota
	DelayRandom
	DelayPoisson
)

// Peer is the common surface the Network and the simulation loop drive.
// Both PBFTPeer and ShardedPeer implement it.
type Peer interface {
	ID() PeerID
	IsByzantine() bool
	Receive()
	Transmit()
	PerformComputation()
	EndOfRound(all []Peer)
}

// Network owns the peer set and the delay model; it is the only thing that
// holds pointers to every peer, so peers never own each other.
type Network struct {
	peerOrder []PeerID
	peers     map[PeerID]Peer
	channels  map[PeerID]map[PeerID]*Channel

	model              DelayModel
	minDelay, maxDelay int
	avgDelay           int

	rng   *rand.Rand
	round int
}

// NewNetwork builds an empty network driven by the given delay model and
// random source. Use InitNetwork to populate peers.
func NewNetwork(model DelayModel, minDelay, maxDelay, avgDelay int, rng *rand.Rand) *Network {
	return &Network{
		peers:    make(map[PeerID]Peer),
		channels: make(map[PeerID]map[PeerID]*Channel),
		model:    model,
		minDelay: minDelay,
		maxDelay: maxDelay,
		avgDelay: avgDelay,
		rng:      rng,
	}
}

// InitNetwork builds n peers using factory (called once per id, ascending)
// and a fully connected neighbor graph with delays drawn from the
// configured model. Per-link delays are fixed for the life of the network.
func (n *Network) InitNetwork(count int, factory func(id PeerID, net *Network) Peer) {
	ids := make([]PeerID, count)
	for i := 0; i < count; i++ {
		ids[i] = PeerID(i)
	}
	n.peerOrder = ids

	for _, id := range ids {
		n.peers[id] = factory(id, n)
		n.channels[id] = make(map[PeerID]*Channel)
	}
	for _, from := range ids {
		for _, to := range ids {
			n.channels[from][to] = newChannel(from, to)
		}
	}

	for _, from := range ids {
		ni := n.networkInterfaceOf(from)
		if ni == nil {
			continue
		}
		for _, to := range ids {
			if to == from {
				continue
			}
			ni.addNeighbor(to, n.delayFor(from, to))
		}
	}
}

// networkInterfaceOf extracts the embedded NetworkInterface from whichever
// concrete Peer implementation is installed, so InitNetwork can populate
// neighbor tables without the Peer interface itself exposing mutation.
func (n *Network) networkInterfaceOf(id PeerID) *NetworkInterface {
	switch p := n.peers[id].(type) {
	case *PBFTPeer:
		return &p.NetworkInterface
	case *ShardedPeer:
		return &p.NetworkInterface
	default:
		return nil
	}
}

func (n *Network) delayFor(from, to PeerID) int {
	switch n.model {
	case DelayOne:
		return 1
	case DelayRandom:
		lo, hi := n.minDelay, n.maxDelay
		if hi < lo {
			hi = lo
		}
		return lo + n.rng.Intn(hi-lo+1)
	case DelayPoisson:
		return poissonSample(n.rng, float64(n.avgDelay))
	default:
		return 1
	}
}

// poissonSample draws from a Poisson distribution with the given mean
// using Knuth's algorithm, floored at delay 1 (a zero-round link makes no
// sense in a round-based simulator).
func poissonSample(rng *rand.Rand, mean float64) int {
	if mean <= 0 {
		return 1
	}
	l := math.Exp(-mean)
	k := 0
	p := 1.0
	for {
		k++
		p *= rng.Float64()
		if p <= l {
			break
		}
	}
	sample := k - 1
	if sample < 1 {
		sample = 1
	}
	return sample
}

// channel implements linkSource for NetworkInterface.
func (n *Network) channel(from, to PeerID) *Channel {
	return n.channels[from][to]
}

// order implements linkSource for NetworkInterface: ascending peer id.
func (n *Network) order() []PeerID {
	return n.peerOrder
}

// randomProbability implements linkSource: draw once, uniformly, from
// [0,1). Never memoized.
func (n *Network) randomProbability() float64 {
	return n.rng.Float64()
}

// Peers returns the peer ids in ascending order.
func (n *Network) Peers() []PeerID {
	out := make([]PeerID, len(n.peerOrder))
	copy(out, n.peerOrder)
	return out
}

// Peer looks up a single peer by id.
func (n *Network) Peer(id PeerID) Peer {
	return n.peers[id]
}

// Round returns the current round counter, owned by the network rather
// than any process-wide global.
func (n *Network) Round() int { return n.round }

// tickChannels advances every channel's delay countdown by one round.
func (n *Network) tickChannels() {
	for _, from := range n.peerOrder {
		for _, to := range n.peerOrder {
			n.channels[from][to].tick()
		}
	}
}

// receiveAll drains matured packets into every peer's inbound queue, in
// ascending peer-id order.
func (n *Network) receiveAll() {
	for _, id := range n.peerOrder {
		n.peers[id].Receive()
	}
}

// performComputationAll runs one state-machine step on every peer, in
// ascending peer-id order, each running to completion before the next
// peer starts.
func (n *Network) performComputationAll() {
	for _, id := range n.peerOrder {
		n.peers[id].PerformComputation()
	}
}

// endOfRoundAll invokes the once-per-round metrics hook on every peer,
// handing each one the full peer list the way the original Peer::endOfRound
// does.
func (n *Network) endOfRoundAll() {
	all := make([]Peer, len(n.peerOrder))
	for i, id := range n.peerOrder {
		all[i] = n.peers[id]
	}
	for _, p := range all {
		p.EndOfRound(all)
	}
}

// sortedCopy returns a sorted copy of ids, used by the invariant checks and
// the committee controller where stable, reproducible output matters.
func sortedCopy(ids []PeerID) []PeerID {
	out := make([]PeerID, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
