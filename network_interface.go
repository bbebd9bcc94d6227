package quantas

// linkSource abstracts the handful of Network operations a NetworkInterface
// needs without owning a pointer back to a concrete Peer (Network owns the
// peer table; peers never own each other, per the cyclic-reference note).
type linkSource interface {
	channel(from, to PeerID) *Channel
	order() []PeerID
	randomProbability() float64
}

// NetworkInterface is the per-peer mailbox: an inbound queue, an outbound
// queue, a neighbor table with per-neighbor delay, and the broadcast /
// multicast / random-multicast primitives peers use to emit packets.
type NetworkInterface struct {
	id            PeerID
	neighbors     map[PeerID]int
	neighborOrder []PeerID

	inbound  []Packet
	outbound []Packet

	net linkSource
}

func newNetworkInterface(id PeerID, net linkSource) NetworkInterface {
	return NetworkInterface{
		id:        id,
		neighbors: make(map[PeerID]int),
		net:       net,
	}
}

// ID returns the peer's stable identity.
func (ni *NetworkInterface) ID() PeerID { return ni.id }

func (ni *NetworkInterface) addNeighbor(id PeerID, delay int) {
	if _, ok := ni.neighbors[id]; !ok {
		ni.neighborOrder = append(ni.neighborOrder, id)
	}
	ni.neighbors[id] = delay
}

// NeighborDelay returns the configured per-link delay to the given
// neighbor, or zero if it is not a neighbor.
func (ni *NetworkInterface) NeighborDelay(id PeerID) int {
	return ni.neighbors[id]
}

// Neighbors returns the neighbor ids in stable (ascending) order.
func (ni *NetworkInterface) Neighbors() []PeerID {
	out := make([]PeerID, len(ni.neighborOrder))
	copy(out, ni.neighborOrder)
	return out
}

// Broadcast enqueues one outbound packet to every neighbor.
func (ni *NetworkInterface) Broadcast(body ConsensusMessage, msgID string) {
	ni.Multicast(body, msgID, ni.neighborOrder)
}

// Multicast enqueues one outbound packet to every id in targets.
func (ni *NetworkInterface) Multicast(body ConsensusMessage, msgID string, targets []PeerID) {
	for _, target := range targets {
		delay := ni.neighbors[target]
		if delay <= 0 {
			delay = 1
		}
		ni.outbound = append(ni.outbound, Packet{
			MsgID:          msgID,
			Source:         ni.id,
			Destination:    target,
			DelayRemaining: delay,
			OriginalDelay:  delay,
			Body:           body,
		})
	}
}

// RandomMulticast enqueues one outbound packet to each neighbor
// independently with probability p. When p is nil, a single probability is
// drawn uniformly from [0,1] for this call (never memoized per peer).
func (ni *NetworkInterface) RandomMulticast(body ConsensusMessage, msgID string, p *float64) {
	prob := ni.net.randomProbability()
	if p != nil {
		prob = *p
	}
	for _, target := range ni.neighborOrder {
		if ni.net.randomProbability() < prob {
			delay := ni.neighbors[target]
			if delay <= 0 {
				delay = 1
			}
			ni.outbound = append(ni.outbound, Packet{
				MsgID:          msgID,
				Source:         ni.id,
				Destination:    target,
				DelayRemaining: delay,
				OriginalDelay:  delay,
				Body:           body,
			})
		}
	}
}

// SendSelf enqueues a packet addressed to this same peer with the given
// delay, used by the protocol to force a one-round deferral (e.g. the 2f+1
// self-counting trick in PBFT).
func (ni *NetworkInterface) SendSelf(body ConsensusMessage, msgID string, delay int) {
	if delay <= 0 {
		delay = 1
	}
	ni.outbound = append(ni.outbound, Packet{
		MsgID:          msgID,
		Source:         ni.id,
		Destination:    ni.id,
		DelayRemaining: delay,
		OriginalDelay:  delay,
		Body:           body,
	})
}

// Transmit flushes the outbound queue into the appropriate channels. It is
// idempotent on an empty outbound queue.
func (ni *NetworkInterface) Transmit() {
	if len(ni.outbound) == 0 {
		return
	}
	for i := range ni.outbound {
		pkt := ni.outbound[i]
		ch := ni.net.channel(pkt.Source, pkt.Destination)
		ch.enqueue(&pkt)
	}
	ni.outbound = ni.outbound[:0]
}

// Receive pulls matured packets from every inbound channel (ascending
// source id, self-channel included) into the inbound queue, in the order
// they matured.
func (ni *NetworkInterface) Receive() {
	for _, src := range ni.net.order() {
		ch := ni.net.channel(src, ni.id)
		for _, p := range ch.drain() {
			ni.inbound = append(ni.inbound, *p)
		}
	}
}

// Inbound exposes the current inbound queue (used by property tests).
func (ni *NetworkInterface) Inbound() []Packet {
	return ni.inbound
}
