package quantas

// PeerID is the stable identity of a peer within a Network.
type PeerID int

// Packet is the envelope carried by a Channel: a ConsensusMessage plus the
// transport framing (source, destination, identifier and the delay still
// remaining before it matures into the destination's inbound queue).
type Packet struct {
	MsgID          string
	Source         PeerID
	Destination    PeerID
	DelayRemaining int
	OriginalDelay  int
	Body           ConsensusMessage
}

// Channel is the ordered, per-link buffer of in-flight packets between one
// source and one destination (a self-channel when source == destination).
// tick decrements every in-flight packet's delay once; packets that reach
// zero move into the matured queue, in the order they matured, ready for
// the destination peer's next Receive.
type Channel struct {
	from, to PeerID
	inflight []*Packet
	matured  []*Packet
}

func newChannel(from, to PeerID) *Channel {
	return &Channel{from: from, to: to}
}

func (c *Channel) enqueue(p *Packet) {
	c.inflight = append(c.inflight, p)
}

func (c *Channel) tick() {
	if len(c.inflight) == 0 {
		return
	}
	remaining := c.inflight[:0:0]
	for _, p := range c.inflight {
		p.DelayRemaining--
		if p.DelayRemaining <= 0 {
			c.matured = append(c.matured, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	c.inflight = remaining
}

// drain returns (and clears) the packets that matured since the last drain.
func (c *Channel) drain() []*Packet {
	if len(c.matured) == 0 {
		return nil
	}
	m := c.matured
	c.matured = nil
	return m
}
