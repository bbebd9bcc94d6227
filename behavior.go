package quantas

// Behavior bundles the three replaceable slots a peer exposes: the step of
// the local consensus state machine, the client-side submission path, and
// the outgoing send primitive. Correct peers run the defaults; an
// Infection mutates one or more of these fields in place. Replacing a slot
// never disturbs in-flight state, only subsequent invocations.
type Behavior struct {
	ComputeStep func()
	SubmitTrans func(tranID int)
	Send        func(msg ConsensusMessage, msgID string, targets []PeerID)
}

// Infectable is the minimal surface an Infection needs: access to the
// behavior slots and to the byzantine flag. Both PBFTPeer and ShardedPeer
// implement it.
type Infectable interface {
	Behaviors() *Behavior
	IsByzantine() bool
	SetByzantine(bool)
}

// Infection is a named transformation applied to a peer's behavior slots.
// It is the single signature `func(Infectable)` the design notes settle on:
// infections never need performComputation passed in, since they mutate the
// slot in place and the peer invokes whatever is installed there.
type Infection func(Infectable)

// Crash replaces compute-step with a no-op: the peer never advances its
// local state machine again, so its ledger stays empty (P7).
func Crash(p Infectable) {
	b := p.Behaviors()
	b.ComputeStep = func() {}
}

// Censor replaces submit-transaction with a no-op.
func Censor(p Infectable) {
	b := p.Behaviors()
	b.SubmitTrans = func(tranID int) {}
}

// Equivocate replaces the send slot with a random multicast at the given
// probability. prob == nil means "draw p uniformly from [0,1] per call",
// matching the bare `equivocate` infection name.
func Equivocate(prob *float64) Infection {
	return func(p Infectable) {
		b := p.Behaviors()
		rm := randomMulticaster(p)
		b.Send = func(msg ConsensusMessage, msgID string, _ []PeerID) {
			rm(msg, msgID, prob)
		}
	}
}

// randomMulticaster adapts a concrete peer's RandomMulticast method to the
// shape Equivocate needs, without Infectable itself depending on
// NetworkInterface (infections only ever touch behavior slots).
func randomMulticaster(p Infectable) func(ConsensusMessage, string, *float64) {
	switch v := p.(type) {
	case *PBFTPeer:
		return v.RandomMulticast
	case *ShardedPeer:
		return v.RandomMulticast
	default:
		return func(ConsensusMessage, string, *float64) {}
	}
}

// DefaultByzantineInfection is applied by ByzantineNetwork.MakeByzantines:
// it marks the peer byzantine (which gates its inbound processing down to
// reply-only, see pbft.go/sharded_pbft.go) without touching its behavior
// slots. A scenario's `byzantine.infection` name then layers an additional
// behavior-slot substitution on top, chosen from the registry below.
func DefaultByzantineInfection(p Infectable) {
	p.SetByzantine(true)
}

// InfectionRegistry resolves the string names the scenario config and the
// original source's naming convention use: "crash", "censor", "equivocate"
// and "equivocate[NN]" for NN in {00,01,...,10,15,20,...,100}.
func InfectionRegistry(name string) (Infection, bool) {
	switch name {
	case "", "none":
		return nil, false
	case "crash":
		return Infection(Crash), true
	case "censor":
		return Infection(Censor), true
	case "equivocate":
		return Equivocate(nil), true
	}
	if p, ok := parseEquivocatePercent(name); ok {
		return Equivocate(&p), true
	}
	return nil, false
}
