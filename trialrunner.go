package quantas

import (
	"io"
	"math/rand"
	"runtime"
	"sync"
	"time"
)

// TrialInput is one independent (scenario, seed) pair the worker pool
// consumes. Every trial gets its own Network, its own ReferenceCommittee
// (if sharded), and its own *rand.Rand seeded from Seed: the only mutable
// state a caller may legitimately share across trials is Log itself (e.g.
// several trials writing to one --out file), which RunTrials guards with a
// syncWriter and which each RoundRecord's Seed field then attributes.
type TrialInput struct {
	Scenario Scenario
	Seed     int64
	Log      io.Writer
}

// RunTrial builds a fully private simulation from one TrialInput and runs
// it to completion.
func RunTrial(in TrialInput) TrialResult {
	start := time.Now()
	result := TrialResult{ScenarioName: in.Scenario.Name, Seed: in.Seed}

	rng := newRand(in.Seed)
	logWriter := in.Log
	if logWriter == nil {
		logWriter = io.Discard
	}
	cw := &countingWriter{w: logWriter}
	logger := NewRoundLogger(cw)
	recorder := func(rec RoundRecord) {
		rec.Seed = in.Seed
		_ = logger.Write(rec)
	}

	bn := buildNetwork(in.Scenario, rng)
	applyByzantine(bn, in.Scenario)

	var sim *Simulation
	if in.Scenario.Protocol.Name == "pbft-sharded" {
		committee := buildCommittee(bn, in.Scenario, rng)
		sim = NewShardedSimulation(bn, committee, in.Scenario.Trial.Rounds, in.Scenario.Trial.SourcePoolSize, in.Scenario.Byzantine.ShufflePerRound, recorder)
	} else {
		sim = NewSimulation(bn, in.Scenario.Trial.Rounds, in.Scenario.Byzantine.ShufflePerRound, recorder)
	}

	tr, err := sim.Run()
	result.FinalLedgerSize = tr.FinalLedgerSize
	result.StuckEvents = tr.StuckEvents
	if v, ok := err.(*InvariantViolation); ok {
		result.Violation = v
	}
	result.Duration = time.Since(start)
	result.LogBytesWritten = cw.count
	return result
}

// buildNetwork constructs the peer set for either protocol variant and, for
// flat PBFT, elects the lowest peer id as the initial primary. Sharded
// peers are not assigned to any committee or primary role yet;
// buildCommittee and the simulation loop handle that.
func buildNetwork(s Scenario, rng *rand.Rand) *ByzantineNetwork {
	net := NewNetwork(s.DelayModel(), s.Topology.MinDelay, s.Topology.MaxDelay, s.Topology.AvgDelay, rng)

	if s.Protocol.Name == "pbft-sharded" {
		cfg := ShardedConfig{FaultTolerance: s.Protocol.FaultTolerance, NormalizeThresholds: s.Protocol.NormalizeThresholds}
		net.InitNetwork(s.Topology.Peers, func(id PeerID, n *Network) Peer {
			return NewShardedPeer(id, n, cfg)
		})
		for _, id := range net.Peers() {
			net.Peer(id).(*ShardedPeer).finalizeSetup()
		}
	} else {
		cfg := PBFTConfig{
			FaultTolerance:      s.Protocol.FaultTolerance,
			RoundsToRequest:     s.Protocol.RoundsToRequest,
			RequestsPerRound:    s.Protocol.RequestsPerRound,
			NormalizeThresholds: s.Protocol.NormalizeThresholds,
		}
		net.InitNetwork(s.Topology.Peers, func(id PeerID, n *Network) Peer {
			return NewPBFTPeer(id, n, cfg)
		})
		peers := make(map[PeerID]*PBFTPeer, s.Topology.Peers)
		for _, id := range net.Peers() {
			peers[id] = net.Peer(id).(*PBFTPeer)
			peers[id].finalizeSetup()
		}
		if len(net.Peers()) > 0 {
			SetPrimaryPBFT(peers, net.Peers()[0])
		}
	}

	return NewByzantineNetwork(net)
}

func buildCommittee(bn *ByzantineNetwork, s Scenario, rng *rand.Rand) *ReferenceCommittee {
	peers := make(map[PeerID]*ShardedPeer, len(bn.Peers()))
	for _, id := range bn.Peers() {
		peers[id] = bn.Peer(id).(*ShardedPeer)
	}
	groups := FormGroups(peers, sortedCopy(bn.Peers()), s.Committee.GroupSize)
	return NewReferenceCommittee(peers, groups, s.Committee.GroupSize, s.Committee.SecurityMin, s.Committee.SecurityMax, rng)
}

func applyByzantine(bn *ByzantineNetwork, s Scenario) {
	if s.Byzantine.Count <= 0 {
		return
	}
	var named Infection
	if inf, ok := InfectionRegistry(s.Byzantine.Infection); ok {
		named = inf
	}
	bn.MakeByzantines(s.Byzantine.Count, named)
}

// syncWriter serializes concurrent Write calls onto a shared io.Writer. The
// worker pool below is the only place in this module where two goroutines
// can legitimately write to the same underlying file handle (a CLI caller
// pointing several trials at one --out log), so the lock lives here rather
// than in logging.go's single-threaded RoundLogger.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// RunTrials fans independent trial inputs out over a fixed-size worker
// pool (size = GOMAXPROCS unless poolSize is positive) and collects every
// TrialResult before returning, in input order. Trials whose Log points at
// the same underlying io.Writer are routed through a shared syncWriter so
// concurrent json.Encoder.Encode calls never interleave mid-line; each
// resulting RoundRecord still carries its own Seed for attribution.
func RunTrials(inputs []TrialInput, poolSize int) []TrialResult {
	if poolSize <= 0 {
		poolSize = runtime.GOMAXPROCS(0)
	}
	if poolSize > len(inputs) {
		poolSize = len(inputs)
	}
	if poolSize < 1 {
		poolSize = 1
	}

	guarded := make(map[io.Writer]*syncWriter)
	routed := make([]TrialInput, len(inputs))
	for i, in := range inputs {
		if in.Log != nil {
			sw, ok := guarded[in.Log]
			if !ok {
				sw = &syncWriter{w: in.Log}
				guarded[in.Log] = sw
			}
			in.Log = sw
		}
		routed[i] = in
	}

	results := make([]TrialResult, len(inputs))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < poolSize; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = RunTrial(routed[i])
			}
		}()
	}

	for i := range routed {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
