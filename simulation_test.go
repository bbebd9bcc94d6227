package quantas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulationRunFlatProducesNonZeroLedger(t *testing.T) {
	cfg := PBFTConfig{FaultTolerance: 0, RoundsToRequest: 1, RequestsPerRound: 1}
	net, peers := buildFlatNetwork(t, 4, cfg)
	_ = peers
	bn := NewByzantineNetwork(net)

	var records []RoundRecord
	sim := NewSimulation(bn, 12, 0, func(r RoundRecord) { records = append(records, r) })

	result, err := sim.Run()
	require.NoError(t, err)
	assert.Greater(t, result.FinalLedgerSize, 0)
	assert.Len(t, records, 12)
}

func TestSimulationRecordsProtocolStuckWhenPrimaryNeverRequests(t *testing.T) {
	cfg := PBFTConfig{FaultTolerance: 0, RoundsToRequest: 1000000, RequestsPerRound: 1}
	net, _ := buildFlatNetwork(t, 4, cfg)
	bn := NewByzantineNetwork(net)

	sim := NewSimulation(bn, 6, 0, nil)
	result, err := sim.Run()
	require.NoError(t, err)
	assert.NotEmpty(t, result.StuckEvents)
}
