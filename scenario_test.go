package quantas

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validScenario() Scenario {
	return Scenario{
		Name:     "flat-smoke",
		Topology: TopologyConfig{Peers: 4, DelayModel: "one"},
		Trial:    TrialConfig{Rounds: 10, Seed: 1},
		Protocol: ProtocolConfig{Name: "pbft", FaultTolerance: 0, RoundsToRequest: 1, RequestsPerRound: 1},
	}
}

func TestValidScenarioPasses(t *testing.T) {
	assert.NoError(t, validScenario().Validate())
}

func TestValidateRejectsZeroPeers(t *testing.T) {
	s := validScenario()
	s.Topology.Peers = 0
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigPeerCount))
}

func TestValidateRejectsUnknownDelayModel(t *testing.T) {
	s := validScenario()
	s.Topology.DelayModel = "exponential"
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigUnknownDelayModel))
}

func TestValidateRejectsFaultToleranceOutOfRange(t *testing.T) {
	s := validScenario()
	s.Protocol.FaultTolerance = 0.5
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigFaultToleranceRange))
}

func TestValidateRejectsGroupSizeExceedingPeersForSharded(t *testing.T) {
	s := validScenario()
	s.Protocol.Name = "pbft-sharded"
	s.Committee = CommitteeConfig{GroupSize: 10}
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigGroupSizeExceedsPeers))
}

func TestValidateRejectsUnknownInfection(t *testing.T) {
	s := validScenario()
	s.Byzantine = ByzantineConfig{Count: 1, Infection: "teleport"}
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigUnknownInfection))
}

func TestConfigErrorMessageNamesField(t *testing.T) {
	s := validScenario()
	s.Topology.Peers = 0
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "topology.peers"))
}

func TestDecodeScenarioJSON(t *testing.T) {
	doc := `{"name":"x","topology":{"peers":4,"delay_model":"one"},"trial":{"rounds":5,"seed":2},"protocol":{"name":"pbft","fault_tolerance":0}}`
	s, err := DecodeScenario(bytes.NewBufferString(doc), false)
	require.NoError(t, err)
	assert.Equal(t, "x", s.Name)
	assert.Equal(t, 4, s.Topology.Peers)
	assert.NoError(t, s.Validate())
}

func TestDecodeScenarioYAML(t *testing.T) {
	doc := "name: y\ntopology:\n  peers: 4\n  delay_model: one\ntrial:\n  rounds: 5\n  seed: 2\nprotocol:\n  name: pbft\n  fault_tolerance: 0\n"
	s, err := DecodeScenario(bytes.NewBufferString(doc), true)
	require.NoError(t, err)
	assert.Equal(t, "y", s.Name)
	assert.NoError(t, s.Validate())
}

func TestIsYAMLPath(t *testing.T) {
	assert.True(t, IsYAMLPath("scenario.yaml"))
	assert.True(t, IsYAMLPath("scenario.YML"))
	assert.False(t, IsYAMLPath("scenario.json"))
}
