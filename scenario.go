package quantas

import (
	"encoding/json"
	"io"
	"strings"

	"gopkg.in/yaml.v2"
)

// TopologyConfig describes the peer count and delay model to build a
// Network from.
type TopologyConfig struct {
	Peers      int    `json:"peers" yaml:"peers"`
	DelayModel string `json:"delay_model" yaml:"delay_model"`
	MinDelay   int    `json:"min_delay" yaml:"min_delay"`
	MaxDelay   int    `json:"max_delay" yaml:"max_delay"`
	AvgDelay   int    `json:"avg_delay" yaml:"avg_delay"`
}

// TrialConfig describes how long to run, how often the sharded controller
// admits a fresh request, and the trial's base RNG seed.
type TrialConfig struct {
	Rounds         int   `json:"rounds" yaml:"rounds"`
	SourcePoolSize int   `json:"source_pool_size" yaml:"source_pool_size"`
	Seed           int64 `json:"seed" yaml:"seed"`
}

// ProtocolConfig selects flat or sharded PBFT and its tunables.
type ProtocolConfig struct {
	Name                string  `json:"name" yaml:"name"`
	FaultTolerance      float64 `json:"fault_tolerance" yaml:"fault_tolerance"`
	RoundsToRequest     int     `json:"rounds_to_request" yaml:"rounds_to_request"`
	RequestsPerRound    int     `json:"requests_per_round" yaml:"requests_per_round"`
	NormalizeThresholds bool    `json:"normalize_thresholds" yaml:"normalize_thresholds"`
}

// CommitteeConfig is only meaningful when ProtocolConfig.Name is
// "pbft-sharded".
type CommitteeConfig struct {
	GroupSize   int `json:"group_size" yaml:"group_size"`
	SecurityMin int `json:"security_min" yaml:"security_min"`
	SecurityMax int `json:"security_max" yaml:"security_max"`
}

// ByzantineConfig is optional; zero value means no peer is infected.
type ByzantineConfig struct {
	Count           int    `json:"count" yaml:"count"`
	Infection       string `json:"infection" yaml:"infection"`
	ShufflePerRound int    `json:"shuffle_per_round" yaml:"shuffle_per_round"`
}

// Scenario is the decoded, validated form of the JSON/YAML scenario
// document.
type Scenario struct {
	Name      string          `json:"name" yaml:"name"`
	Topology  TopologyConfig  `json:"topology" yaml:"topology"`
	Trial     TrialConfig     `json:"trial" yaml:"trial"`
	Protocol  ProtocolConfig  `json:"protocol" yaml:"protocol"`
	Committee CommitteeConfig `json:"committee" yaml:"committee"`
	Byzantine ByzantineConfig `json:"byzantine" yaml:"byzantine"`
}

// DecodeScenario reads a scenario document from r, using YAML when
// isYAML is true and JSON otherwise. It does not validate the result;
// call Validate afterward.
func DecodeScenario(r io.Reader, isYAML bool) (Scenario, error) {
	var s Scenario
	if isYAML {
		dec := yaml.NewDecoder(r)
		err := dec.Decode(&s)
		return s, err
	}
	dec := json.NewDecoder(r)
	err := dec.Decode(&s)
	return s, err
}

// IsYAMLPath reports whether path names a .yml/.yaml file, the convenience
// rule the CLI's --config flag uses to pick a decoder.
func IsYAMLPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

// Validate walks every field and returns the first impossible parameter
// combination as a *ConfigError. It never panics and never touches the
// network.
func (s Scenario) Validate() error {
	if s.Topology.Peers <= 0 {
		return &ConfigError{Field: "topology.peers", Err: ErrConfigPeerCount}
	}
	switch s.Topology.DelayModel {
	case "one", "random", "poisson", "":
	default:
		return &ConfigError{Field: "topology.delay_model", Err: ErrConfigUnknownDelayModel}
	}
	if s.Topology.DelayModel == "random" && s.Topology.MinDelay > s.Topology.MaxDelay {
		return &ConfigError{Field: "topology.min_delay", Err: ErrConfigDelayRange}
	}

	if s.Trial.Rounds <= 0 {
		return &ConfigError{Field: "trial.rounds", Err: ErrConfigRoundCount}
	}

	switch s.Protocol.Name {
	case "pbft", "pbft-sharded":
	default:
		return &ConfigError{Field: "protocol.name", Err: ErrConfigUnknownProtocol}
	}
	if s.Protocol.FaultTolerance < 0 || s.Protocol.FaultTolerance >= 1.0/3.0 {
		return &ConfigError{Field: "protocol.fault_tolerance", Err: ErrConfigFaultToleranceRange}
	}

	if s.Protocol.Name == "pbft-sharded" {
		if s.Committee.GroupSize <= 0 || s.Committee.GroupSize > s.Topology.Peers {
			return &ConfigError{Field: "committee.group_size", Err: ErrConfigGroupSizeExceedsPeers}
		}
		if s.Committee.SecurityMin > 0 && s.Committee.SecurityMax > 0 && s.Committee.SecurityMin > s.Committee.SecurityMax {
			return &ConfigError{Field: "committee.security_min", Err: ErrConfigSecurityLevelRange}
		}
	}

	if s.Byzantine.Count > 0 {
		if s.Byzantine.Count > s.Topology.Peers {
			return &ConfigError{Field: "byzantine.count", Err: ErrConfigByzantineCount}
		}
		if s.Byzantine.Infection != "" {
			if _, ok := InfectionRegistry(s.Byzantine.Infection); !ok {
				return &ConfigError{Field: "byzantine.infection", Err: ErrConfigUnknownInfection}
			}
		}
	}

	return nil
}

// DelayModel maps the decoded string name to the DelayModel enum,
// defaulting to DelayOne when unset (Validate has already rejected any
// other unrecognized name).
func (s Scenario) DelayModel() DelayModel {
	switch s.Topology.DelayModel {
	case "random":
		return DelayRandom
	case "poisson":
		return DelayPoisson
	default:
		return DelayOne
	}
}
