// BSD 3-Clause License
//
// Copyright (c) 2020, Sperax
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this
//    list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice,
//    this list of conditions and the following disclaimer in the documentation
//    and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
//    contributors may be used to endorse or promote products derived from
//    this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
// FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
// CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
// OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package quantas

import (
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

var (
	// Config Related
	ErrConfigGroupSizeExceedsPeers = errors.New("committee.group_size exceeds topology.peers")
	ErrConfigFaultToleranceRange   = errors.New("protocol.fault_tolerance must be in [0, 1/3)")
	ErrConfigUnknownDelayModel     = errors.New("topology.delay_model is not one of \"one\", \"random\", \"poisson\"")
	ErrConfigUnknownProtocol       = errors.New("protocol name is not one of \"pbft\", \"pbft-sharded\"")
	ErrConfigUnknownInfection      = errors.New("byzantine.infection is not a recognized infection name")
	ErrConfigPeerCount             = errors.New("topology.peers must be positive")
	ErrConfigRoundCount            = errors.New("trial.rounds must be positive")
	ErrConfigDelayRange            = errors.New("topology.min_delay must not exceed topology.max_delay")
	ErrConfigSecurityLevelRange    = errors.New("committee.security_min must not exceed committee.security_max")
	ErrConfigByzantineCount        = errors.New("byzantine.count exceeds topology.peers")
)

// ConfigError wraps one of the Err* sentinels above together with the
// scenario field that triggered it, so the first violation Scenario.Validate
// finds names its field while callers can still errors.Is against a fixed
// sentinel.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: field %q: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// InvariantViolation is returned by the simulation loop when a post-round
// consistency check fails; it aborts only the current trial. Tag is one of
// the I1..I6 labels from the data model's invariant list.
type InvariantViolation struct {
	Tag   string
	Round int
	State interface{}
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant %s violated at round %d:\n%s", e.Tag, e.Round, spew.Sdump(e.State))
}

// ProtocolStuck is not an error: it is a RoundRecord-adjacent event value
// appended to a trial's event log when every correct peer's voteChange is
// simultaneously true. It is logged, never returned as an error, but it
// satisfies the error interface so it can travel through the same
// diagnostic plumbing as InvariantViolation when convenient.
type ProtocolStuck struct {
	Round int
}

func (e ProtocolStuck) Error() string {
	return fmt.Sprintf("protocol stuck at round %d: every correct peer voted for a view change", e.Round)
}
