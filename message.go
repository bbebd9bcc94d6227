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

// MessageType enumerates the PBFT protocol phases a ConsensusMessage can carry.
type MessageType int

const (
	PrePrepare MessageType = iota
	Prepare
	Commit
	Reply
	ViewChange
)

func (t MessageType) String() string {
	switch t {
	case PrePrepare:
		return "preprepare"
	case Prepare:
		return "prepare"
	case Commit:
		return "commit"
	case Reply:
		return "reply"
	case ViewChange:
		return "view-change"
	default:
		return "unknown"
	}
}

// ConsensusMessage is the semantic payload of a Packet. Equality ignores
// transport fields (message id, source, destination, delay) and compares
// only the fields below, per the protocol's safety definition.
type ConsensusMessage struct {
	ClientID  PeerID
	CreatorID PeerID
	View      int
	Type      MessageType
	Operation string
	Operands  []string
	Result    string
}

// Equal reports whether two messages are the same decided value, ignoring
// any transport-level framing.
func (m ConsensusMessage) Equal(other ConsensusMessage) bool {
	if m.ClientID != other.ClientID ||
		m.CreatorID != other.CreatorID ||
		m.View != other.View ||
		m.Type != other.Type ||
		m.Operation != other.Operation ||
		m.Result != other.Result {
		return false
	}
	if len(m.Operands) != len(other.Operands) {
		return false
	}
	for i := range m.Operands {
		if m.Operands[i] != other.Operands[i] {
			return false
		}
	}
	return true
}
