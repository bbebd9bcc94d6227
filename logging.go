package quantas

import (
	"encoding/json"
	"io"
)

// PeerRecord is one peer's contribution to a RoundRecord.
type PeerRecord struct {
	ID         int  `json:"id"`
	Byzantine  bool `json:"byzantine"`
	LedgerSize int  `json:"ledger_size"`
	Phase      int  `json:"phase"`
	VoteChange bool `json:"vote_change"`
}

// RoundRecord is the exact shape serialized to one JSON line per round.
// Seed attributes the line to one trial: when several trials share a log
// sink (quantas-sim's --trials flag), lines from concurrent trials are
// otherwise indistinguishable from one another.
type RoundRecord struct {
	Seed       int64        `json:"seed"`
	Round      int          `json:"round"`
	Peers      []PeerRecord `json:"peers"`
	FreeGroups int          `json:"free_groups,omitempty"`
	BusyGroups int          `json:"busy_groups,omitempty"`
	QueueLen   int          `json:"queue_len,omitempty"`
	Committees []int        `json:"committees,omitempty"`
}

// RoundLogger streams one JSON object per line to an io.Writer, in the
// teacher's plain-writer emission style: no buffering beyond what
// encoding/json's Encoder already does, no framing beyond newlines.
type RoundLogger struct {
	enc *json.Encoder
}

// NewRoundLogger wraps w for per-round JSON-lines emission.
func NewRoundLogger(w io.Writer) *RoundLogger {
	return &RoundLogger{enc: json.NewEncoder(w)}
}

// Write appends one RoundRecord as a JSON line. Encoding errors are
// swallowed into the return value rather than panicking, matching the
// "never panic outside Validate" ambient-error contract.
func (l *RoundLogger) Write(rec RoundRecord) error {
	return l.enc.Encode(rec)
}

// Record returns a closure suitable as a Simulation recorder, writing
// through to l and recording the last error it saw.
func (l *RoundLogger) Record() (func(RoundRecord), *error) {
	var lastErr error
	return func(rec RoundRecord) {
		if err := l.Write(rec); err != nil {
			lastErr = err
		}
	}, &lastErr
}
