package quantas

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/olekukonko/tablewriter"
)

// TrialResult is one run's outcome: the caller's identity (scenario name
// and seed are attached by the trial runner), the final global ledger
// size, any ProtocolStuck events observed, and how long the trial took.
type TrialResult struct {
	ScenarioName    string
	Seed            int64
	FinalLedgerSize int
	StuckEvents     []ProtocolStuck
	Duration        time.Duration
	Violation       *InvariantViolation
	LogBytesWritten int64
}

// RenderSummary writes a compact tablewriter digest of every result to w,
// one row per trial, in the order given.
func RenderSummary(w io.Writer, results []TrialResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"scenario", "seed", "ledger", "stuck", "invariant", "duration", "log size"})

	for _, r := range results {
		status := "ok"
		if r.Violation != nil {
			status = r.Violation.Tag
		}
		table.Append([]string{
			r.ScenarioName,
			strconv.FormatInt(r.Seed, 10),
			strconv.Itoa(r.FinalLedgerSize),
			strconv.Itoa(len(r.StuckEvents)),
			status,
			r.Duration.Round(time.Millisecond).String(),
			bytefmt.ByteSize(uint64(r.LogBytesWritten)),
		})
	}
	table.Render()
}

// ExitCode derives the CLI process exit code from a batch of results: 0 on
// full success, 1 if any trial recorded an InvariantViolation.
func ExitCode(results []TrialResult) int {
	for _, r := range results {
		if r.Violation != nil {
			return 1
		}
	}
	return 0
}

// countingWriter wraps an io.Writer, tracking the number of bytes written
// so the CLI can report the log size with bytefmt without re-reading the
// file.
type countingWriter struct {
	w     io.Writer
	count int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.count += int64(n)
	return n, err
}

func (c *countingWriter) String() string {
	return fmt.Sprintf("%s written", bytefmt.ByteSize(uint64(c.count)))
}
