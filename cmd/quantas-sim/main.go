// Command quantas-sim runs one or more trials of a BFT consensus scenario
// and reports a per-round JSON-lines log plus an end-of-run summary table.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/zaz/quantas"
)

func main() {
	app := &cli.App{
		Name:  "quantas-sim",
		Usage: "discrete-event simulator for PBFT-family BFT consensus protocols",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Required: true, Usage: "scenario document (.json, .yml, .yaml)"},
			&cli.StringFlag{Name: "out", Value: "-", Usage: "per-round JSON-lines output path, \"-\" for stdout"},
			&cli.IntFlag{Name: "trials", Value: 1, Usage: "number of independent trials to run"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	configPath := c.String("config")
	f, err := os.Open(configPath)
	if err != nil {
		return cli.Exit(err, 2)
	}
	defer f.Close()

	scenario, err := quantas.DecodeScenario(f, quantas.IsYAMLPath(configPath))
	if err != nil {
		return cli.Exit(fmt.Errorf("decoding %s: %w", configPath, err), 2)
	}
	if err := scenario.Validate(); err != nil {
		return cli.Exit(err, 2)
	}

	out, closeOut, err := openLogSink(c.String("out"))
	if err != nil {
		return cli.Exit(err, 2)
	}
	defer closeOut()

	trials := c.Int("trials")
	if trials < 1 {
		trials = 1
	}

	inputs := make([]quantas.TrialInput, trials)
	for i := 0; i < trials; i++ {
		inputs[i] = quantas.TrialInput{
			Scenario: scenario,
			Seed:     scenario.Trial.Seed + int64(i),
			Log:      out,
		}
	}

	results := quantas.RunTrials(inputs, 0)
	quantas.RenderSummary(os.Stderr, results)

	os.Exit(quantas.ExitCode(results))
	return nil
}

func openLogSink(path string) (*os.File, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	if !strings.HasSuffix(path, ".jsonl") && !strings.Contains(path, ".") {
		path += ".jsonl"
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, func() {}, err
	}
	return f, func() { f.Close() }, nil
}
