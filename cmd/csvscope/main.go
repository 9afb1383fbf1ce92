// Command csvscope is a terminal reference consumer for the csvscope
// viewport engine: point it at a CSV file and pan, zoom and follow its
// numeric columns. It exists to exercise internal/engine end to end, not
// as the system's presentation-layer contract.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	tui "github.com/charmbracelet/bubbletea"

	"csvscope/internal/config"
	"csvscope/internal/engine"
)

func main() {
	log.SetOutput(os.Stderr)

	cfg := config.Default()
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: csvscope [flags] <path.csv>")
		os.Exit(2)
	}
	path := args[0]

	resultCh := make(chan engine.Result, 8)

	handle, err := engine.Open(path, engine.Options{
		SparseIndexStride: cfg.SparseIndexStride,
		MaxDisplayPoints:  cfg.MaxDisplayPoints,
		MinMaxRatio:       cfg.MinMaxRatio,
		PollInterval:      cfg.PollInterval,
		Follow:            cfg.Follow,
		SampleRowsMin:     cfg.SampleRowsMin,
		SampleRowRate:     cfg.SampleRowRate,
		DiagnosticsTopK:   cfg.DiagnosticsTopK,
		DiagnosticsWindow: cfg.DiagnosticsWindow,
		StatsEnabled:      cfg.StatsEnabled,
		StatsWindow:       cfg.StatsWindow,
		OnResult: func(r engine.Result) {
			select {
			case resultCh <- r:
			default:
				// Drop under backpressure; the next settled viewport result
				// will supersede it anyway.
			}
		},
		Logger: slog.Default(),
	})
	if err != nil {
		log.Fatal(err)
	}
	defer handle.Close()

	info := handle.SchemaInfo()
	if !info.HasRows {
		log.Fatal("csvscope: file has no data rows")
	}

	m := newModel(handle, resultCh, info, cfg.StatsEnabled)
	if _, err := tui.NewProgram(m, tui.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
