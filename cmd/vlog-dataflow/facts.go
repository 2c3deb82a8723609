package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/facts"
)

var (
	factsOutput    string
	factsDeltaFrom string
	factsDeltaOut  string
	factsFiles     []string
)

var factsCmd = &cobra.Command{
	Use:   "facts <path>",
	Short: "Export the fact tables of every snapshot under path as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if (factsDeltaFrom == "") != (factsDeltaOut == "") {
			return errors.New("--delta-from and --delta-out must be used together")
		}

		// Read the previous facts first; -o may name the same file.
		var prev *facts.Tables
		if factsDeltaFrom != "" {
			t, err := readTables(factsDeltaFrom)
			if err != nil {
				return errors.Wrap(err, "reading delta-from")
			}
			prev = &t
		}

		p, err := newPipeline(args[0])
		if err != nil {
			return err
		}
		report, runErr := p.Analyze(args[0])
		if report == nil {
			return runErr
		}
		if runErr != nil {
			p.Log.Warn(runErr)
		}

		tables := report.Tables
		if len(factsFiles) > 0 {
			keep := make(map[string]bool, len(factsFiles))
			for _, f := range factsFiles {
				keep[filepath.Clean(f)] = true
			}
			tables = facts.FilterTablesByFiles(tables, keep)
		}

		if factsOutput != "" {
			if err := writeJSON(factsOutput, tables); err != nil {
				return errors.Wrap(err, "writing facts")
			}
		} else if err := encodeJSON(cmd.OutOrStdout(), tables); err != nil {
			return errors.Wrap(err, "encoding facts")
		}

		if prev != nil {
			if err := writeJSON(factsDeltaOut, facts.ComputeDelta(*prev, tables)); err != nil {
				return errors.Wrap(err, "writing delta")
			}
		}
		return nil
	},
}

func init() {
	f := factsCmd.Flags()
	f.StringVarP(&factsOutput, "output", "o", "", "write facts JSON to file (default: stdout)")
	f.StringVar(&factsDeltaFrom, "delta-from", "", "previous facts JSON to compute delta from")
	f.StringVar(&factsDeltaOut, "delta-out", "", "write delta JSON to file (requires --delta-from)")
	f.StringSliceVar(&factsFiles, "file", nil, "only export rows of these snapshot files")
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}

func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return encodeJSON(f, data)
}

func encodeJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
