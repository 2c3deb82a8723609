package main

import (
	"github.com/spf13/cobra"
)

var resolvedDir string

var resolveCmd = &cobra.Command{
	Use:   "resolve <path>",
	Short: "Resolve every snapshot under path and report constants and findings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		p, err := newPipeline(args[0])
		if err != nil {
			return err
		}
		p.ResolvedDir = resolvedDir
		p.Out = cmd.OutOrStdout()
		return p.Run(args[0])
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolvedDir, "out-dir", "", "write <name>.resolved.json snapshots to this directory")
}
