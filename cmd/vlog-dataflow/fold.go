package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/dataflow"
)

var foldCmd = &cobra.Command{
	Use:   "fold <snapshot> <name>",
	Short: "Resolve a snapshot and print the optimized first assignment of name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		p, err := newPipeline(args[0])
		if err != nil {
			return err
		}
		tree, err := p.Fold(args[0], args[1])
		if err != nil {
			return err
		}
		if viper.GetBool("json") {
			data, err := dataflow.MarshalNode(tree)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[1], tree)
		return nil
	},
}
