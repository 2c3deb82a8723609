package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a vlog_dataflow.json configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.FileName
		out := cmd.OutOrStdout()

		if _, err := os.Stat(configPath); err == nil && !initForce {
			fmt.Fprintf(out, "Config file %s already exists. Overwrite? [y/N]: ", configPath)
			response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			response = strings.TrimSpace(response)
			if response != "y" && response != "Y" {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}
		}

		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}

		fmt.Fprintf(out, "Created %s\n", configPath)
		fmt.Fprintln(out, "\nEdit this file to configure:")
		fmt.Fprintln(out, "  - Snapshot input patterns")
		fmt.Fprintln(out, "  - Parameter overrides")
		fmt.Fprintln(out, "  - Check severities and ignored names")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config without asking")
}
