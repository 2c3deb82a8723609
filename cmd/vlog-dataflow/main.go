// vlog-dataflow resolves the parameters of Verilog dataflow snapshots.
//
// A snapshot is the term table and binddict of one elaborated design, as
// JSON. The tool validates it, folds every parameter to a literal in two
// passes, folds declared ranges against those literals, and checks the
// result with rego rules:
//
//	vlog-dataflow resolve rtl/            # report constants and findings
//	vlog-dataflow facts -o facts.json rtl/ # export the relational fact tables
//	vlog-dataflow fold top.dataflow.json top.bus
//	vlog-dataflow init                    # write vlog_dataflow.json
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/config"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/pipeline"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "vlog-dataflow",
	Short:         "Resolve parameters and widths in Verilog dataflow snapshots",
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default: search for vlog_dataflow.json)")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.Bool("json", false, "write the report as JSON")
	flags.Int("default-width", 0, "width of unsized literals (default from config, 32)")
	flags.Int("passes", 0, "fold/normalize rounds for fold (default from config, 2)")
	flags.StringSlice("define", nil, "override a parameter: NAME=LITERAL (repeatable)")
	flags.String("timing", "", "write per-stage timing events as JSONL to this file")
	flags.String("metrics-file", "", "write Prometheus text metrics to this file")

	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(resolveCmd, factsCmd, foldCmd, initCmd)
}

// initConfig layers VLOG_DATAFLOW_* environment variables under the flags.
func initConfig() {
	viper.SetEnvPrefix("vlog_dataflow")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding flags: %v\n", err)
		os.Exit(2)
	}
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if viper.GetBool("verbose") {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// loadConfig reads --config when given, else searches from path, then
// applies the command line settings on top.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if file := viper.GetString("config"); file != "" {
		cfg, err = config.LoadFile(file)
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, err
	}
	if w := viper.GetInt("default-width"); w > 0 {
		cfg.Optimizer.DefaultWidth = w
	}
	if n := viper.GetInt("passes"); n > 0 {
		cfg.Optimizer.Passes = n
	}
	return cfg, nil
}

func newPipeline(path string) (*pipeline.Pipeline, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	defines, err := pipeline.ParseDefines(viper.GetStringSlice("define"))
	if err != nil {
		return nil, err
	}

	p := pipeline.NewWithConfig(cfg)
	p.Defines = defines
	p.Verbose = viper.GetBool("verbose")
	p.JSONOutput = viper.GetBool("json")
	p.MetricsPath = viper.GetString("metrics-file")
	if t := viper.GetString("timing"); t != "" {
		p.Timing = true
		p.TimingPath = t
	}
	p.Log = newLogger()
	return p, nil
}
