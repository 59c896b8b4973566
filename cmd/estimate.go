package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/billboard-signals/internal/demographic"
	"github.com/sells-group/billboard-signals/internal/model"
	"github.com/sells-group/billboard-signals/internal/traffic"
)

var (
	estCurrentSpeed  float64
	estFreeFlowSpeed float64
	estConfidence    float64
	estBusinessFile  string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Run an estimator on raw inputs without touching the store",
}

var estimateTrafficCmd = &cobra.Command{
	Use:   "traffic",
	Short: "Estimate daily traffic from a speed sample",
	RunE: func(cmd *cobra.Command, args []string) error {
		est := traffic.Estimate(estCurrentSpeed, estFreeFlowSpeed, estConfidence)
		return writeJSON(cmd.OutOrStdout(), est)
	},
}

var estimateDemographicCmd = &cobra.Command{
	Use:   "demographic",
	Short: "Classify a YAML or JSON list of business records",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := readBusinessRecords(estBusinessFile)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), demographic.Classify(records))
	},
}

func init() {
	estimateTrafficCmd.Flags().Float64Var(&estCurrentSpeed, "current", 0, "current speed in km/h")
	estimateTrafficCmd.Flags().Float64Var(&estFreeFlowSpeed, "free-flow", 0, "free-flow speed in km/h")
	estimateTrafficCmd.Flags().Float64Var(&estConfidence, "confidence", 1, "provider confidence in [0,1]")
	_ = estimateTrafficCmd.MarkFlagRequired("free-flow")

	estimateDemographicCmd.Flags().StringVar(&estBusinessFile, "file", "-", "business records file (- for stdin)")

	estimateCmd.AddCommand(estimateTrafficCmd, estimateDemographicCmd)
	rootCmd.AddCommand(estimateCmd)
}

// readBusinessRecords reads a list of records from path, or stdin for "-".
// YAML is a superset of JSON, so both parse.
func readBusinessRecords(path string) ([]model.BusinessRecord, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "open business file")
		}
		defer f.Close() //nolint:errcheck
		r = f
	}
	return decodeBusinessRecords(r)
}

func decodeBusinessRecords(r io.Reader) ([]model.BusinessRecord, error) {
	var records []model.BusinessRecord
	if err := yaml.NewDecoder(r).Decode(&records); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "decode business records")
	}
	return records, nil
}
