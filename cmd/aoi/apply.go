package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"aoi-go/internal/app"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create AOIs from a YAML file",
	Long: `Create every AOI defined in a YAML file. Documents are separated by "---".

Example:
  kind: AOI
  metadata:
    name: Amazon North
  spec:
    changeType: deforestation
    monitoringFrequency: weekly
    confidenceThreshold: 70
    bbox: [-60.0, -3.1, -59.9, -3.0]

  aoi apply -f aois.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	resources, err := app.ParseResources(f)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), "Apply")
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.Apply(cmd.Context(), resources)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("✗ %s: %v\n", r.Name, r.Err)
			continue
		}
		fmt.Printf("✓ %s created (ID: %s)\n", r.Name, r.ID)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d AOI(s) failed", failed, len(results))
	}
	return nil
}
