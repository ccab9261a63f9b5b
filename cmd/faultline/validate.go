package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"faultline-hq/faultline/pkg/plan"
)

var validateFlags struct {
	planPath string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a fault plan file",
	Long: `Validate a fault plan file without applying it.

Examples:
  # Validate a plan
  faultline validate --plan faults.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.planPath, "plan", "p", "", "fault plan file to validate")
	_ = validateCmd.MarkFlagRequired("plan")
}

func runValidate(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(validateFlags.planPath)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Plan valid (%d faults)\n", len(p.Faults))
	return nil
}
