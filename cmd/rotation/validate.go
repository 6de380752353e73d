package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stitts-dev/rotation-optimizer/internal/services"
	"github.com/stitts-dev/rotation-optimizer/internal/validation"
)

var referencePath string

var validateCmd = &cobra.Command{
	Use:   "validate [franchise|all]",
	Short: "Compare solved rotations with a reference solution",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		path := referencePath
		if path == "" {
			path = a.Config.ReferenceFile
		}
		ref, err := validation.LoadReference(path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, name := range targets(args) {
			expected, ok := ref[name]
			if !ok {
				fmt.Fprintf(out, "%s\n  skipped: not in reference\n\n", name)
				continue
			}
			result, err := a.Service.Solve(cmd.Context(), services.RotationRequest{
				Franchise: name,
				Size:      len(expected),
				Verbose:   flags.verbose,
			})
			if err != nil {
				return err
			}

			report := validation.Compare(result.Franchise.Name, result.Solution, expected, result.Relation)
			fmt.Fprintln(out, report.Franchise)
			if report.ExactMatch {
				fmt.Fprintln(out, "  perfect player selection match")
			}
			for _, e := range report.Errors {
				fmt.Fprintf(out, "  error: %s\n", e)
			}
			for _, w := range report.Warnings {
				fmt.Fprintf(out, "  warning: %s\n", w)
			}
			if report.TotalsMatch {
				fmt.Fprintf(out, "  totals match (%.1f)\n", report.PredictedTotal)
			}
			fmt.Fprintln(out)
			if !report.OK() {
				failed++
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d franchises failed validation", failed)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&referencePath, "reference", "r", "", "reference solution file (default REFERENCE_FILE)")
}
