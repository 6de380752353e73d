package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stitts-dev/rotation-optimizer/internal/franchise"
	"github.com/stitts-dev/rotation-optimizer/internal/services"
)

var solveJSON bool

var solveCmd = &cobra.Command{
	Use:   "solve [franchise|all]",
	Short: "Compute the best non-teammate rotation for a franchise",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSolve,
}

func init() {
	solveCmd.Flags().IntVarP(&flags.size, "size", "k", 0, "rotation size (default ROTATION_SIZE)")
	solveCmd.Flags().StringVarP(&flags.encoding, "encoding", "e", "", "pairwise or linearized (default ENCODING)")
	solveCmd.Flags().BoolVar(&solveJSON, "json", false, "print results as JSON")
	solveCmd.Flags().BoolVar(&flags.refresh, "refresh", false, "drop cached teammate relations and rebuild them")
}

// targets expands the franchise argument; no argument or "all" means
// every franchise
func targets(args []string) []string {
	if len(args) == 0 || strings.EqualFold(args[0], "all") {
		return franchise.Names()
	}
	return args
}

func runSolve(cmd *cobra.Command, args []string) error {
	a, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	var results []*services.RotationResult
	for _, name := range targets(args) {
		result, err := a.Service.Solve(cmd.Context(), services.RotationRequest{
			Franchise: name,
			Size:      flags.size,
			Encoding:  flags.encoding,
			Verbose:   flags.verbose,
			Refresh:   flags.refresh,
		})
		if err != nil {
			return err
		}
		if solveJSON {
			results = append(results, result)
			continue
		}
		printRotation(out, result)
	}

	if solveJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return nil
}

func printRotation(w io.Writer, r *services.RotationResult) {
	fmt.Fprintf(w, "%s (team %d)\n", r.Franchise.Name, r.Franchise.TeamID)
	for _, p := range r.Solution.Picks {
		name := p.Name
		if name == "" {
			name = p.ID
		}
		fmt.Fprintf(w, "  %-28s %6s %6.1f\n", name, p.ID, p.Value)
	}
	fmt.Fprintf(w, "  %-28s %6s %6.1f\n", "total", "", r.Solution.Total)
	for _, warning := range r.Solution.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	fmt.Fprintln(w)
}
