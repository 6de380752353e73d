package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var matrixCmd = &cobra.Command{
	Use:   "matrix <franchise>",
	Short: "Build and print a franchise's teammate pairs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		data, err := a.Service.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		names := make(map[string]string, len(data.Pool))
		for _, c := range data.Pool {
			names[c.ID] = c.Name
		}
		for _, p := range data.Relation.Pairs() {
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", p.A, names[p.A], p.B, names[p.B])
		}
		fmt.Fprintf(out, "%s: %d candidates, %d teammate pairs\n",
			data.Franchise.Name, len(data.Pool), data.Relation.Len())
		return nil
	},
}
