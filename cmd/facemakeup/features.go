package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dudu/facemakeup/internal/feature"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "List the facial features and their landmark ranges",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-12s %-10s %s\n", "FEATURE", "LANDMARKS", "POINTS")
		for _, name := range feature.Names() {
			lo, hi, _ := name.Range()
			fmt.Fprintf(out, "%-12s %-10s %d\n", name, fmt.Sprintf("%d-%d", lo, hi-1), hi-lo)
		}
	},
}

func init() {
	rootCmd.AddCommand(featuresCmd)
}
