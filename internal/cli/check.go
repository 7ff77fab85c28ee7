package cli

import (
	"github.com/spf13/cobra"

	"price-threshold-alerts/internal/app"
)

var checkPNGPath string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate every instrument once and print the results without alerting",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Check(cmd.Context(), cmd.OutOrStdout(), app.CheckOptions{PNGPath: checkPNGPath})
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkPNGPath, "png", "", "Path to write a PNG snapshot of positions within bounds")
}
