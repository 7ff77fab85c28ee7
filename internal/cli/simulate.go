package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"price-threshold-alerts/internal/app"
)

var (
	simulateGroup      string
	simulateInstrument string
	simulateValue      string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Feed a fixed value for a configured instrument through the alert pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateInstrument == "" || simulateValue == "" {
			return errors.New("--instrument and --value are required")
		}

		return getApp().SimulateAlert(cmd.Context(), cmd.OutOrStdout(), app.SimulateOptions{
			Group:      simulateGroup,
			Instrument: simulateInstrument,
			Value:      simulateValue,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateGroup, "group", "", "Group name (defaults to the first group containing the instrument)")
	simulateCmd.Flags().StringVar(&simulateInstrument, "instrument", "", "Configured instrument id")
	simulateCmd.Flags().StringVar(&simulateValue, "value", "", "Value to evaluate, e.g. 42.5")
}
