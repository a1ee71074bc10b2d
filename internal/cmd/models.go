package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dyike/dqc/internal/format"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the server offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		models, err := a.client.ListModels(cmd.Context())
		if err != nil {
			return err
		}
		return format.OutputModels(models, format.ParseFormat(outputFormat))
	},
}
